// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package failure classifies errors crossing into the host and renders them
// as host error values.
//
// Every failure is either a Devnet failure, originating in the simulation
// engine or the server assembled around it, or an Internal one: I/O,
// serialization, scheduler creation or an exception thrown by the host.
package failure

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/ava-labs/alpaca/api"
	"github.com/ava-labs/alpaca/devnet"
)

// Tag identifies errors produced by this addon among other host exceptions.
const Tag = "alpaca-addon"

const (
	emptyTrace    = "<empty>"
	maxTraceDepth = 32
)

// Kind is the class of a failure. The numeric values are what the host sees.
type Kind uint32

const (
	Internal Kind = iota
	Devnet
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal"
	case Devnet:
		return "devnet"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Error is a classified failure. The trace is captured where the Error was
// built.
type Error struct {
	Kind  Kind
	Cause error
	trace string
}

// New classifies [err] as [kind].
func New(kind Kind, err error) *Error {
	return &Error{
		Kind:  kind,
		Cause: err,
		trace: captureTrace(3),
	}
}

// Internalf builds an internal failure from a message.
func Internalf(format string, args ...interface{}) *Error {
	return &Error{
		Kind:  Internal,
		Cause: fmt.Errorf(format, args...),
		trace: captureTrace(3),
	}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String() + " error"
	}
	return e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Trace returns the stack captured when the error was classified, or
// "<empty>" if none was captured.
func (e *Error) Trace() string {
	if e.trace == "" {
		return emptyTrace
	}
	return e.trace
}

// Classify maps any error onto the two-class taxonomy. Already classified
// errors are returned as is.
func Classify(err error) *Error {
	var (
		classified *Error
		devnetErr  *devnet.Error
		buildErr   *api.BuildError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &classified):
		return classified
	case errors.As(err, &devnetErr), errors.As(err, &buildErr):
		return New(Devnet, err)
	default:
		// I/O, JSON, host exceptions and anything unknown.
		return New(Internal, err)
	}
}

func captureTrace(skip int) string {
	pcs := make([]uintptr, maxTraceDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}
