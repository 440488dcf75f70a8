// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge delivers values produced on worker goroutines to a host
// function, which only ever runs on the loop goroutine.
package bridge

import (
	"sync"

	"github.com/dop251/goja"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/alpaca/failure"
	"github.com/ava-labs/alpaca/host"
)

// handle is the host function and channel shared by all clones of a Bridge.
type handle struct {
	mu   sync.Mutex
	fn   goja.Callable
	ch   *host.Channel
	refs int
}

func (h *handle) function() goja.Callable {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fn
}

func (h *handle) acquire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs++
}

// release drops the host function once the last holder is closed.
func (h *handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs--
	if h.refs == 0 {
		h.fn = nil
	}
}

// Bridge schedules invocations of a host function with payloads of type T.
//
// Call never blocks. Close waits for the invocations requested through this
// instance; clones track their own.
type Bridge[T any] struct {
	h      *handle
	encode Encoder[T]
	log    log.Logger

	mu      sync.Mutex
	pending []chan struct{}
	closed  bool
}

// New returns a bridge invoking [fn] through [ch], encoding payloads with
// [encode].
func New[T any](fn goja.Callable, ch *host.Channel, encode Encoder[T]) *Bridge[T] {
	return &Bridge[T]{
		h:      &handle{fn: fn, ch: ch, refs: 1},
		encode: encode,
		log:    log.New("module", "bridge"),
	}
}

// Clone returns a bridge sharing the host function, with no pending calls.
func (b *Bridge[T]) Clone() *Bridge[T] {
	b.h.acquire()
	return &Bridge[T]{
		h:      b.h,
		encode: b.encode,
		log:    b.log,
	}
}

// Call schedules one invocation of the host function with [payload].
// If the payload cannot be encoded the function receives the error instead.
func (b *Bridge[T]) Call(payload T) {
	done := make(chan struct{})

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.log.Warn("dropping call on closed bridge")
		return
	}
	b.prune()
	b.pending = append(b.pending, done)
	b.mu.Unlock()

	h := b.h
	err := h.ch.Send(func(rt *goja.Runtime) error {
		defer close(done)

		args, err := b.encode(rt, payload)
		if err != nil {
			args = []goja.Value{failure.ToValue(rt, err)}
		}
		fn := h.function()
		if fn == nil {
			return nil
		}
		_, err = fn(goja.Undefined(), args...)
		return err
	})
	if err != nil {
		close(done)
		b.log.Error("failed to schedule host callback", "error", err)
	}
}

// prune drops the signals of invocations that already ran. Assumes b.mu is
// held.
func (b *Bridge[T]) prune() {
	live := b.pending[:0]
	for _, done := range b.pending {
		select {
		case <-done:
		default:
			live = append(live, done)
		}
	}
	for i := len(live); i < len(b.pending); i++ {
		b.pending[i] = nil
	}
	b.pending = live
}

// Pending returns the number of invocations requested through this instance
// that have not run yet.
func (b *Bridge[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune()
	return len(b.pending)
}

// Close waits until every invocation requested through this instance has
// run. It must not be called from the loop goroutine, which is the one that
// runs them.
func (b *Bridge[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, done := range pending {
		<-done
	}
	b.h.release()
}

// CloseOnLoop closes the bridge from the loop goroutine. It does not wait:
// the handle is released by a task queued behind every invocation this
// instance already requested.
func (b *Bridge[T]) CloseOnLoop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.pending = nil
	b.mu.Unlock()

	h := b.h
	if err := h.ch.Send(func(*goja.Runtime) error {
		h.release()
		return nil
	}); err != nil {
		h.release()
	}
}
