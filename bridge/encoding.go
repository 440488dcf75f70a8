// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/json"
	"errors"

	"github.com/dop251/goja"
)

var errNoJSONParse = errors.New("host has no JSON.parse")

// Encoder turns a payload into the arguments of a host function call.
// It runs on the loop goroutine.
type Encoder[T any] func(rt *goja.Runtime, payload T) ([]goja.Value, error)

// JSON passes the payload as a single argument, converted through its JSON
// encoding.
func JSON[T any](rt *goja.Runtime, payload T) ([]goja.Value, error) {
	v, err := toValue(rt, payload)
	if err != nil {
		return nil, err
	}
	return []goja.Value{v}, nil
}

// Array passes the payload as a single host array of JSON-converted
// elements.
func Array[E any](rt *goja.Runtime, payload []E) ([]goja.Value, error) {
	elems := make([]interface{}, len(payload))
	for i, e := range payload {
		v, err := toValue(rt, e)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return []goja.Value{rt.NewArray(elems...)}, nil
}

// Result is a value or the error that prevented producing it.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }

// Fail wraps an error.
func Fail[T any](err error) Result[T] { return Result[T]{Err: err} }

// Promisified calls error-first: (null, value) on success. A failed result
// is handed back to the bridge, which delivers the host error alone.
func Promisified[T any](rt *goja.Runtime, r Result[T]) ([]goja.Value, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	v, err := toValue(rt, r.Value)
	if err != nil {
		return nil, err
	}
	return []goja.Value{goja.Null(), v}, nil
}

func toValue(rt *goja.Runtime, payload interface{}) (goja.Value, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	parse, ok := goja.AssertFunction(rt.Get("JSON").ToObject(rt).Get("parse"))
	if !ok {
		return nil, errNoJSONParse
	}
	return parse(goja.Undefined(), rt.ToValue(string(b)))
}
