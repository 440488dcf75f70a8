// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package failure

import "github.com/dop251/goja"

// ToValue renders [err] as a host Error carrying message, type, backtrace
// and tag. Must be called on the loop goroutine.
//
// If the host refuses to build the object a string describing what went
// wrong is returned instead, so a callback always receives something.
func ToValue(rt *goja.Runtime, err error) goja.Value {
	info := Classify(err)
	if info == nil {
		return goja.Undefined()
	}

	obj, jsErr := rt.New(rt.Get("Error"), rt.ToValue(info.Error()))
	if jsErr != nil {
		return rt.ToValue("Failed to create an Error")
	}
	if jsErr := obj.Set("type", uint32(info.Kind)); jsErr != nil {
		return rt.ToValue("Failed to set error type")
	}
	if jsErr := obj.Set("backtrace", info.Trace()); jsErr != nil {
		return rt.ToValue("Failed to set backtrace")
	}
	if jsErr := obj.Set("tag", Tag); jsErr != nil {
		return rt.ToValue("Failed to set error tag")
	}
	return obj
}
