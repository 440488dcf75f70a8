// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package addon

import (
	"encoding/json"

	"github.com/dop251/goja"

	"github.com/ava-labs/alpaca/bridge"
	"github.com/ava-labs/alpaca/failure"
)

// Register installs the addon's functions and constants on [exports]:
//
//	createServer(config, onReady, onBlock)
//	startDevnet(config, onBlock) -> Promise<AccountData[]>
//	ErrorType { InternalError, DevnetError }
//	tag
func (a *Adapter) Register(rt *goja.Runtime, exports *goja.Object) error {
	errorType := rt.NewObject()
	if err := errorType.Set("InternalError", uint32(failure.Internal)); err != nil {
		return err
	}
	if err := errorType.Set("DevnetError", uint32(failure.Devnet)); err != nil {
		return err
	}

	for name, value := range map[string]interface{}{
		"createServer": a.createServer(rt),
		"startDevnet":  a.startDevnet(rt),
		"ErrorType":    errorType,
		"tag":          failure.Tag,
	} {
		if err := exports.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// createServer(config, onReady, onBlock)
func (a *Adapter) createServer(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		config := parseConfigArg(rt, call.Argument(0))
		onReady := functionArg(rt, call.Argument(1), "onReady")
		onBlock := functionArg(rt, call.Argument(2), "onBlock")

		a.boot(config, onReady, onBlock)
		return goja.Undefined()
	}
}

// startDevnet(config, onBlock) returns a promise settled by onReady.
func (a *Adapter) startDevnet(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		config := parseConfigArg(rt, call.Argument(0))
		onBlock := functionArg(rt, call.Argument(1), "onBlock")

		promise, resolve, reject := rt.NewPromise()
		settle := rt.ToValue(func(call goja.FunctionCall) goja.Value {
			if err := call.Argument(0); !goja.IsNull(err) && !goja.IsUndefined(err) {
				reject(err)
			} else {
				resolve(call.Argument(1))
			}
			return goja.Undefined()
		})
		onReady, _ := goja.AssertFunction(settle)

		a.boot(config, onReady, onBlock)
		return rt.ToValue(promise)
	}
}

func (a *Adapter) boot(config DevnetConfig, onReady, onBlock goja.Callable) {
	ch := a.loop.Channel()
	ready := bridge.New[bridge.Result[[]AccountData]](onReady, ch, bridge.Promisified[[]AccountData])
	blocks := bridge.New[json.RawMessage](onBlock, ch, bridge.JSON[json.RawMessage])
	a.start(config, ready, blocks)
}

func parseConfigArg(rt *goja.Runtime, v goja.Value) DevnetConfig {
	config, err := ParseConfig(rt, v)
	if err != nil {
		panic(rt.NewTypeError(err.Error()))
	}
	return config
}

func functionArg(rt *goja.Runtime, v goja.Value, name string) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(rt.NewTypeError(name + " must be a function"))
	}
	return fn
}
