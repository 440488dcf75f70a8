// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package addon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/alpaca/bridge"
	"github.com/ava-labs/alpaca/client"
	"github.com/ava-labs/alpaca/devnet"
	"github.com/ava-labs/alpaca/failure"
	"github.com/ava-labs/alpaca/host"
)

const waitTimeout = 10 * time.Second

// readyCall is what onReady received, exported on the loop goroutine.
type readyCall struct {
	failed   bool
	message  string
	kind     int64
	tag      string
	accounts []map[string]interface{}
}

type harness struct {
	t       *testing.T
	loop    *host.Loop
	adapter *Adapter
	ready   chan readyCall
	blocks  chan map[string]interface{}
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:      t,
		loop:   host.New(),
		ready:  make(chan readyCall, 16),
		blocks: make(chan map[string]interface{}, 16),
	}
	h.adapter = New(h.loop)
	h.loop.Start()
	t.Cleanup(func() {
		h.adapter.Close()
		h.loop.Stop()
	})

	h.do(func(rt *goja.Runtime) error {
		exports := rt.NewObject()
		if err := h.adapter.Register(rt, exports); err != nil {
			return err
		}
		if err := rt.Set("alpaca", exports); err != nil {
			return err
		}
		if err := rt.Set("onReady", h.onReady(rt)); err != nil {
			return err
		}
		return rt.Set("onBlock", func(call goja.FunctionCall) goja.Value {
			block, _ := call.Argument(0).Export().(map[string]interface{})
			h.blocks <- block
			return goja.Undefined()
		})
	})
	return h
}

func (h *harness) onReady(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		rc := readyCall{}
		if err := call.Argument(0); !goja.IsNull(err) && !goja.IsUndefined(err) {
			obj := err.ToObject(rt)
			rc.failed = true
			rc.message = obj.Get("message").String()
			rc.kind = obj.Get("type").ToInteger()
			rc.tag = obj.Get("tag").String()
		}
		if accounts := call.Argument(1); !goja.IsUndefined(accounts) {
			for _, acc := range accounts.Export().([]interface{}) {
				rc.accounts = append(rc.accounts, acc.(map[string]interface{}))
			}
		}
		h.ready <- rc
		return goja.Undefined()
	}
}

// do runs [task] on the loop and waits for it.
func (h *harness) do(task host.Task) {
	done := make(chan error, 1)
	require.True(h.t, h.loop.RunOnLoop(func(rt *goja.Runtime) error {
		err := task(rt)
		done <- err
		return err
	}))
	select {
	case err := <-done:
		require.NoError(h.t, err)
	case <-time.After(waitTimeout):
		require.FailNow(h.t, "loop did not run task")
	}
}

// script runs [src] on the loop and returns the exception it threw, if any.
func (h *harness) script(src string) error {
	done := make(chan error, 1)
	require.True(h.t, h.loop.RunOnLoop(func(rt *goja.Runtime) error {
		_, err := rt.RunString(src)
		done <- err
		return nil
	}))
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		require.FailNow(h.t, "loop did not run script")
		return nil
	}
}

func (h *harness) waitReady() readyCall {
	select {
	case rc := <-h.ready:
		return rc
	case <-time.After(waitTimeout):
		require.FailNow(h.t, "onReady was not called")
		return readyCall{}
	}
}

func (h *harness) waitBlock() map[string]interface{} {
	select {
	case blk := <-h.blocks:
		return blk
	case <-time.After(waitTimeout):
		require.FailNow(h.t, "onBlock was not called")
		return nil
	}
}

func freePort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestCreateServerDeliversAccounts(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	require.NoError(t, h.script(`alpaca.createServer({seed: 42, totalAccounts: 3, port: 0}, onReady, onBlock)`))
	rc := h.waitReady()
	require.False(t, rc.failed, rc.message)
	require.Len(t, rc.accounts, 3)
	for _, acc := range rc.accounts {
		for _, field := range []string{"accountAddress", "publicKey", "privateKey", "balance"} {
			assert.Contains(acc, field)
		}
		assert.Equal("0xde0b6b3a7640000", acc["balance"])
	}

	select {
	case rc := <-h.ready:
		assert.FailNow("onReady called twice", "%+v", rc)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCreateServerRejectsOutOfRangeConfig(t *testing.T) {
	h := newHarness(t)

	err := h.script(`alpaca.createServer({seed: 42, totalAccounts: 300, port: 0}, onReady, onBlock)`)
	require.Error(t, err)
	var exception *goja.Exception
	require.ErrorAs(t, err, &exception)
	assert.Contains(t, exception.Error(), "TypeError")
	assert.Contains(t, exception.Error(), "totalAccounts")

	select {
	case <-h.ready:
		assert.FailNow(t, "onReady called for an invalid config")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCreateServerRequiresCallbacks(t *testing.T) {
	h := newHarness(t)
	err := h.script(`alpaca.createServer({seed: 1, totalAccounts: 1, port: 0}, 5, onBlock)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "onReady must be a function")
}

func TestBlockNotification(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)
	port := freePort(t)

	require.NoError(t, h.script(fmt.Sprintf(`alpaca.createServer({seed: 42, totalAccounts: 2, port: %d}, onReady, onBlock)`, port)))
	rc := h.waitReady()
	require.False(t, rc.failed, rc.message)

	from, err := ids.ShortFromString(rc.accounts[0]["accountAddress"].(string))
	require.NoError(t, err)
	to, err := ids.ShortFromString(rc.accounts[1]["accountAddress"].(string))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	cli := client.New(fmt.Sprintf("http://127.0.0.1:%d/rpc", port))

	txID, err := cli.Transfer(ctx, from, to, 1_000)
	require.NoError(t, err)
	blk, err := cli.CreateBlock(ctx)
	require.NoError(t, err)

	notified := h.waitBlock()
	assert.Equal(blk.BlockID.String(), notified["blockID"])
	assert.Equal("0", notified["number"])
	txs, ok := notified["transactions"].([]interface{})
	require.True(t, ok)
	require.Len(t, txs, 1)
	assert.Equal(txID.String(), txs[0].(map[string]interface{})["txID"])

	// Reads don't mine, so they must not notify again.
	_, err = cli.BlockNumber(ctx)
	require.NoError(t, err)
	select {
	case blk := <-h.blocks:
		assert.FailNow("unexpected second notification", "%v", blk)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestListenerInUse(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	require.NoError(t, h.script(fmt.Sprintf(`alpaca.createServer({seed: 20, totalAccounts: 2, port: %d}, onReady, onBlock)`, port)))
	rc := h.waitReady()
	require.True(t, rc.failed)
	assert.Contains(rc.message, "error creating server listener: ")
	assert.EqualValues(failure.Devnet, rc.kind)
	assert.Equal(failure.Tag, rc.tag)
	assert.Empty(rc.accounts)
}

func TestInvalidEngineConfig(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	require.NoError(t, h.script(`alpaca.createServer({seed: 1, totalAccounts: 1, port: 0, blockGeneration: "sometimes"}, onReady, onBlock)`))
	rc := h.waitReady()
	require.True(t, rc.failed)
	assert.EqualValues(failure.Devnet, rc.kind)
	assert.Contains(rc.message, "sometimes")
}

func TestClosedAdapter(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)
	h.adapter.Close()

	require.NoError(t, h.script(`alpaca.createServer({seed: 1, totalAccounts: 1, port: 0}, onReady, onBlock)`))
	rc := h.waitReady()
	require.True(t, rc.failed)
	assert.EqualValues(failure.Internal, rc.kind)
	assert.Contains(rc.message, errAdapterClosed.Error())
}

func TestStartDevnetPromise(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	settled := make(chan []interface{}, 1)
	h.do(func(rt *goja.Runtime) error {
		return rt.Set("settled", func(ok bool, v goja.Value) {
			settled <- []interface{}{ok, v.Export()}
		})
	})
	require.NoError(t, h.script(`
		alpaca.startDevnet({seed: 7, totalAccounts: 2, port: 0}, onBlock).then(
			function(accounts) { settled(true, accounts.length); },
			function(err) { settled(false, err.message); }
		);
	`))

	select {
	case res := <-settled:
		assert.Equal(true, res[0], res[1])
		assert.EqualValues(2, res[1])
	case <-time.After(waitTimeout):
		require.FailNow(t, "promise was not settled")
	}
}

func TestExportedConstants(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	result := make(chan []interface{}, 1)
	h.do(func(rt *goja.Runtime) error {
		v, err := rt.RunString(`[alpaca.ErrorType.InternalError, alpaca.ErrorType.DevnetError, alpaca.tag]`)
		if err != nil {
			return err
		}
		result <- v.Export().([]interface{})
		return nil
	})
	res := <-result
	assert.EqualValues(0, res[0])
	assert.EqualValues(1, res[1])
	assert.Equal(failure.Tag, res[2])
}

func TestEngineFailureClosesBridges(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	var (
		ready  *readyBridge
		blocks *blockBridge
	)
	h.do(func(rt *goja.Runtime) error {
		onReady, _ := goja.AssertFunction(rt.Get("onReady"))
		onBlock, _ := goja.AssertFunction(rt.Get("onBlock"))
		ready = bridge.New[bridge.Result[[]AccountData]](onReady, h.loop.Channel(), bridge.Promisified[[]AccountData])
		blocks = bridge.New[json.RawMessage](onBlock, h.loop.Channel(), bridge.JSON[json.RawMessage])
		h.adapter.start(DevnetConfig{BlockGeneration: devnet.BlockGeneration("sometimes")}, ready, blocks)
		return nil
	})
	rc := h.waitReady()
	require.True(t, rc.failed)
	assert.EqualValues(failure.Devnet, rc.kind)

	// Both bridges are closed: later calls are dropped.
	ready.Call(bridge.Ok[[]AccountData](nil))
	blocks.Call(json.RawMessage(`{}`))
	h.do(func(*goja.Runtime) error { return nil })
	assert.Empty(h.ready)
	assert.Empty(h.blocks)
	assert.Zero(ready.Pending())
	assert.Zero(blocks.Pending())
}
