// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package addon exposes the devnet to the host: createServer boots an
// engine and its server from the loop goroutine and reports back through
// host callbacks.
package addon

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/alpaca/api"
	"github.com/ava-labs/alpaca/bridge"
	"github.com/ava-labs/alpaca/devnet"
	"github.com/ava-labs/alpaca/failure"
	"github.com/ava-labs/alpaca/host"
)

var (
	errAdapterClosed  = errors.New("adapter is closed")
	errInvalidOptions = errors.New("invalid scheduler options")
)

// AccountData is a predeployed account as delivered to onReady.
type AccountData = api.AccountReply

type (
	readyBridge = bridge.Bridge[bridge.Result[[]AccountData]]
	blockBridge = bridge.Bridge[json.RawMessage]
)

// Adapter boots devnet servers on behalf of the host and owns their worker
// goroutines.
type Adapter struct {
	loop         *host.Loop
	log          log.Logger
	serverConfig api.Config
	engineOpts   []devnet.Option

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used by the adapter and the servers it starts.
func WithLogger(logger log.Logger) Option {
	return func(a *Adapter) {
		a.log = logger
	}
}

// WithServerConfig sets the configuration of every server started.
func WithServerConfig(config api.Config) Option {
	return func(a *Adapter) {
		a.serverConfig = config
	}
}

// WithClock sets the wall clock of every engine started.
func WithClock(clock func() time.Time) Option {
	return func(a *Adapter) {
		a.engineOpts = append(a.engineOpts, devnet.WithClock(clock))
	}
}

// New returns an adapter scheduling host callbacks on [loop].
func New(loop *host.Loop, opts ...Option) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		loop:         loop,
		log:          log.New("module", "addon"),
		serverConfig: api.DefaultConfig(),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close stops every server and waits for their workers to exit. It must
// not be called from the loop goroutine, which workers wait on while they
// deliver onReady.
func (a *Adapter) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
}

// start boots a devnet described by [config]. It runs on the loop
// goroutine; every failure from here on is reported through [ready].
func (a *Adapter) start(config DevnetConfig, ready *readyBridge, blocks *blockBridge) {
	engineConfig := config.EngineConfig()

	opts := append([]devnet.Option{devnet.WithLogger(a.log.New("component", "devnet"))}, a.engineOpts...)
	chain, err := devnet.New(engineConfig, opts...)
	if err != nil {
		a.abort(ready, blocks, failure.New(failure.Devnet, err))
		return
	}
	accounts := api.FormatAccounts(chain.PredeployedAccounts())

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.abort(ready, blocks, failure.Internalf("failed to start worker: %w", errAdapterClosed))
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		defer blocks.Close()

		a.serve(engineConfig.Address(), chain, accounts, ready, blocks)
	}()
}

// abort reports [err] through [ready] and closes both bridges without
// waiting. It runs on the loop goroutine, which is busy running us.
func (a *Adapter) abort(ready *readyBridge, blocks *blockBridge, err *failure.Error) {
	a.log.Error("failed to start devnet", "kind", err.Kind, "error", err)
	ready.Call(bridge.Fail[[]AccountData](err))
	ready.CloseOnLoop()
	blocks.CloseOnLoop()
}

// serve runs on the worker goroutine.
func (a *Adapter) serve(
	addr string,
	chain *devnet.Devnet,
	accounts []AccountData,
	ready *readyBridge,
	blocks *blockBridge,
) {
	ctx, err := a.serverContext()
	if err != nil {
		a.fail(ready, err)
		return
	}

	server, err := a.buildServer(addr, chain, blocks)
	if err != nil {
		a.fail(ready, err)
		return
	}

	ready.Call(bridge.Ok(accounts))
	ready.Close()

	if err := server.Serve(ctx); err != nil {
		a.log.Error("server stopped", "addr", addr, "error", err)
	}
}

// serverContext checks that the adapter can still run a server and returns
// the adapter's context, which bounds the lifetime of every server it
// started. The server's own goroutines stand in for a scheduler, so failing
// here is what a scheduler creation failure maps to.
func (a *Adapter) serverContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, failure.Internalf("failed to create scheduler: %w", errAdapterClosed)
	}
	if c := a.serverConfig; c.RequestsPerSecond < 0 || c.Burst < 0 || c.ShutdownTimeout < 0 {
		return nil, failure.Internalf("failed to create scheduler: %w", errInvalidOptions)
	}
	return a.ctx, nil
}

func (a *Adapter) buildServer(addr string, chain *devnet.Devnet, blocks *blockBridge) (*api.Server, error) {
	registry := prometheus.NewRegistry()

	rpcHandler, err := api.NewJSONRPCHandler(api.NewService(chain))
	if err != nil {
		return nil, err
	}
	tracker, err := api.NewChangeTracker(rpcHandler, chain, blocks, registry)
	if err != nil {
		return nil, err
	}
	return api.NewServerBuilder(addr, tracker, api.NewHTTPHandler(chain)).
		SetConfig(a.serverConfig).
		SetRegistry(registry).
		SetLogger(a.log.New("component", "api")).
		Build()
}

func (a *Adapter) fail(ready *readyBridge, err error) {
	classified := failure.Classify(err)
	a.log.Error("failed to start devnet", "kind", classified.Kind, "error", classified)
	ready.Call(bridge.Fail[[]AccountData](classified))
	ready.Close()
}
