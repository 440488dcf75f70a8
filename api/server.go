// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	log "github.com/inconshreveable/log15"
)

var (
	errNoRPCHandler  = errors.New("no JSON-RPC handler")
	errNoHTTPHandler = errors.New("no HTTP API handler")
	errNoRoutes      = errors.New("no JSON-RPC route")
)

// BuildError is returned when a server cannot be assembled or bound.
type BuildError struct {
	Op  string
	Err error
}

func (e *BuildError) Error() string { return "error " + e.Op + ": " + e.Err.Error() }

func (e *BuildError) Unwrap() error { return e.Err }

// Config tunes the HTTP server.
type Config struct {
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// RequestsPerSecond limits the request rate across all routes.
	// Zero disables the limit.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the server configuration used by default.
func DefaultConfig() Config {
	return Config{
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

type httpRoute struct {
	path    string
	method  string
	handler http.HandlerFunc
}

// Builder composes the JSON-RPC and HTTP API routes of a server.
type Builder struct {
	addr        string
	rpcHandler  http.Handler
	httpHandler *HTTPHandler
	config      Config
	registry    *prometheus.Registry
	log         log.Logger

	rpcRoutes  []string
	httpRoutes []httpRoute
}

// NewBuilder starts assembling a server listening on [addr].
func NewBuilder(addr string, rpcHandler http.Handler, httpHandler *HTTPHandler) *Builder {
	return &Builder{
		addr:        addr,
		rpcHandler:  rpcHandler,
		httpHandler: httpHandler,
		config:      DefaultConfig(),
		log:         log.New("module", "api"),
	}
}

// SetConfig replaces the server configuration.
func (b *Builder) SetConfig(config Config) *Builder {
	b.config = config
	return b
}

// SetRegistry registers request metrics on [registry] and serves it on /metrics.
func (b *Builder) SetRegistry(registry *prometheus.Registry) *Builder {
	b.registry = registry
	return b
}

// SetLogger sets the logger used by the access log.
func (b *Builder) SetLogger(logger log.Logger) *Builder {
	b.log = logger
	return b
}

// JSONRPCRoute serves the JSON-RPC handler on POST [path].
func (b *Builder) JSONRPCRoute(path string) *Builder {
	b.rpcRoutes = append(b.rpcRoutes, path)
	return b
}

// HTTPAPIRoute serves [handler] on [method] [path].
func (b *Builder) HTTPAPIRoute(path, method string, handler http.HandlerFunc) *Builder {
	b.httpRoutes = append(b.httpRoutes, httpRoute{path: path, method: method, handler: handler})
	return b
}

// Build assembles the router and binds the listener.
func (b *Builder) Build() (*Server, error) {
	switch {
	case b.rpcHandler == nil:
		return nil, &BuildError{Op: "assembling routes", Err: errNoRPCHandler}
	case b.httpHandler == nil:
		return nil, &BuildError{Op: "assembling routes", Err: errNoHTTPHandler}
	case len(b.rpcRoutes) == 0:
		return nil, &BuildError{Op: "assembling routes", Err: errNoRoutes}
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware(b.log))
	if b.registry != nil {
		m, err := newMetrics(b.registry)
		if err != nil {
			return nil, &BuildError{Op: "registering metrics", Err: err}
		}
		router.Use(metricsMiddleware(m))
		router.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	if b.config.RequestsPerSecond > 0 {
		burst := b.config.Burst
		if burst <= 0 {
			burst = 1
		}
		router.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(b.config.RequestsPerSecond), burst)))
	}

	for _, path := range b.rpcRoutes {
		router.Handle(path, b.rpcHandler).Methods(http.MethodPost)
	}
	for _, route := range b.httpRoutes {
		router.HandleFunc(route.path, route.handler).Methods(route.method)
	}

	listener, err := net.Listen("tcp", b.addr)
	if err != nil {
		return nil, &BuildError{Op: "creating server listener", Err: err}
	}

	return &Server{
		listener: listener,
		server: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: b.config.ReadHeaderTimeout,
		},
		shutdownTimeout: b.config.ShutdownTimeout,
		log:             b.log,
	}, nil
}

// Server is a bound, not yet serving, HTTP server.
type Server struct {
	listener        net.Listener
	server          *http.Server
	shutdownTimeout time.Duration
	log             log.Logger
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until [ctx] is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()
	s.log.Info("server listening", "addr", s.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped", "addr", s.Addr())
	return nil
}

// Close releases the listener of a server that was never served.
func (s *Server) Close() error {
	return s.listener.Close()
}

// NewServerBuilder wires the standard route table over the given handlers.
func NewServerBuilder(addr string, rpcHandler http.Handler, httpHandler *HTTPHandler) *Builder {
	return NewBuilder(addr, rpcHandler, httpHandler).
		JSONRPCRoute("/").
		JSONRPCRoute("/rpc").
		HTTPAPIRoute("/is_alive", http.MethodGet, httpHandler.IsAlive).
		HTTPAPIRoute("/predeployed_accounts", http.MethodGet, httpHandler.PredeployedAccounts).
		HTTPAPIRoute("/account_balance", http.MethodGet, httpHandler.AccountBalance).
		HTTPAPIRoute("/mint", http.MethodPost, httpHandler.Mint).
		HTTPAPIRoute("/create_block", http.MethodPost, httpHandler.CreateBlock).
		HTTPAPIRoute("/set_time", http.MethodPost, httpHandler.SetTime).
		HTTPAPIRoute("/increase_time", http.MethodPost, httpHandler.IncreaseTime)
}
