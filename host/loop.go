// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host provides the single-threaded JavaScript host the devnet is
// embedded in.
//
// A Loop owns a goja runtime and a FIFO task queue. Exactly one goroutine,
// the loop goroutine, ever touches the runtime: other goroutines hand work
// to it through RunOnLoop or a Channel and never block on it.
package host

import (
	"errors"
	"strings"
	"sync"

	"github.com/dop251/goja"

	log "github.com/inconshreveable/log15"
)

// ErrStopped is returned when a task is submitted to a stopped loop.
var ErrStopped = errors.New("host loop is stopped")

// Task is a unit of work run on the loop goroutine. A returned error is an
// uncaught host exception: it is logged and the loop carries on.
type Task func(rt *goja.Runtime) error

// Loop is a cooperative event loop around a goja runtime.
type Loop struct {
	rt  *goja.Runtime
	log log.Logger

	mu      sync.Mutex
	queue   []Task
	wakeup  chan struct{}
	stopped bool
	running bool
	done    chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for uncaught exceptions and console output.
func WithLogger(logger log.Logger) Option {
	return func(l *Loop) {
		l.log = logger
	}
}

// New returns a loop that is not yet running.
func New(opts ...Option) *Loop {
	l := &Loop{
		rt:     goja.New(),
		log:    log.New("module", "host"),
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	l.installConsole()
	return l
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start() {
	l.markRunning()
	go l.run(nil)
}

// Run runs [fn] on the calling goroutine, which becomes the loop goroutine,
// then processes tasks until Stop is called and the queue is drained.
func (l *Loop) Run(fn Task) {
	l.markRunning()
	l.run(fn)
}

func (l *Loop) markRunning() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		panic("host: loop is already running")
	}
	l.running = true
}

func (l *Loop) run(fn Task) {
	defer close(l.done)

	if fn != nil {
		l.exec(fn)
	}
	for {
		l.mu.Lock()
		queue := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, task := range queue {
			l.exec(task)
		}
		if len(queue) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-l.wakeup
	}
}

// Stop rejects new tasks, lets the loop drain those already queued and
// waits for it to exit. It must not be called from the loop goroutine.
// A loop that was never started drains its queue on the caller.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	running := l.running
	l.running = true
	l.mu.Unlock()
	l.wake()

	if !running {
		l.run(nil)
		return
	}
	<-l.done
}

// RunOnLoop schedules [fn]. It returns false if the loop is stopped.
func (l *Loop) RunOnLoop(fn Task) bool {
	return l.enqueue(fn) == nil
}

// Channel returns a handle other goroutines use to schedule tasks.
func (l *Loop) Channel() *Channel {
	return &Channel{loop: l}
}

func (l *Loop) enqueue(task Task) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.wake()
	return nil
}

func (l *Loop) wake() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

func (l *Loop) exec(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("panic in host task", "panic", r)
		}
	}()
	if err := task(l.rt); err != nil {
		l.log.Error("uncaught exception", "error", err)
	}
}

func (l *Loop) installConsole() {
	console := l.rt.NewObject()
	logFn := func(logf func(msg string, ctx ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.String()
			}
			logf(strings.Join(args, " "))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logFn(l.log.Info))
	_ = console.Set("error", logFn(l.log.Error))
	_ = l.rt.Set("console", console)
}
