// Package loop runs tasks one at a time on a single goroutine and drains
// deferred microtasks after each task, before the next one starts. It is the
// flush boundary for a reactor.System:
//
//	l := loop.New()
//	sys := reactor.New(reactor.WithBoundary(l))
//	go l.Run(ctx)
//	l.Do(ctx, func() error { state.Set("count", 1); return nil })
//	// every dependent expression has updated here
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

const DefaultQueueSize = 256

var (
	ErrClosed  = errors.New("loop: closed")
	ErrRunning = errors.New("loop: already running")
)

type task struct {
	fn   func() error
	done chan error
}

type Loop struct {
	logger *slog.Logger
	tasks  chan task
	closed chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	running   bool

	// only touched by the loop goroutine
	microtasks []func()
}

type Option func(*Loop)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.tasks = make(chan task, n)
		}
	}
}

func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.New(slog.DiscardHandler),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.tasks == nil {
		l.tasks = make(chan task, DefaultQueueSize)
	}
	return l
}

// Run processes tasks until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		select {
		case t := <-l.tasks:
			err := l.runTask(t.fn)
			l.drain()
			if t.done != nil {
				t.done <- err
			}
		case <-l.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post queues fn as the next external task. It blocks while the queue is
// full.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	return l.post(ctx, task{fn: func() error {
		fn()
		return nil
	}})
}

// Do queues fn and waits until it and every microtask it caused have run.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := l.post(ctx, task{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-l.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Defer queues fn to run after the current task. Call it from the loop
// goroutine only.
func (l *Loop) Defer(fn func()) {
	l.microtasks = append(l.microtasks, fn)
}

func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
}

func (l *Loop) post(ctx context.Context, t task) error {
	select {
	case <-l.closed:
		return ErrClosed
	default:
	}
	select {
	case l.tasks <- t:
		return nil
	case <-l.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) drain() {
	for len(l.microtasks) > 0 {
		fn := l.microtasks[0]
		l.microtasks[0] = nil
		l.microtasks = l.microtasks[1:]
		if err := l.runTask(func() error {
			fn()
			return nil
		}); err != nil {
			l.logger.Error("microtask failed", "err", err)
		}
	}
	l.microtasks = nil
}

func (l *Loop) runTask(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("loop: task panic: %v", r)
		}
	}()
	return fn()
}
