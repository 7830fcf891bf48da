// Package reactor tracks which expressions read which object properties,
// re-runs exactly the expressions whose dependencies changed and coalesces
// those re-runs into one flush per scheduling boundary.
//
// A System is single threaded: create objects and expressions, write state
// and flush from one goroutine (see the loop package for an executor that
// supplies the flush boundary).
package reactor

import (
	"log/slog"

	"github.com/delaneyj/batchparty/identity"
)

// DefaultUpdateLimit leaves flushes uncapped: a flush drains until no
// cascading invalidation remains.
const DefaultUpdateLimit = 0

type OnErrorFunc func(err error)

type System struct {
	ids       *identity.Registry
	recorder  Recorder
	scheduler *Scheduler
	logger    *slog.Logger
	onError   OnErrorFunc
	nextID    uint64

	boundary    Boundary
	updateLimit int
}

type Option func(*System)

// WithBoundary arms b once per batch. Without a boundary the application
// drains pending work itself by calling Flush.
func WithBoundary(b Boundary) Option {
	return func(sys *System) {
		sys.boundary = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(sys *System) {
		if logger != nil {
			sys.logger = logger
		}
	}
}

// WithOnError receives failures of flushes started by the boundary, which
// have no caller to return them to.
func WithOnError(fn OnErrorFunc) Option {
	return func(sys *System) {
		sys.onError = fn
	}
}

// WithIdentity shares an identity registry between systems.
func WithIdentity(r *identity.Registry) Option {
	return func(sys *System) {
		sys.ids = r
	}
}

// WithUpdateLimit caps how often one expression may update during a single
// flush. Updates past the cap are dropped and reported as ErrUpdateLimit, so
// the expression may be left stale. Zero, the default, disables the cap.
func WithUpdateLimit(n int) Option {
	return func(sys *System) {
		sys.updateLimit = n
	}
}

func New(opts ...Option) *System {
	sys := &System{
		logger:      slog.New(slog.DiscardHandler),
		updateLimit: DefaultUpdateLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sys)
		}
	}
	if sys.ids == nil {
		sys.ids = identity.New()
	}
	sys.scheduler = newScheduler(sys, sys.boundary, sys.updateLimit)
	return sys
}

// Flush drains every pending expression, including work queued while
// draining. It is the explicit drain entry point for hosts without a boundary.
func (sys *System) Flush() error {
	return sys.scheduler.Flush()
}

func (sys *System) Pending() int {
	return sys.scheduler.Pending()
}

func (sys *System) State() State {
	return sys.scheduler.State()
}

// Active returns the expression currently evaluating, if any.
func (sys *System) Active() *Expression {
	return sys.recorder.Active()
}

func (sys *System) Identity() *identity.Registry {
	return sys.ids
}

func (sys *System) Scheduler() *Scheduler {
	return sys.scheduler
}

func (sys *System) reportError(err error) {
	if sys.onError != nil {
		sys.onError(err)
		return
	}
	sys.logger.Error("flush failed", "err", err)
}
