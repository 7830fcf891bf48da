package reactor

import (
	"errors"
	"runtime/debug"

	mapset "github.com/deckarep/golang-set/v2"
)

type State uint8

const (
	Idle State = iota
	Scheduled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// Boundary defers fn to run once, after the current unit of work and before
// the next external task.
type Boundary interface {
	Defer(fn func())
}

type BoundaryFunc func(fn func())

func (f BoundaryFunc) Defer(fn func()) {
	f(fn)
}

// Scheduler collects invalidated expressions into a deduplicated FIFO queue
// and updates them all in one flush.
type Scheduler struct {
	sys         *System
	boundary    Boundary
	updateLimit int

	queue    []*Expression
	queued   mapset.Set[uint64]
	state    State
	flushing bool
}

func newScheduler(sys *System, boundary Boundary, updateLimit int) *Scheduler {
	return &Scheduler{
		sys:         sys,
		boundary:    boundary,
		updateLimit: updateLimit,
		queued:      mapset.NewThreadUnsafeSet[uint64](),
	}
}

func (s *Scheduler) State() State {
	return s.state
}

func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Notify queues e for the next flush. The first notification after idle arms
// the boundary; repeats within the same batch are no-ops.
func (s *Scheduler) Notify(e *Expression) {
	if e.disposed || s.queued.Contains(e.id) {
		return
	}
	if s.state == Idle {
		s.state = Scheduled
		if s.boundary != nil {
			s.boundary.Defer(s.flushAtBoundary)
		}
	}
	s.queued.Add(e.id)
	s.queue = append(s.queue, e)
}

// Flush updates queued expressions one at a time, removing each before it
// runs, until nothing is left, so cascades triggered by observers finish
// before Flush returns. A failing expression does not stop the others; all
// failures come back joined. With an update limit configured, updates of an
// expression past the limit are dropped with ErrUpdateLimit.
func (s *Scheduler) Flush() error {
	if s.flushing {
		return nil
	}
	s.flushing = true
	defer func() {
		s.flushing = false
	}()

	var (
		errs    []error
		updated int
		runs    map[uint64]int
	)
	for len(s.queue) > 0 {
		e := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.queued.Remove(e.id)

		if e.disposed {
			continue
		}
		if s.updateLimit > 0 {
			if runs == nil {
				runs = map[uint64]int{}
			}
			runs[e.id]++
			if runs[e.id] > s.updateLimit {
				errs = append(errs, &UpdateError{ExpressionID: e.id, Phase: PhaseUpdate, Err: ErrUpdateLimit})
				continue
			}
		}

		updated++
		if err := s.update(e); err != nil {
			errs = append(errs, err)
		}
	}
	s.queue = nil
	s.state = Idle

	s.sys.logger.Debug("flushed", "updated", updated, "failed", len(errs))
	return errors.Join(errs...)
}

func (s *Scheduler) update(e *Expression) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &UpdateError{
				ExpressionID: e.id,
				Phase:        PhaseUpdate,
				Err:          &PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()
	return e.Update()
}

func (s *Scheduler) flushAtBoundary() {
	if err := s.Flush(); err != nil {
		s.sys.reportError(err)
	}
}
