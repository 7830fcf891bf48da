package reactor

import (
	"cmp"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Callable computes a value from scope. Reads it wants tracked must go
// through tr.
type Callable func(scope any, tr *Tracker) (any, error)

// Observer receives every value an expression computes.
type Observer func(value any) error

// Expression is a computed binding of (scope, callable, observer). Each
// evaluation records the state keys it read; a write to any of them
// schedules the expression for another update.
type Expression struct {
	id       uint64
	sys      *System
	scope    any
	callable Callable
	observer Observer
	tracker  Tracker

	// keys read during the most recent evaluation, replaced on every run
	dependsOn mapset.Set[StateKey]
	// every object that may hold an edge to this expression
	objects map[uint64]*Object

	runs       int
	evaluating bool
	disposed   bool
}

// NewExpression stores the binding and runs the first update. If that update
// fails the expression is disposed and the failure returned.
func NewExpression(sys *System, scope any, callable Callable, observer Observer) (*Expression, error) {
	if callable == nil {
		return nil, ErrNilCallable
	}
	sys.nextID++
	e := &Expression{
		id:        sys.nextID,
		sys:       sys,
		scope:     scope,
		callable:  callable,
		observer:  observer,
		dependsOn: mapset.NewThreadUnsafeSet[StateKey](),
		objects:   map[uint64]*Object{},
	}
	e.tracker.expr = e

	ok := false
	defer func() {
		if !ok {
			e.Dispose()
		}
	}()
	if err := e.Update(); err != nil {
		return nil, err
	}
	ok = true
	return e, nil
}

// Watch is the typed form of NewExpression.
func Watch[S, T any](sys *System, scope S, fn func(S, *Tracker) (T, error), observer func(T) error) (*Expression, error) {
	callable := func(_ any, tr *Tracker) (any, error) {
		return fn(scope, tr)
	}
	var obs Observer
	if observer != nil {
		obs = func(v any) error {
			t, _ := v.(T)
			return observer(t)
		}
	}
	return NewExpression(sys, scope, callable, obs)
}

func (e *Expression) ID() uint64 {
	return e.id
}

func (e *Expression) Scope() any {
	return e.scope
}

// Runs counts completed evaluations.
func (e *Expression) Runs() int {
	return e.runs
}

func (e *Expression) Disposed() bool {
	return e.disposed
}

// Evaluate runs the callable with this expression owning the recorder. The
// recorder is handed back on every exit path, panics included.
func (e *Expression) Evaluate() (value any, err error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	if e.evaluating {
		return nil, ErrReentrant
	}
	e.evaluating = true
	e.dependsOn = mapset.NewThreadUnsafeSet[StateKey]()

	prev := e.sys.recorder.enter(e)
	defer func() {
		e.sys.recorder.exit(prev)
		e.evaluating = false
	}()

	value, err = e.callable(e.scope, &e.tracker)
	if err != nil {
		return nil, &UpdateError{ExpressionID: e.id, Phase: PhaseEvaluate, Err: err}
	}
	e.runs++
	return value, nil
}

// Update evaluates and feeds the result to the observer.
func (e *Expression) Update() error {
	value, err := e.Evaluate()
	if err != nil {
		return err
	}
	if e.observer == nil {
		return nil
	}
	if err := e.observer(value); err != nil {
		return &UpdateError{ExpressionID: e.id, Phase: PhaseObserve, Err: err}
	}
	return nil
}

// Depends reports whether the most recent evaluation read key.
func (e *Expression) Depends(key StateKey) bool {
	return e.dependsOn.Contains(key)
}

// DependsOn returns the keys read by the most recent evaluation, sorted.
func (e *Expression) DependsOn() []StateKey {
	keys := e.dependsOn.ToSlice()
	slices.SortFunc(keys, func(a, b StateKey) int {
		if c := cmp.Compare(a.Object, b.Object); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return keys
}

// Dispose detaches the expression from every object it has read. Pending
// updates are skipped and later calls to Update return ErrDisposed.
func (e *Expression) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	for _, o := range e.objects {
		o.forget(e)
	}
	e.objects = nil
	e.dependsOn = mapset.NewThreadUnsafeSet[StateKey]()
}

func (e *Expression) track(o *Object, key StateKey) bool {
	if e.disposed {
		return false
	}
	e.dependsOn.Add(key)
	e.objects[o.id] = o
	return true
}
