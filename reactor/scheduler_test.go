package reactor_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/batchparty/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// armedBoundary records deferred flushes so a test decides when the
// boundary fires.
type armedBoundary struct {
	armed []func()
}

func (b *armedBoundary) Defer(fn func()) {
	b.armed = append(b.armed, fn)
}

func (b *armedBoundary) fire() {
	armed := b.armed
	b.armed = nil
	for _, fn := range armed {
		fn()
	}
}

func TestManyWritesOneUpdate(t *testing.T) {
	sys := reactor.New()
	state := reactor.NewObject(sys, map[string]any{"a": 0, "b": 0, "c": 0})

	calls := 0
	_, err := reactor.NewExpression(sys, state, func(_ any, tr *reactor.Tracker) (any, error) {
		return state.Value(tr, "a").(int) + state.Value(tr, "b").(int) + state.Value(tr, "c").(int), nil
	}, func(any) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		state.Set("a", i)
		state.Set("b", i)
		state.Set("c", i)
	}
	assert.Equal(t, 1, sys.Pending())

	require.NoError(t, sys.Flush())
	assert.Equal(t, 2, calls)
	assert.Zero(t, sys.Pending())
}

func TestCascadeDrainsBeforeFlushReturns(t *testing.T) {
	//   a
	//   |
	//   E1 --writes--> b
	//                  |
	//                  E2
	sys := reactor.New()
	state := reactor.NewObject(sys, map[string]any{"a": 1, "b": 0})

	var order []string
	_, err := reactor.NewExpression(sys, state, readInt(state, "a"), func(v any) error {
		order = append(order, "e1")
		state.Set("b", v.(int)*10)
		return nil
	})
	require.NoError(t, err)

	var e2Value int
	_, err = reactor.NewExpression(sys, state, readInt(state, "b"), func(v any) error {
		order = append(order, "e2")
		e2Value = v.(int)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, sys.Flush())
	order = nil

	state.Set("a", 4)
	require.NoError(t, sys.Flush())
	assert.Equal(t, []string{"e1", "e2"}, order)
	assert.Equal(t, 40, e2Value)
	assert.Equal(t, reactor.Idle, sys.State())
}

func TestFlushIsFirstInFirstOut(t *testing.T) {
	sys := reactor.New()
	state := reactor.NewObject(sys, map[string]any{"a": 0, "b": 0})

	var order []string
	_, err := reactor.NewExpression(sys, state, readInt(state, "b"), func(any) error {
		order = append(order, "reads b")
		return nil
	})
	require.NoError(t, err)
	_, err = reactor.NewExpression(sys, state, readInt(state, "a"), func(any) error {
		order = append(order, "reads a")
		return nil
	})
	require.NoError(t, err)
	order = nil

	state.Set("a", 1)
	state.Set("b", 1)
	require.NoError(t, sys.Flush())
	assert.Equal(t, []string{"reads a", "reads b"}, order)
}

func TestBoundaryArmedOncePerBatch(t *testing.T) {
	boundary := &armedBoundary{}
	sys := reactor.New(reactor.WithBoundary(boundary))
	state := reactor.NewObject(sys, map[string]any{"a": 0, "b": 0})

	var seen []int
	_, err := reactor.NewExpression(sys, state, func(_ any, tr *reactor.Tracker) (any, error) {
		return state.Value(tr, "a").(int) + state.Value(tr, "b").(int), nil
	}, func(v any) error {
		seen = append(seen, v.(int))
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, boundary.armed, "construction updates synchronously")

	state.Set("a", 1)
	state.Set("b", 2)
	state.Set("a", 3)
	assert.Len(t, boundary.armed, 1)
	assert.Equal(t, reactor.Scheduled, sys.State())

	boundary.fire()
	assert.Equal(t, []int{0, 5}, seen)
	assert.Equal(t, reactor.Idle, sys.State())

	state.Set("b", 0)
	assert.Len(t, boundary.armed, 1)
	boundary.fire()
	assert.Equal(t, []int{0, 5, 3}, seen)
}

func TestBoundaryFuncAdapter(t *testing.T) {
	var deferred []func()
	sys := reactor.New(reactor.WithBoundary(reactor.BoundaryFunc(func(fn func()) {
		deferred = append(deferred, fn)
	})))
	state := reactor.NewObject(sys, map[string]any{"a": 0})
	_, err := reactor.NewExpression(sys, state, readInt(state, "a"), nil)
	require.NoError(t, err)

	state.Set("a", 1)
	require.Len(t, deferred, 1)
	deferred[0]()
	assert.Zero(t, sys.Pending())
}

func TestObserverFailureDoesNotStallBatch(t *testing.T) {
	sys := reactor.New()
	state := reactor.NewObject(sys, map[string]any{"a": 0})
	boom := errors.New("observer failed")

	values := map[string]int{}
	observe := func(name string, fail bool) reactor.Observer {
		return func(v any) error {
			values[name] = v.(int)
			if fail && v.(int) > 0 {
				return boom
			}
			return nil
		}
	}
	for _, name := range []string{"first", "failing", "last"} {
		_, err := reactor.NewExpression(sys, state, readInt(state, "a"), observe(name, name == "failing"))
		require.NoError(t, err)
	}

	state.Set("a", 7)
	err := sys.Flush()
	require.ErrorIs(t, err, boom)

	var updateErr *reactor.UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, reactor.PhaseObserve, updateErr.Phase)
	assert.Equal(t, map[string]int{"first": 7, "failing": 7, "last": 7}, values)
	assert.Equal(t, reactor.Idle, sys.State())
}

func TestPanicDuringFlushIsIsolated(t *testing.T) {
	sys := reactor.New()
	state := reactor.NewObject(sys, map[string]any{"a": 0})

	_, err := reactor.NewExpression(sys, state, func(_ any, tr *reactor.Tracker) (any, error) {
		if state.Value(tr, "a").(int) > 0 {
			panic("exploded")
		}
		return 0, nil
	}, nil)
	require.NoError(t, err)

	survivor := 0
	_, err = reactor.NewExpression(sys, state, readInt(state, "a"), func(v any) error {
		survivor = v.(int)
		return nil
	})
	require.NoError(t, err)

	state.Set("a", 3)
	err = sys.Flush()
	var panicErr *reactor.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "exploded", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Equal(t, 3, survivor)
	assert.Nil(t, sys.Active())
}

func TestBoundaryFlushReportsErrors(t *testing.T) {
	boundary := &armedBoundary{}
	var reported []error
	sys := reactor.New(
		reactor.WithBoundary(boundary),
		reactor.WithOnError(func(err error) {
			reported = append(reported, err)
		}),
	)
	state := reactor.NewObject(sys, map[string]any{"a": 0})
	boom := errors.New("observer failed")
	_, err := reactor.NewExpression(sys, state, readInt(state, "a"), func(v any) error {
		if v.(int) > 0 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)

	state.Set("a", 1)
	boundary.fire()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
}

func TestSelfInvalidationHitsUpdateLimit(t *testing.T) {
	sys := reactor.New(reactor.WithUpdateLimit(5))
	state := reactor.NewObject(sys, map[string]any{"n": 0})

	e, err := reactor.NewExpression(sys, state, readInt(state, "n"), func(v any) error {
		state.Set("n", v.(int)+1)
		return nil
	})
	require.NoError(t, err)

	err = sys.Flush()
	require.ErrorIs(t, err, reactor.ErrUpdateLimit)
	assert.Equal(t, 6, e.Runs())
	assert.Equal(t, reactor.Idle, sys.State())
	assert.Zero(t, sys.Pending())
}

func TestLongCascadeDrainsWithoutLimit(t *testing.T) {
	sys := reactor.New()
	state := reactor.NewObject(sys, map[string]any{"n": 1500})

	e, err := reactor.NewExpression(sys, state, readInt(state, "n"), func(v any) error {
		if n := v.(int); n > 0 {
			state.Set("n", n-1)
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, sys.Flush())
	assert.Equal(t, 0, state.Value(nil, "n"))
	assert.Equal(t, 1501, e.Runs())
	assert.Equal(t, reactor.Idle, sys.State())
}

func TestNestedFlushIsNoop(t *testing.T) {
	sys := reactor.New()
	state := reactor.NewObject(sys, map[string]any{"a": 0, "b": 0})

	var order []string
	_, err := reactor.NewExpression(sys, state, readInt(state, "a"), func(v any) error {
		order = append(order, "a")
		state.Set("b", v)
		assert.NoError(t, sys.Flush())
		order = append(order, "a done")
		return nil
	})
	require.NoError(t, err)
	_, err = reactor.NewExpression(sys, state, readInt(state, "b"), func(any) error {
		order = append(order, "b")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, sys.Flush())
	order = nil

	state.Set("a", 1)
	require.NoError(t, sys.Flush())
	assert.Equal(t, []string{"a", "a done", "b"}, order)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", reactor.Idle.String())
	assert.Equal(t, "scheduled", reactor.Scheduled.String())
	assert.Equal(t, "unknown", reactor.State(9).String())
}
