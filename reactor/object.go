package reactor

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/batchparty/identity"
)

// StateKey names one observable slot: a property of one object.
type StateKey struct {
	Object uint64
	Name   string
}

func (k StateKey) String() string {
	return fmt.Sprintf("%d.%s", k.Object, k.Name)
}

// KeyOf derives the key for a property of o without touching o.
func KeyOf(o *Object, name string) StateKey {
	return StateKey{Object: o.id, Name: name}
}

// Object is a mutable record whose reads are attributed to the evaluating
// expression and whose writes invalidate the expressions that read it.
type Object struct {
	sys    *System
	id     uint64
	values map[string]any

	// property -> expressions that read it; may hold stale edges until the
	// next write to that property
	calledBy map[string]mapset.Set[*Expression]
}

func NewObject(sys *System, initial map[string]any) *Object {
	o := &Object{
		sys:      sys,
		values:   make(map[string]any, len(initial)),
		calledBy: map[string]mapset.Set[*Expression]{},
	}
	maps.Copy(o.values, initial)
	o.id = identity.Of(sys.ids, o)
	return o
}

func (o *Object) ID() uint64 {
	return o.id
}

func (o *Object) System() *System {
	return o.sys
}

// Get returns the property value and, when tr is live, records that the
// evaluating expression depends on it.
func (o *Object) Get(tr *Tracker, key string) (any, bool) {
	if tr.live() && tr.expr.track(o, KeyOf(o, key)) {
		edges, ok := o.calledBy[key]
		if !ok {
			edges = mapset.NewThreadUnsafeSet[*Expression]()
			o.calledBy[key] = edges
		}
		edges.Add(tr.expr)
	}
	v, ok := o.values[key]
	return v, ok
}

// Value is Get without the presence flag.
func (o *Object) Value(tr *Tracker, key string) any {
	v, _ := o.Get(tr, key)
	return v
}

// Set writes the property and schedules its dependents.
func (o *Object) Set(key string, value any) {
	o.values[key] = value
	o.notify(key)
}

// Delete removes the property and schedules its dependents.
func (o *Object) Delete(key string) bool {
	_, existed := o.values[key]
	delete(o.values, key)
	o.notify(key)
	return existed
}

// Has checks existence. Existence checks are not tracked.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys lists the property names, sorted. Not tracked.
func (o *Object) Keys() []string {
	return slices.Sorted(maps.Keys(o.values))
}

func (o *Object) Len() int {
	return len(o.values)
}

// Snapshot copies the current values without tracking.
func (o *Object) Snapshot() map[string]any {
	return maps.Clone(o.values)
}

// Dependents counts the edges recorded for key, stale ones included.
func (o *Object) Dependents(key string) int {
	edges, ok := o.calledBy[key]
	if !ok {
		return 0
	}
	return edges.Cardinality()
}

func (o *Object) notify(name string) {
	edges, ok := o.calledBy[name]
	if !ok {
		return
	}
	key := KeyOf(o, name)

	dependents := edges.ToSlice()
	slices.SortFunc(dependents, func(a, b *Expression) int {
		return cmp.Compare(a.id, b.id)
	})
	for _, e := range dependents {
		if !e.Depends(key) {
			// stale: the latest evaluation no longer reads this key
			edges.Remove(e)
			continue
		}
		e.sys.scheduler.Notify(e)
	}
	if edges.Cardinality() == 0 {
		delete(o.calledBy, name)
	}
}

func (o *Object) forget(e *Expression) {
	for name, edges := range o.calledBy {
		edges.Remove(e)
		if edges.Cardinality() == 0 {
			delete(o.calledBy, name)
		}
	}
}
