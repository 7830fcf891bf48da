// Package identity hands out stable numeric ids for heap objects without
// keeping those objects alive.
package identity

import (
	"runtime"
	"sync"
	"weak"
)

// Registry maps object identity to a uint64. Entries are keyed by weak
// pointers and dropped once the object is reclaimed. Ids start at 1 and are
// never handed out twice.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	ids    map[any]uint64
}

func New() *Registry {
	return &Registry{ids: map[any]uint64{}}
}

// Of returns the id of p, assigning one on first request. A nil pointer has id 0.
func Of[T any](r *Registry, p *T) uint64 {
	if p == nil {
		return 0
	}
	key := weak.Make(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[key]; ok {
		return id
	}
	r.nextID++
	id := r.nextID
	r.ids[key] = id

	runtime.AddCleanup(p, r.forget, any(key))
	return id
}

// Lookup returns the id of p without assigning one.
func Lookup[T any](r *Registry, p *T) (uint64, bool) {
	if p == nil {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[weak.Make(p)]
	return id, ok
}

// Len reports how many live objects currently hold an id.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Registry) forget(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, key)
}
