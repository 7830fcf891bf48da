package template

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/batchparty/reactor"
)

// Program is a compiled expression or handler body. Reads of scope
// properties go through tr; event is bound to $event where the engine
// supports it.
type Program interface {
	Eval(scope *reactor.Object, tr *reactor.Tracker, event any) (any, error)
}

// Engine compiles binding expressions. keys lists the scope properties known
// at compile time.
type Engine interface {
	Name() string
	Compile(src string, keys []string) (Program, error)
}

// HandlerEngine also compiles statement bodies for event handlers.
type HandlerEngine interface {
	Engine
	CompileHandler(src string, keys []string) (Program, error)
}

type CompileError struct {
	Engine string
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("template: %s: compile %q: %v", e.Engine, e.Source, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

type EvalError struct {
	Engine string
	Source string
	Err    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("template: %s: eval %q: %v", e.Engine, e.Source, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

type cacheEntry struct {
	engine  string
	source  string
	handler bool
	program Program
}

// programCache keeps compiled programs keyed by an xxhash of engine, kind,
// source and declared keys.
type programCache struct {
	entries map[uint64]cacheEntry
}

func newProgramCache() *programCache {
	return &programCache{entries: map[uint64]cacheEntry{}}
}

func cacheKey(engine string, handler bool, src string, keys []string) uint64 {
	d := xxhash.New()
	d.WriteString(engine)
	if handler {
		d.WriteString("\x00handler")
	}
	d.WriteString("\x00")
	d.WriteString(src)
	for _, k := range keys {
		d.WriteString("\x00")
		d.WriteString(k)
	}
	return d.Sum64()
}

func (c *programCache) loadOrCompile(engine string, handler bool, src string, keys []string, compile func() (Program, error)) (Program, error) {
	key := cacheKey(engine, handler, src, keys)
	if entry, ok := c.entries[key]; ok && entry.engine == engine && entry.source == src && entry.handler == handler {
		return entry.program, nil
	}
	program, err := compile()
	if err != nil {
		return nil, &CompileError{Engine: engine, Source: src, Err: err}
	}
	c.entries[key] = cacheEntry{engine: engine, source: src, handler: handler, program: program}
	return program, nil
}

func (c *programCache) len() int {
	return len(c.entries)
}
