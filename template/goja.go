package template

import (
	"errors"
	"fmt"
	"math"

	"github.com/delaneyj/batchparty/reactor"
	"github.com/dop251/goja"
)

type gojaEngine struct {
	vm *goja.Runtime
}

// Goja returns a JavaScript engine. Programs run in one runtime owned by the
// engine, so an engine must only be used from the goroutine that drives its
// reactor.System.
func Goja() HandlerEngine {
	return &gojaEngine{vm: goja.New()}
}

func (g *gojaEngine) Name() string {
	return "goja"
}

func (g *gojaEngine) Compile(src string, _ []string) (Program, error) {
	return g.compile(src, fmt.Sprintf("(function($event){ with (this) { return (%s); } })", src))
}

func (g *gojaEngine) CompileHandler(src string, _ []string) (Program, error) {
	return g.compile(src, fmt.Sprintf("(function($event){ with (this) { %s\n} })", src))
}

func (g *gojaEngine) compile(src, wrapped string) (Program, error) {
	if src == "" {
		return nil, errors.New("expression must not be empty")
	}
	program, err := goja.Compile("", wrapped, false)
	if err != nil {
		return nil, err
	}
	value, err := g.vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("compiled %q is not callable", src)
	}
	return &gojaProgram{vm: g.vm, src: src, fn: fn}, nil
}

type gojaProgram struct {
	vm  *goja.Runtime
	src string
	fn  goja.Callable
}

func (p *gojaProgram) Eval(scope *reactor.Object, tr *reactor.Tracker, event any) (any, error) {
	this := p.vm.NewDynamicObject(&gojaScope{vm: p.vm, scope: scope, tr: tr})
	value, err := p.fn(this, p.vm.ToValue(event))
	if err != nil {
		return nil, &EvalError{Engine: "goja", Source: p.src, Err: err}
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// gojaScope exposes a reactor.Object as the with-scope of a program. Reads
// are tracked through tr, writes go through Set so dependents are notified.
type gojaScope struct {
	vm    *goja.Runtime
	scope *reactor.Object
	tr    *reactor.Tracker
}

func (s *gojaScope) Get(key string) goja.Value {
	v, ok := s.scope.Get(s.tr, key)
	if !ok {
		return goja.Undefined()
	}
	return s.vm.ToValue(v)
}

func (s *gojaScope) Set(key string, val goja.Value) bool {
	s.scope.Set(key, keepKind(s.scope.Value(nil, key), val.Export()))
	return true
}

// Has does not track: the with statement checks every free identifier.
func (s *gojaScope) Has(key string) bool {
	return s.scope.Has(key)
}

func (s *gojaScope) Delete(key string) bool {
	s.scope.Delete(key)
	return true
}

func (s *gojaScope) Keys() []string {
	return s.scope.Keys()
}

// keepKind converts JavaScript numbers back to the Go kind already stored
// under the key, so a handler running count++ leaves an int an int. A
// fractional result written over an integer is truncated toward zero, as
// count = count / 2 would in Go. NaN, infinities and values out of int64
// range are stored as float64.
func keepKind(prev, next any) any {
	switch prev.(type) {
	case int:
		switch n := next.(type) {
		case int64:
			return int(n)
		case float64:
			if fitsInt64(n) {
				return int(n)
			}
		}
	case float64:
		if n, ok := next.(int64); ok {
			return float64(n)
		}
	case int64:
		if n, ok := next.(float64); ok && fitsInt64(n) {
			return int64(n)
		}
	}
	return next
}

func fitsInt64(f float64) bool {
	return !math.IsNaN(f) && f >= math.MinInt64 && f < math.MaxInt64
}
