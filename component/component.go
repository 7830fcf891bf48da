// Package component defines custom tags backed by reactive state. Mounting a
// tag builds its state, stamps a private copy of its template and compiles
// the copy against that state.
package component

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/delaneyj/batchparty/reactor"
	"github.com/delaneyj/batchparty/template"
	"github.com/google/uuid"
)

var (
	ErrAlreadyDefined = errors.New("component: tag already defined")
	ErrInvalidTag     = errors.New("component: tag must be lowercase and contain a hyphen")
	ErrUnknownTag     = errors.New("component: unknown tag")
	ErrNoTarget       = errors.New("component: no element with that id")
	ErrDisposed       = errors.New("component: instance disposed")
)

// Factory returns the initial backing state for one instance.
type Factory func() map[string]any

type definition struct {
	template *template.Node
	factory  Factory
}

type Registry struct {
	sys      *reactor.System
	compiler *template.Compiler
	logger   *slog.Logger
	newID    func() string
	defs     map[string]definition
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDs replaces the instance id generator.
func WithIDs(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func NewRegistry(sys *reactor.System, compiler *template.Compiler, opts ...Option) *Registry {
	r := &Registry{
		sys:      sys,
		compiler: compiler,
		logger:   slog.New(slog.DiscardHandler),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
		defs: map[string]definition{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func validTag(tag string) bool {
	if !strings.Contains(tag, "-") || strings.HasPrefix(tag, "-") {
		return false
	}
	for _, ch := range tag {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-':
		default:
			return false
		}
	}
	return tag[0] >= 'a' && tag[0] <= 'z'
}

func (r *Registry) Define(tag string, tmpl *template.Node, factory Factory) error {
	if !validTag(tag) {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	if _, ok := r.defs[tag]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyDefined, tag)
	}
	if factory == nil {
		factory = func() map[string]any { return nil }
	}
	r.defs[tag] = definition{template: tmpl.Clone(), factory: factory}
	r.logger.Debug("defined", "tag", tag)
	return nil
}

func (r *Registry) Defined(tag string) bool {
	_, ok := r.defs[tag]
	return ok
}

func (r *Registry) Tags() []string {
	return slices.Sorted(maps.Keys(r.defs))
}

// Mount creates an instance of tag. Its bindings are live before Mount
// returns.
func (r *Registry) Mount(tag string) (*Instance, error) {
	def, ok := r.defs[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	id := r.newID()
	state := reactor.NewObject(r.sys, def.factory())
	root := template.Element(tag, template.Attrs("data-instance", id), def.template.Clone())

	exprs, err := r.compiler.Compile(state, root)
	if err != nil {
		return nil, fmt.Errorf("component: mount %q: %w", tag, err)
	}
	r.logger.Debug("mounted", "tag", tag, "id", id, "expressions", len(exprs))

	return &Instance{
		ID:     id,
		Tag:    tag,
		State:  state,
		Root:   root,
		exprs:  exprs,
		logger: r.logger,
	}, nil
}

type Instance struct {
	ID    string
	Tag   string
	State *reactor.Object
	Root  *template.Node

	exprs    []*reactor.Expression
	logger   *slog.Logger
	disposed bool
}

func (i *Instance) Expressions() []*reactor.Expression {
	return i.exprs
}

// Dispatch delivers event to the element with the given id inside the
// instance.
func (i *Instance) Dispatch(id, event string, payload any) error {
	if i.disposed {
		return ErrDisposed
	}
	target := i.Root.Find(id)
	if target == nil {
		return fmt.Errorf("%w: %q", ErrNoTarget, id)
	}
	return target.Dispatch(event, payload)
}

func (i *Instance) Render(w io.Writer) error {
	return template.Render(w, i.Root)
}

func (i *Instance) HTML() string {
	return template.RenderString(i.Root)
}

// Dispose unbinds every expression of the instance. The rendered tree keeps
// its last values.
func (i *Instance) Dispose() {
	if i.disposed {
		return
	}
	i.disposed = true
	for _, e := range i.exprs {
		e.Dispose()
	}
	i.logger.Debug("disposed", "tag", i.Tag, "id", i.ID)
}
