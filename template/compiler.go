package template

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/delaneyj/batchparty/reactor"
)

type Compiler struct {
	sys      *reactor.System
	engine   Engine
	handlers HandlerEngine
	cache    *programCache
	logger   *slog.Logger
}

type Option func(*Compiler)

// WithEngine sets the engine for ${} text and :attr bindings.
func WithEngine(e Engine) Option {
	return func(c *Compiler) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithHandlerEngine sets the engine for @event handler bodies.
func WithHandlerEngine(e HandlerEngine) Option {
	return func(c *Compiler) {
		if e != nil {
			c.handlers = e
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCompiler(sys *reactor.System, opts ...Option) *Compiler {
	js := Goja()
	c := &Compiler{
		sys:      sys,
		engine:   js,
		handlers: js,
		cache:    newProgramCache(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Compiler) Engine() Engine {
	return c.engine
}

// Cached reports how many distinct programs have been compiled.
func (c *Compiler) Cached() int {
	return c.cache.len()
}

// Compile binds root against scope. Text nodes containing ${expr} segments
// and :attr attributes become expressions, updated as the values they read
// change. @event attributes become listeners that run their body with
// $event bound to the dispatched payload. Binding attributes are removed
// from the tree. On failure nothing stays bound and the tree is left as it
// was.
func (c *Compiler) Compile(scope *reactor.Object, root *Node) (exprs []*reactor.Expression, err error) {
	var nodes []*Node
	root.Walk(func(n *Node) bool {
		nodes = append(nodes, n)
		return true
	})

	// Every program compiles before the tree is touched.
	b, err := c.plan(nodes, scope.Keys())
	if err != nil {
		return nil, err
	}

	snap := b.save()
	defer func() {
		if err != nil {
			for _, e := range exprs {
				e.Dispose()
			}
			exprs = nil
			snap.restore()
		}
	}()

	for _, t := range b.texts {
		e, err := c.bindText(scope, t)
		if err != nil {
			return exprs, err
		}
		exprs = append(exprs, e)
	}
	for _, a := range b.attrs {
		e, err := c.bindAttr(scope, a)
		if err != nil {
			return exprs, err
		}
		exprs = append(exprs, e)
	}
	for _, ev := range b.events {
		ev.node.RemoveAttr(ev.attr)
	}

	// Listeners go on last, once nothing else can fail.
	for _, ev := range b.events {
		prg := ev.program
		ev.node.On(strings.TrimPrefix(ev.attr, "@"), func(payload any) error {
			_, err := prg.Eval(scope, nil, payload)
			return err
		})
	}

	c.logger.Debug("compiled", "scope", scope.ID(), "expressions", len(exprs), "listeners", len(b.events))
	return exprs, nil
}

func (c *Compiler) program(src string, keys []string) (Program, error) {
	return c.cache.loadOrCompile(c.engine.Name(), false, src, keys, func() (Program, error) {
		return c.engine.Compile(src, keys)
	})
}

func (c *Compiler) handler(src string, keys []string) (Program, error) {
	return c.cache.loadOrCompile(c.handlers.Name(), true, src, keys, func() (Program, error) {
		return c.handlers.CompileHandler(src, keys)
	})
}

type segment struct {
	text    string
	program Program
}

type textBinding struct {
	node     *Node
	segments []segment
}

type attrBinding struct {
	node    *Node
	attr    string
	program Program
}

type bindings struct {
	texts  []textBinding
	attrs  []attrBinding
	events []attrBinding
}

// plan compiles every binding under nodes without modifying them.
func (c *Compiler) plan(nodes []*Node, keys []string) (*bindings, error) {
	b := &bindings{}
	for _, n := range nodes {
		switch n.Kind {
		case TextNode:
			segments, bound, err := c.segments(n.Text, keys)
			if err != nil {
				return nil, err
			}
			if bound {
				b.texts = append(b.texts, textBinding{node: n, segments: segments})
			}
		case ElementNode:
			for _, a := range n.Attrs {
				switch {
				case strings.HasPrefix(a.Name, ":"):
					prg, err := c.program(a.Value, keys)
					if err != nil {
						return nil, err
					}
					b.attrs = append(b.attrs, attrBinding{node: n, attr: a.Name, program: prg})
				case strings.HasPrefix(a.Name, "@"):
					prg, err := c.handler(a.Value, keys)
					if err != nil {
						return nil, err
					}
					b.events = append(b.events, attrBinding{node: n, attr: a.Name, program: prg})
				}
			}
		}
	}
	return b, nil
}

func (c *Compiler) segments(text string, keys []string) ([]segment, bool, error) {
	parts := splitText(text)
	segments := make([]segment, 0, len(parts))
	bound := false
	for _, p := range parts {
		if !p.expr {
			segments = append(segments, segment{text: p.text})
			continue
		}
		prg, err := c.program(p.text, keys)
		if err != nil {
			return nil, false, err
		}
		segments = append(segments, segment{text: p.text, program: prg})
		bound = true
	}
	return segments, bound, nil
}

type nodeState struct {
	node  *Node
	text  string
	attrs []Attr
}

type snapshot []nodeState

// save records the text and attributes of every node a binding writes.
func (b *bindings) save() snapshot {
	seen := map[*Node]bool{}
	var snap snapshot
	add := func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		snap = append(snap, nodeState{node: n, text: n.Text, attrs: append([]Attr(nil), n.Attrs...)})
	}
	for _, t := range b.texts {
		add(t.node)
	}
	for _, a := range b.attrs {
		add(a.node)
	}
	for _, ev := range b.events {
		add(ev.node)
	}
	return snap
}

func (s snapshot) restore() {
	for _, st := range s {
		st.node.Text = st.text
		st.node.Attrs = st.attrs
	}
}

func (c *Compiler) bindText(scope *reactor.Object, t textBinding) (*reactor.Expression, error) {
	n, segments := t.node, t.segments
	return reactor.NewExpression(c.sys, scope, func(_ any, tr *reactor.Tracker) (any, error) {
		var sb strings.Builder
		for _, seg := range segments {
			if seg.program == nil {
				sb.WriteString(seg.text)
				continue
			}
			v, err := seg.program.Eval(scope, tr, nil)
			if err != nil {
				return nil, err
			}
			sb.WriteString(stringify(v))
		}
		return sb.String(), nil
	}, func(v any) error {
		n.Text = v.(string)
		return nil
	})
}

// bindAttr sets the attribute to the value of the expression. nil and false
// remove it, true sets it empty.
func (c *Compiler) bindAttr(scope *reactor.Object, a attrBinding) (*reactor.Expression, error) {
	n, prg := a.node, a.program
	n.RemoveAttr(a.attr)
	name := strings.TrimPrefix(a.attr, ":")

	return reactor.NewExpression(c.sys, scope, func(_ any, tr *reactor.Tracker) (any, error) {
		return prg.Eval(scope, tr, nil)
	}, func(v any) error {
		switch v {
		case nil, false:
			n.RemoveAttr(name)
		case true:
			n.SetAttr(name, "")
		default:
			n.SetAttr(name, stringify(v))
		}
		return nil
	})
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type part struct {
	text string
	expr bool
}

// splitText cuts s into literal runs and ${...} expressions. An unterminated
// ${ is kept as literal text.
func splitText(s string) []part {
	var parts []part
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := closingBrace(s, start+2)
		if end < 0 {
			break
		}
		if start > 0 {
			parts = append(parts, part{text: s[:start]})
		}
		parts = append(parts, part{text: strings.TrimSpace(s[start+2 : end]), expr: true})
		s = s[end+1:]
	}
	if s != "" {
		parts = append(parts, part{text: s})
	}
	return parts
}

func closingBrace(s string, from int) int {
	depth := 0
	var quote byte
	for i := from; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
		case ch == '{':
			depth++
		case ch == '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}
