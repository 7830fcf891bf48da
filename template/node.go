// Package template compiles fragments with ${expr} text, :attr="expr"
// bindings and @event="statements" handlers into reactor expressions over a
// tracked scope.
package template

import "errors"

type Kind uint8

const (
	ElementNode Kind = iota
	TextNode
	FragmentNode
)

type Attr struct {
	Name  string
	Value string
}

// Attrs builds an attribute list from name/value pairs, keeping order.
func Attrs(pairs ...string) []Attr {
	attrs := make([]Attr, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		attrs = append(attrs, Attr{Name: pairs[i], Value: pairs[i+1]})
	}
	return attrs
}

type Handler func(payload any) error

type Node struct {
	Kind     Kind
	Tag      string
	Text     string
	Attrs    []Attr
	Children []*Node

	listeners map[string][]Handler
}

func Element(tag string, attrs []Attr, children ...*Node) *Node {
	return &Node{Kind: ElementNode, Tag: tag, Attrs: attrs, Children: children}
}

func Text(text string) *Node {
	return &Node{Kind: TextNode, Text: text}
}

func Fragment(children ...*Node) *Node {
	return &Node{Kind: FragmentNode, Children: children}
}

// Clone stamps a deep copy of the tree. Listeners are not copied.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Kind: n.Kind, Tag: n.Tag, Text: n.Text}
	if n.Attrs != nil {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}

func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

func (n *Node) RemoveAttr(name string) {
	for i, a := range n.Attrs {
		if a.Name == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// Walk visits n and its descendants depth first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first element whose id attribute is id.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if v, ok := node.Attr("id"); ok && node.Kind == ElementNode && v == id {
			found = node
			return false
		}
		return true
	})
	return found
}

func (n *Node) On(event string, h Handler) {
	if n.listeners == nil {
		n.listeners = map[string][]Handler{}
	}
	n.listeners[event] = append(n.listeners[event], h)
}

func (n *Node) Listeners(event string) int {
	return len(n.listeners[event])
}

// Dispatch calls every handler registered for event in order.
func (n *Node) Dispatch(event string, payload any) error {
	var errs []error
	for _, h := range n.listeners[event] {
		if err := h(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
