package template

import (
	"io"
	"strings"

	"github.com/valyala/quicktemplate"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Render writes n as HTML. Text and attribute values are escaped.
func Render(w io.Writer, n *Node) error {
	_, err := io.WriteString(w, RenderString(n))
	return err
}

func RenderString(n *Node) string {
	var sb strings.Builder
	qw := quicktemplate.AcquireWriter(&sb)
	writeNode(qw, n)
	quicktemplate.ReleaseWriter(qw)
	return sb.String()
}

func writeNode(qw *quicktemplate.Writer, n *Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case TextNode:
		qw.E().S(n.Text)
	case FragmentNode:
		for _, child := range n.Children {
			writeNode(qw, child)
		}
	case ElementNode:
		qw.N().S("<")
		qw.N().S(n.Tag)
		for _, a := range n.Attrs {
			qw.N().S(" ")
			qw.N().S(a.Name)
			qw.N().S(`="`)
			qw.E().S(a.Value)
			qw.N().S(`"`)
		}
		qw.N().S(">")
		if voidElements[n.Tag] {
			return
		}
		for _, child := range n.Children {
			writeNode(qw, child)
		}
		qw.N().S("</")
		qw.N().S(n.Tag)
		qw.N().S(">")
	}
}
