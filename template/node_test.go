package template_test

import (
	"bytes"
	"testing"

	"github.com/delaneyj/batchparty/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	orig := template.Element("div", template.Attrs("id", "root"),
		template.Element("span", template.Attrs("class", "a"), template.Text("hi")),
	)
	orig.On("click", func(any) error { return nil })

	c := orig.Clone()
	c.SetAttr("id", "copy")
	c.Children[0].SetAttr("class", "b")
	c.Children[0].Children[0].Text = "bye"

	id, _ := orig.Attr("id")
	assert.Equal(t, "root", id)
	class, _ := orig.Children[0].Attr("class")
	assert.Equal(t, "a", class)
	assert.Equal(t, "hi", orig.Children[0].Children[0].Text)
	assert.Zero(t, c.Listeners("click"))
}

func TestAttributes(t *testing.T) {
	n := template.Element("a", template.Attrs("href", "/", "title", "home"))
	n.SetAttr("href", "/docs")
	n.SetAttr("rel", "next")
	n.RemoveAttr("title")
	n.RemoveAttr("missing")
	assert.Equal(t, template.Attrs("href", "/docs", "rel", "next"), n.Attrs)
}

func TestFind(t *testing.T) {
	root := template.Fragment(
		template.Element("div", template.Attrs("id", "outer"),
			template.Element("p", template.Attrs("id", "inner")),
		),
	)
	require.NotNil(t, root.Find("inner"))
	assert.Equal(t, "p", root.Find("inner").Tag)
	assert.Nil(t, root.Find("nope"))
}

func TestRender(t *testing.T) {
	root := template.Fragment(
		template.Element("p", template.Attrs("title", `a "quoted" <title>`),
			template.Text("1 < 2 & 3 > 2"),
		),
		template.Element("input", template.Attrs("type", "text")),
		template.Element("br", nil),
	)
	want := `<p title="a &quot;quoted&quot; &lt;title&gt;">1 &lt; 2 &amp; 3 &gt; 2</p><input type="text"><br>`
	assert.Equal(t, want, template.RenderString(root))

	var buf bytes.Buffer
	require.NoError(t, template.Render(&buf, root))
	assert.Equal(t, want, buf.String())
}
