package component_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/delaneyj/batchparty/component"
	"github.com/delaneyj/batchparty/reactor"
	"github.com/delaneyj/batchparty/template"
	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterTemplate() *template.Node {
	return template.Fragment(
		template.Element("button", template.Attrs("id", "inc", "@click", "count++"), template.Text("+")),
		template.Element("span", template.Attrs("id", "value", ":class", `count > 1 ? "big" : "small"`),
			template.Text("Count: ${count}"),
		),
	)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

func newRegistry(t *testing.T) (*reactor.System, *component.Registry) {
	t.Helper()
	sys := reactor.New()
	r := component.NewRegistry(sys, template.NewCompiler(sys), component.WithIDs(sequentialIDs()))
	require.NoError(t, r.Define("x-counter", counterTemplate(), func() map[string]any {
		return map[string]any{"count": 0}
	}))
	return sys, r
}

func TestCounterRendering(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	sys, r := newRegistry(t)

	inst, err := r.Mount("x-counter")
	require.NoError(t, err)
	g.Assert(t, "counter_initial", []byte(inst.HTML()))

	require.NoError(t, inst.Dispatch("inc", "click", nil))
	require.NoError(t, inst.Dispatch("inc", "click", nil))
	require.NoError(t, sys.Flush())

	var buf bytes.Buffer
	require.NoError(t, inst.Render(&buf))
	g.Assert(t, "counter_clicked", buf.Bytes())
}

func TestInstancesAreIsolated(t *testing.T) {
	sys, r := newRegistry(t)

	a, err := r.Mount("x-counter")
	require.NoError(t, err)
	b, err := r.Mount("x-counter")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Root.Find("value"), b.Root.Find("value"))

	require.NoError(t, a.Dispatch("inc", "click", nil))
	require.NoError(t, sys.Flush())

	assert.Equal(t, "Count: 1", a.Root.Find("value").Children[0].Text)
	assert.Equal(t, "Count: 0", b.Root.Find("value").Children[0].Text)
	assert.Equal(t, 0, b.State.Value(nil, "count"))
}

func TestDefinitionIsNotMutatedByMount(t *testing.T) {
	sys := reactor.New()
	r := component.NewRegistry(sys, template.NewCompiler(sys))
	tmpl := counterTemplate()
	require.NoError(t, r.Define("x-counter", tmpl, func() map[string]any {
		return map[string]any{"count": 0}
	}))
	tmpl.Children[0].SetAttr("id", "changed")

	inst, err := r.Mount("x-counter")
	require.NoError(t, err)
	require.NotNil(t, inst.Root.Find("inc"))
	_, err = uuid.Parse(inst.ID)
	assert.NoError(t, err)

	again, err := r.Mount("x-counter")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Root.Find("inc").Listeners("click"))
}

func TestDefine(t *testing.T) {
	_, r := newRegistry(t)

	assert.ErrorIs(t, r.Define("x-counter", counterTemplate(), nil), component.ErrAlreadyDefined)
	for _, tag := range []string{"counter", "-counter", "X-Counter", "1-counter", "x_counter", ""} {
		assert.ErrorIs(t, r.Define(tag, counterTemplate(), nil), component.ErrInvalidTag, tag)
	}

	require.NoError(t, r.Define("x-empty", template.Element("p", nil, template.Text("static")), nil))
	inst, err := r.Mount("x-empty")
	require.NoError(t, err)
	assert.Empty(t, inst.Expressions())
	assert.Zero(t, inst.State.Len())

	assert.Equal(t, []string{"x-counter", "x-empty"}, r.Tags())
	assert.True(t, r.Defined("x-empty"))
	assert.False(t, r.Defined("x-missing"))
}

func TestMountErrors(t *testing.T) {
	_, r := newRegistry(t)

	_, err := r.Mount("x-missing")
	assert.ErrorIs(t, err, component.ErrUnknownTag)

	require.NoError(t, r.Define("x-broken", template.Text("${nope.value}"), nil))
	_, err = r.Mount("x-broken")
	var evalErr *template.EvalError
	assert.ErrorAs(t, err, &evalErr)
}

func TestDispatchErrors(t *testing.T) {
	_, r := newRegistry(t)
	inst, err := r.Mount("x-counter")
	require.NoError(t, err)

	assert.ErrorIs(t, inst.Dispatch("nope", "click", nil), component.ErrNoTarget)
	assert.NoError(t, inst.Dispatch("value", "click", nil), "no listener is not an error")
}

func TestDispose(t *testing.T) {
	sys, r := newRegistry(t)
	inst, err := r.Mount("x-counter")
	require.NoError(t, err)
	require.Len(t, inst.Expressions(), 2)

	inst.State.Set("count", 5)
	inst.Dispose()
	inst.Dispose()
	require.NoError(t, sys.Flush())

	for _, e := range inst.Expressions() {
		assert.True(t, e.Disposed())
	}
	assert.Equal(t, "Count: 0", inst.Root.Find("value").Children[0].Text)
	assert.Zero(t, inst.State.Dependents("count"))
	assert.ErrorIs(t, inst.Dispatch("inc", "click", nil), component.ErrDisposed)
}
