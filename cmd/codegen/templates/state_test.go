package templates

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterDef(t *testing.T) StateDef {
	t.Helper()
	def := StateDef{Package: "counter", Type: "Counter"}
	for _, s := range []string{"count:int", "label:string", "tags: []string"} {
		f, err := ParseField(s)
		require.NoError(t, err)
		def.Fields = append(def.Fields, f)
	}
	require.NoError(t, def.Validate())
	return def
}

func TestStateGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	out := State(counterDef(t))
	g.Assert(t, "counter", []byte(out))

	_, err := parser.ParseFile(token.NewFileSet(), "counter.go", out, parser.AllErrors)
	assert.NoError(t, err)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("items:map[string]int")
	require.NoError(t, err)
	assert.Equal(t, Field{Name: "items", Type: "map[string]int"}, f)

	for _, bad := range []string{"count", "count:", ":int", "1count:int", "my-count:int"} {
		_, err := ParseField(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidate(t *testing.T) {
	fields := []Field{{Name: "count", Type: "int"}}
	cases := map[string]StateDef{
		"bad package":    {Package: "my-pkg", Type: "Counter", Fields: fields},
		"unexported":     {Package: "counter", Type: "counter", Fields: fields},
		"no fields":      {Package: "counter", Type: "Counter"},
		"duplicate":      {Package: "counter", Type: "Counter", Fields: []Field{{"count", "int"}, {"Count", "int"}}},
		"method clashes": {Package: "counter", Type: "Counter", Fields: []Field{{"snapshot", "int"}}},
	}
	for name, def := range cases {
		assert.Error(t, def.Validate(), name)
	}
}
