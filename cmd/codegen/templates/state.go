package templates

import (
	"io"
	"strconv"

	"github.com/valyala/quicktemplate"
)

// StreamState writes a typed wrapper around a reactor.Object, one
// reactor.Field per declared field.
func StreamState(qw *quicktemplate.Writer, def StateDef) {
	w := qw.N()
	typ := def.Type
	values := typ + "Values"

	names := make([]string, 0, len(def.Fields))
	keys := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		names = append(names, exported(f.Name))
		keys = append(keys, strconv.Quote(f.Name)+":")
	}
	nameWidth := widest(names...)
	keyWidth := widest(keys...)
	litWidth := widest(append([]string{"obj"}, names...)...) + 1

	w.S("// Code generated by codegen. DO NOT EDIT.\n\n")
	w.S("package " + def.Package + "\n\n")
	w.S("import \"github.com/delaneyj/batchparty/reactor\"\n\n")

	w.S("// " + values + " holds plain values for " + typ + ".\n")
	w.S("type " + values + " struct {\n")
	for i, f := range def.Fields {
		w.S("\t" + padded(names[i], nameWidth) + f.Type + "\n")
	}
	w.S("}\n\n")

	w.S("// " + typ + " is reactive state with one tracked field per property.\n")
	w.S("type " + typ + " struct {\n")
	w.S("\tobj *reactor.Object\n\n")
	for i, f := range def.Fields {
		w.S("\t" + padded(names[i], nameWidth) + "reactor.Field[" + f.Type + "]\n")
	}
	w.S("}\n\n")

	w.S("func New" + typ + "(sys *reactor.System, initial " + values + ") *" + typ + " {\n")
	w.S("\tobj := reactor.NewObject(sys, map[string]any{\n")
	for i := range def.Fields {
		w.S("\t\t" + padded(keys[i], keyWidth) + "initial." + names[i] + ",\n")
	}
	w.S("\t})\n")
	w.S("\treturn &" + typ + "{\n")
	w.S("\t\t" + padded("obj:", litWidth) + "obj,\n")
	for i, f := range def.Fields {
		w.S("\t\t" + padded(names[i]+":", litWidth) + "reactor.BindField[" + f.Type + "](obj, " + strconv.Quote(f.Name) + "),\n")
	}
	w.S("\t}\n")
	w.S("}\n\n")

	w.S("func (s *" + typ + ") Object() *reactor.Object {\n")
	w.S("\treturn s.obj\n")
	w.S("}\n\n")

	w.S("// Snapshot reads every field through tr.\n")
	w.S("func (s *" + typ + ") Snapshot(tr *reactor.Tracker) " + values + " {\n")
	w.S("\treturn " + values + "{\n")
	for i := range def.Fields {
		w.S("\t\t" + padded(names[i]+":", nameWidth+1) + "s." + names[i] + ".Get(tr),\n")
	}
	w.S("\t}\n")
	w.S("}\n")
}

func WriteState(w io.Writer, def StateDef) {
	qw := quicktemplate.AcquireWriter(w)
	StreamState(qw, def)
	quicktemplate.ReleaseWriter(qw)
}

func State(def StateDef) string {
	bb := quicktemplate.AcquireByteBuffer()
	WriteState(bb, def)
	s := string(bb.B)
	quicktemplate.ReleaseByteBuffer(bb)
	return s
}
