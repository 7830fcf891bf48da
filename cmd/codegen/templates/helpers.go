package templates

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Field struct {
	Name string
	Type string
}

// ParseField reads a name:type pair such as "count:int" or "tags:[]string".
func ParseField(s string) (Field, error) {
	name, typ, ok := strings.Cut(s, ":")
	name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
	if !ok || typ == "" {
		return Field{}, fmt.Errorf("field %q: want name:type", s)
	}
	if !token.IsIdentifier(name) {
		return Field{}, fmt.Errorf("field %q: %q is not an identifier", s, name)
	}
	return Field{Name: name, Type: typ}, nil
}

type StateDef struct {
	Package string
	Type    string
	Fields  []Field
}

func (s StateDef) Validate() error {
	if !token.IsIdentifier(s.Package) {
		return fmt.Errorf("package %q is not an identifier", s.Package)
	}
	if !token.IsIdentifier(s.Type) || !token.IsExported(s.Type) {
		return fmt.Errorf("type %q must be an exported identifier", s.Type)
	}
	if len(s.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := map[string]bool{}
	for _, f := range s.Fields {
		name := exported(f.Name)
		if name == "Object" || name == "Snapshot" {
			return fmt.Errorf("field %q collides with a generated method", f.Name)
		}
		if seen[name] {
			return fmt.Errorf("field %q is declared twice", name)
		}
		seen[name] = true
	}
	return nil
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// padded returns s followed by enough spaces to fill width, plus one.
func padded(s string, width int) string {
	return s + strings.Repeat(" ", width-len(s)+1)
}

func widest(names ...string) int {
	w := 0
	for _, n := range names {
		w = max(w, len(n))
	}
	return w
}
