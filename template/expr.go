package template

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/batchparty/reactor"
	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	exprvm "github.com/expr-lang/expr/vm"
)

const getterName = "__get"

type exprEngine struct{}

// Expr returns an expr-lang engine. Scope properties named at compile time
// are read through the tracker.
func Expr() Engine {
	return exprEngine{}
}

func (exprEngine) Name() string {
	return "expr"
}

func (exprEngine) Compile(src string, keys []string) (Program, error) {
	if src == "" {
		return nil, errors.New("expression must not be empty")
	}
	program, err := exprlang.Compile(src,
		exprlang.Env(map[string]any{
			getterName: func(string) any { return nil },
		}),
		exprlang.Patch(&trackedReads{keys: mapset.NewThreadUnsafeSet(keys...)}),
	)
	if err != nil {
		return nil, err
	}
	return &exprProgram{src: src, program: program}, nil
}

// trackedReads rewrites scope identifiers into getter calls.
type trackedReads struct {
	keys mapset.Set[string]
}

func (v *trackedReads) Visit(node *ast.Node) {
	ident, ok := (*node).(*ast.IdentifierNode)
	if !ok || ident.Value == getterName || !v.keys.Contains(ident.Value) {
		return
	}
	ast.Patch(node, &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: getterName},
		Arguments: []ast.Node{&ast.StringNode{Value: ident.Value}},
	})
}

type exprProgram struct {
	src     string
	program *exprvm.Program
}

func (p *exprProgram) Eval(scope *reactor.Object, tr *reactor.Tracker, _ any) (any, error) {
	env := map[string]any{
		getterName: func(name string) any {
			return scope.Value(tr, name)
		},
	}
	out, err := exprlang.Run(p.program, env)
	if err != nil {
		return nil, &EvalError{Engine: "expr", Source: p.src, Err: err}
	}
	return out, nil
}
