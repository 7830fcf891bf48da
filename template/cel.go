package template

import (
	"errors"

	"github.com/delaneyj/batchparty/reactor"
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/interpreter"
)

type celEngine struct{}

// CEL returns a cel-go engine. Every scope key becomes a dyn variable.
func CEL() Engine {
	return celEngine{}
}

func (celEngine) Name() string {
	return "cel"
}

func (celEngine) Compile(src string, keys []string) (Program, error) {
	if src == "" {
		return nil, errors.New("expression must not be empty")
	}
	opts := make([]celgo.EnvOption, 0, len(keys))
	for _, key := range keys {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	parsed, issues := env.Parse(src)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(parsed)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &celProgram{src: src, program: prg}, nil
}

type celProgram struct {
	src     string
	program celgo.Program
}

func (p *celProgram) Eval(scope *reactor.Object, tr *reactor.Tracker, _ any) (any, error) {
	out, _, err := p.program.Eval(&trackedActivation{scope: scope, tr: tr})
	if err != nil {
		return nil, &EvalError{Engine: "cel", Source: p.src, Err: err}
	}
	return out.Value(), nil
}

type trackedActivation struct {
	scope *reactor.Object
	tr    *reactor.Tracker
}

func (a *trackedActivation) ResolveName(name string) (any, bool) {
	return a.scope.Get(a.tr, name)
}

func (a *trackedActivation) Parent() interpreter.Activation {
	return nil
}
