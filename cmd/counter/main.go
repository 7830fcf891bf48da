//go:generate go run ../codegen --package session --type Session --field clicks:int --field engine:string --out session/session.go

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/delaneyj/batchparty/cmd/counter/session"
	"github.com/delaneyj/batchparty/component"
	"github.com/delaneyj/batchparty/loop"
	"github.com/delaneyj/batchparty/reactor"
	"github.com/delaneyj/batchparty/template"
	"github.com/urfave/cli/v3"
)

const (
	engineKey  = "engine"
	clicksKey  = "clicks"
	verboseKey = "verbose"
)

var engines = map[string]func() template.Engine{
	"goja": func() template.Engine { return template.Goja() },
	"expr": template.Expr,
	"cel":  template.CEL,
}

func main() {
	cmd := &cli.Command{
		Name:  "counter",
		Usage: "Mount a counter component, click it and print the result",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  engineKey,
				Usage: "Binding engine: " + strings.Join(slices.Sorted(maps.Keys(engines)), ", "),
				Value: "goja",
			},
			&cli.IntFlag{
				Name:  clicksKey,
				Usage: "Number of clicks to dispatch",
				Value: 3,
			},
			&cli.BoolFlag{
				Name:  verboseKey,
				Usage: "Log every flush and mount",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func counterTemplate() *template.Node {
	return template.Fragment(
		template.Element("button", template.Attrs("id", "inc", "@click", "count++"), template.Text("+")),
		template.Element("output", template.Attrs("id", "value", ":class", `count > 4 ? "hot" : "cold"`),
			template.Text("Count: ${count}"),
		),
	)
}

func run(ctx context.Context, cmd *cli.Command) error {
	newEngine, ok := engines[cmd.String(engineKey)]
	if !ok {
		return fmt.Errorf("unknown engine %q", cmd.String(engineKey))
	}

	level := slog.LevelInfo
	if cmd.Bool(verboseKey) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l := loop.New(loop.WithLogger(logger))
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx)
	}()
	defer func() {
		l.Close()
		<-done
	}()

	var (
		inst  *component.Instance
		state *session.Session
	)
	if err := l.Do(ctx, func() error {
		sys := reactor.New(reactor.WithBoundary(l), reactor.WithLogger(logger))
		engine := newEngine()
		compiler := template.NewCompiler(sys, template.WithEngine(engine), template.WithLogger(logger))
		registry := component.NewRegistry(sys, compiler, component.WithLogger(logger))
		if err := registry.Define("x-counter", counterTemplate(), func() map[string]any {
			return map[string]any{"count": 0}
		}); err != nil {
			return err
		}

		var err error
		if inst, err = registry.Mount("x-counter"); err != nil {
			return err
		}

		state = session.NewSession(sys, session.SessionValues{Engine: engine.Name()})
		_, err = reactor.Watch(sys, state, func(s *session.Session, tr *reactor.Tracker) (session.SessionValues, error) {
			return s.Snapshot(tr), nil
		}, func(v session.SessionValues) error {
			logger.Info("session", "engine", v.Engine, "clicks", v.Clicks)
			return nil
		})
		return err
	}); err != nil {
		return err
	}

	for range cmd.Int(clicksKey) {
		if err := l.Do(ctx, func() error {
			state.Clicks.Update(func(n int) int { return n + 1 })
			return inst.Dispatch("inc", "click", nil)
		}); err != nil {
			return err
		}
	}

	return l.Do(ctx, func() error {
		fmt.Println(inst.HTML())
		inst.Dispose()
		return nil
	})
}
