package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/batchparty/reactor"
	"github.com/delaneyj/batchparty/template"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	profile = flag.String("profile", "default.pgo", "write a CPU profile to this file, empty to disable")
	iters   = flag.Int("iters", 100, "writes per case")

	ww = []int{1, 10, 100, 1_000}
	hh = []int{1, 10, 100}
)

func main() {
	flag.Parse()

	if *profile != "" {
		f, err := os.Create(*profile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	benchmarkPropagation(false)

	benchmarkPropagation(true)
	benchmarkEngines(true)
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendResult(tbl table.Writer, name string, tach *tachymeter.Tachymeter) {
	calc := tach.Calc()
	tbl.AppendRows([]table.Row{
		{
			name,
			calc.Time.Avg,
			calc.Time.Min,
			calc.Time.P75,
			calc.Time.P99,
			calc.Time.Max,
		},
	})
}

func readV(o *reactor.Object) reactor.Callable {
	return func(_ any, tr *reactor.Tracker) (any, error) {
		return o.Value(tr, "v").(int) + 1, nil
	}
}

// benchmarkPropagation builds w chains of h expressions. Each expression
// reads the previous link and writes the next, so one write to the source
// cascades through h updates per chain inside a single flush.
func benchmarkPropagation(shouldRender bool) {
	tbl := newTable("Propagation")

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: *iters})

			sys := reactor.New(reactor.WithUpdateLimit(h + 1))
			src := reactor.NewObject(sys, map[string]any{"v": 1})
			for i := 0; i < w; i++ {
				last := src
				for j := 0; j < h; j++ {
					prev := last
					next := reactor.NewObject(sys, map[string]any{"v": 0})
					if _, err := reactor.NewExpression(sys, prev, readV(prev), func(v any) error {
						next.Set("v", v)
						return nil
					}); err != nil {
						log.Panic(err)
					}
					last = next
				}
				if _, err := reactor.NewExpression(sys, last, readV(last), nil); err != nil {
					log.Panic(err)
				}
			}
			if err := sys.Flush(); err != nil {
				log.Panic(err)
			}

			for i := 0; i < *iters; i++ {
				start := time.Now()
				src.Set("v", src.Value(nil, "v").(int)+1)
				if err := sys.Flush(); err != nil {
					log.Panic(err)
				}
				tach.AddTime(time.Since(start))
			}

			appendResult(tbl, fmt.Sprintf("propagate: %d * %d", w, h), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
}

// benchmarkEngines times a write followed by a flush that re-renders w text
// bindings through each expression engine.
func benchmarkEngines(shouldRender bool) {
	tbl := newTable("Template engines")

	for _, engine := range []template.Engine{template.Goja(), template.Expr(), template.CEL()} {
		for _, w := range ww {
			tach := tachymeter.New(&tachymeter.Config{Size: *iters})

			sys := reactor.New()
			state := reactor.NewObject(sys, map[string]any{"count": 0})
			compiler := template.NewCompiler(sys, template.WithEngine(engine))
			root := template.Fragment()
			for i := 0; i < w; i++ {
				root.Children = append(root.Children, template.Text("n=${count * 2}"))
			}
			if _, err := compiler.Compile(state, root); err != nil {
				log.Panic(err)
			}

			for i := 0; i < *iters; i++ {
				start := time.Now()
				state.Set("count", i)
				if err := sys.Flush(); err != nil {
					log.Panic(err)
				}
				tach.AddTime(time.Since(start))
			}

			appendResult(tbl, fmt.Sprintf("%s: %d bindings", engine.Name(), w), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
}
