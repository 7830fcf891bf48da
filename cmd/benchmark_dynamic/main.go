package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/delaneyj/batchparty/reactor"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

func main() {
	log.Print("Starting dynamic graph benchmark, please wait...")
	defer log.Print("Finished dynamic graph benchmark")

	perfTestCfgs := []benchmarkTestConfig{
		{
			name:           "simple component",
			width:          10,
			staticFraction: 1,
			nSources:       2,
			totalLayers:    5,
			readFraction:   0.2,
			iterations:     60000,
		},
		{
			name:           "dynamic component",
			width:          10,
			totalLayers:    10,
			staticFraction: 0.75,
			nSources:       6,
			readFraction:   0.2,
			iterations:     15000,
		},
		{
			name:           "large web app",
			width:          1000,
			totalLayers:    12,
			staticFraction: 0.95,
			nSources:       4,
			readFraction:   1,
			iterations:     700,
		},
		{
			name:           "wide dense",
			width:          1000,
			totalLayers:    5,
			staticFraction: 1,
			nSources:       25,
			readFraction:   1,
			iterations:     300,
		},
		{
			name:           "deep",
			width:          5,
			totalLayers:    500,
			staticFraction: 1,
			nSources:       3,
			readFraction:   1,
			iterations:     500,
		},
		{
			name:           "very dynamic",
			width:          100,
			totalLayers:    15,
			staticFraction: 0.5,
			nSources:       6,
			readFraction:   1,
			iterations:     2000,
		},
	}

	type results struct {
		sum      int
		count    int64
		duration time.Duration
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"size", "nSources", "read%", "static%",
		"nTimes", "test", "time",
		"updateRate", "title",
	})

	testRepeats := 5
	for _, cfg := range perfTestCfgs {
		log.Printf("Running '%s' config", cfg.name)
		counter := new(int64)
		graph := benchmarkMakeGraph(&benchmarkMakeGraphConfig{
			counter:        counter,
			width:          cfg.width,
			totalLayers:    cfg.totalLayers,
			nSources:       cfg.nSources,
			staticFraction: cfg.staticFraction,
		})

		runOnce := func() int {
			return benchmarkRunGraph(&benchmarkRunGraphConfig{
				graph:        graph,
				iteration:    cfg.iterations,
				readFraction: cfg.readFraction,
			})
		}
		// warm up
		runOnce()

		bestResult := &results{
			duration: time.Hour,
		}

		for i := 0; i < testRepeats; i++ {
			log.Printf("Running '%s' config, iteration %d/%d %d%%", cfg.name, i+1, testRepeats, (i+1)*100/testRepeats)
			*counter = 0
			start := time.Now()
			sum := runOnce()
			duration := time.Since(start)

			if duration < bestResult.duration {
				bestResult.duration = duration
				bestResult.sum = sum
				bestResult.count = *counter
			}
		}

		makeTitle := func() string {
			sb := strings.Builder{}
			sb.WriteString(fmt.Sprintf("%dx%d %d sources", cfg.width, cfg.totalLayers, cfg.nSources))
			if cfg.staticFraction < 1 {
				sb.WriteString(" dynamic")
			}
			if cfg.readFraction < 1 {
				sb.WriteString(fmt.Sprintf(" read %0.2f%%", 100*cfg.readFraction))
			}
			return sb.String()
		}

		updateRate := float64(bestResult.count) / (float64(bestResult.duration) / float64(time.Millisecond))

		table.Append([]string{
			fmt.Sprintf("%dx%d", cfg.width, cfg.totalLayers), // size
			fmt.Sprint(cfg.nSources),                         // nSources
			fmt.Sprint(cfg.readFraction),                     // read%
			fmt.Sprint(cfg.staticFraction),                   // static%
			humanize.Comma(cfg.iterations),                   // nTimes
			cfg.name,                                         // test
			fmt.Sprint(bestResult.duration),                  // time
			humanize.Comma(int64(updateRate)),                // updateRate
			makeTitle(),                                      // title
		})
	}
	table.Render()
}

type benchmarkTestConfig struct {
	name           string  // friendly name for the test, should be unique
	width          int64   // width of dependency graph to construct
	totalLayers    int64   // depth of dependency graph to construct
	staticFraction float64 // fraction of nodes that always read every source
	nSources       int64   // number of sources each node reads
	readFraction   float64 // fraction of [0, 1] elements in the last layer read after each write
	iterations     int64   // number of test iterations
}

// Every node is an object holding its value under "v". Computed nodes are
// expressions that read their sources and write the sum into their own
// object, so a source write cascades layer by layer within one flush.
type benchmarkGraph struct {
	sys     *reactor.System
	sources []*reactor.Object
	layers  [][]*reactor.Object
}

type benchmarkMakeGraphConfig struct {
	counter                      *int64
	width, totalLayers, nSources int64
	staticFraction               float64
}

func benchmarkMakeGraph(cfg *benchmarkMakeGraphConfig) *benchmarkGraph {
	sys := reactor.New()
	sources := make([]*reactor.Object, cfg.width)
	for i := range sources {
		sources[i] = reactor.NewObject(sys, map[string]any{"v": i})
	}
	graph := &benchmarkGraph{sys: sys, sources: sources}
	graph.layers = makeBenchmarkDependentRows(&benchmarkMakeDependentRowsConfig{
		sys:            sys,
		sources:        sources,
		numRows:        cfg.totalLayers - 1,
		counter:        cfg.counter,
		staticFraction: cfg.staticFraction,
		nSources:       cfg.nSources,
	})
	return graph
}

type benchmarkRunGraphConfig struct {
	graph        *benchmarkGraph
	iteration    int64
	readFraction float64
}

// Execute the graph by writing one of the sources and reading some or all of
// the leaves. Returns the sum of the leaf values read.
func benchmarkRunGraph(cfg *benchmarkRunGraphConfig) int {
	random := rand.New(rand.NewSource(0))
	leaves := cfg.graph.layers[len(cfg.graph.layers)-1]
	skipCount := int(math.Round(float64(len(leaves)) * (1 - cfg.readFraction)))
	readLeaves := benchmarkRemoveElems(leaves, skipCount, random)

	sum := 0
	for i := 0; i < int(cfg.iteration); i++ {
		sourceDex := i % len(cfg.graph.sources)
		cfg.graph.sources[sourceDex].Set("v", i+sourceDex)
		if err := cfg.graph.sys.Flush(); err != nil {
			log.Panic(err)
		}

		for _, leaf := range readLeaves {
			sum += leaf.Value(nil, "v").(int)
		}
	}
	return sum
}

func benchmarkRemoveElems[T comparable](src []T, rmCount int, rand *rand.Rand) []T {
	copyWithRemovals := make([]T, len(src))
	copy(copyWithRemovals, src)
	for i := 0; i < rmCount; i++ {
		rmDex := rand.Intn(len(copyWithRemovals))
		copyWithRemovals[rmDex] = copyWithRemovals[len(copyWithRemovals)-1]
		copyWithRemovals = copyWithRemovals[:len(copyWithRemovals)-1]
	}
	return copyWithRemovals
}

type benchmarkMakeDependentRowsConfig struct {
	sys               *reactor.System
	sources           []*reactor.Object
	numRows, nSources int64
	counter           *int64
	staticFraction    float64
}

func makeBenchmarkDependentRows(cfg *benchmarkMakeDependentRowsConfig) [][]*reactor.Object {
	prevRow := cfg.sources

	random := rand.New(rand.NewSource(0))
	rows := make([][]*reactor.Object, cfg.numRows)
	for l := int64(0); l < cfg.numRows; l++ {
		rows[l] = makeBenchmarkRow(&benchmarkRowConfig{
			sys:            cfg.sys,
			sources:        prevRow,
			counter:        cfg.counter,
			staticFraction: cfg.staticFraction,
			nSources:       cfg.nSources,
			rand:           random,
		})
		prevRow = rows[l]
	}
	return rows
}

type benchmarkRowConfig struct {
	sys            *reactor.System
	sources        []*reactor.Object
	counter        *int64
	staticFraction float64
	nSources       int64
	rand           *rand.Rand
}

func read(tr *reactor.Tracker, o *reactor.Object) int {
	return o.Value(tr, "v").(int)
}

func makeBenchmarkRow(cfg *benchmarkRowConfig) []*reactor.Object {
	row := make([]*reactor.Object, len(cfg.sources))

	for myDex := range cfg.sources {
		mySources := make([]*reactor.Object, 0, cfg.nSources)
		for sourceDex := 0; sourceDex < int(cfg.nSources); sourceDex++ {
			mySources = append(mySources, cfg.sources[(myDex+sourceDex)%len(cfg.sources)])
		}

		out := reactor.NewObject(cfg.sys, map[string]any{"v": 0})
		row[myDex] = out

		var callable reactor.Callable
		if cfg.rand.Float64() < cfg.staticFraction {
			callable = func(_ any, tr *reactor.Tracker) (any, error) {
				*cfg.counter++
				sum := 0
				for _, source := range mySources {
					sum += read(tr, source)
				}
				return sum, nil
			}
		} else {
			// dynamic node: which sources it reads depends on the first one
			first := mySources[0]
			tail := mySources[1:]
			callable = func(_ any, tr *reactor.Tracker) (any, error) {
				*cfg.counter++
				sum := read(tr, first)
				if len(tail) == 0 {
					return sum, nil
				}
				shouldDrop := sum&0x1 > 0
				dropDex := sum % len(tail)
				for i := range tail {
					if shouldDrop && i == dropDex {
						continue
					}
					sum += read(tr, tail[i])
				}
				return sum, nil
			}
		}

		if _, err := reactor.NewExpression(cfg.sys, out, callable, func(v any) error {
			out.Set("v", v)
			return nil
		}); err != nil {
			log.Panic(err)
		}
	}
	return row
}
