package main

import (
	"context"
	"go/format"
	"log"
	"os"
	"time"

	"github.com/delaneyj/batchparty/cmd/codegen/templates"
	"github.com/urfave/cli/v3"
)

const (
	packageKey = "package"
	typeKey    = "type"
	fieldKey   = "field"
	outKey     = "out"
)

func main() {
	cmd := &cli.Command{
		Name:  "generate",
		Usage: "Generate a typed reactive state wrapper",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  packageKey,
				Usage: "Package of the generated file",
				Value: "state",
			},
			&cli.StringFlag{
				Name:     typeKey,
				Usage:    "Name of the generated type",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     fieldKey,
				Usage:    "Field as name:type, repeatable",
				Required: true,
			},
			&cli.StringFlag{
				Name:  outKey,
				Usage: "Output file, - for stdout",
				Value: "-",
			},
		},
		Action: generate,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()
	log.Printf("Codegen for %s started", cmd.String(typeKey))
	defer func() {
		log.Printf("Codegen for %s finished in %v", cmd.String(typeKey), time.Since(start))
	}()

	def := templates.StateDef{
		Package: cmd.String(packageKey),
		Type:    cmd.String(typeKey),
	}
	for _, raw := range cmd.StringSlice(fieldKey) {
		f, err := templates.ParseField(raw)
		if err != nil {
			return err
		}
		def.Fields = append(def.Fields, f)
	}
	if err := def.Validate(); err != nil {
		return err
	}

	contents, err := format.Source([]byte(templates.State(def)))
	if err != nil {
		return err
	}

	out := cmd.String(outKey)
	if out == "-" {
		_, err := os.Stdout.Write(contents)
		return err
	}
	return os.WriteFile(out, contents, 0644)
}
