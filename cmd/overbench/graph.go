package overbench

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"go.hopcount.dev/overbench/chord"
	"go.hopcount.dev/overbench/pastry"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "emit a DOT graph of a stabilized overlay topology",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "protocol",
				Usage: "chord or pastry",
				Value: "chord",
			},
			&cli.IntFlag{
				Name:  "N",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "output path, - for stdout",
				Value: "-",
			},
		},
		Action: runGraph,
	}
}

func runGraph(ctx *cli.Context) error {
	logger := getLogger(ctx)
	n := ctx.Int("N")
	if n < 1 {
		return fmt.Errorf("N must be at least 1")
	}

	var out io.Writer = ctx.App.Writer
	if path := ctx.String("out"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	build := func(join func(string) error, barrier func() error) error {
		for i := 0; i < n; i++ {
			if err := join(fmt.Sprintf("node-%03d", i)); err != nil {
				return err
			}
			if err := barrier(); err != nil {
				return err
			}
		}
		return nil
	}

	switch protocol := ctx.String("protocol"); protocol {
	case "chord":
		ov, err := chord.New(chord.DefaultConfig(logger))
		if err != nil {
			return err
		}
		if err := build(func(label string) error {
			_, _, err := ov.Join(label)
			return err
		}, ov.MaintenanceBarrier); err != nil {
			return err
		}
		return ov.WriteRingGraph(out)
	case "pastry":
		ov, err := pastry.New(pastry.DefaultConfig(logger))
		if err != nil {
			return err
		}
		if err := build(func(label string) error {
			_, _, err := ov.Join(label)
			return err
		}, ov.MaintenanceBarrier); err != nil {
			return err
		}
		return ov.WriteLeafGraph(out)
	default:
		return fmt.Errorf("unknown protocol %q", protocol)
	}
}
