package overbench

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/dataset"
	"go.hopcount.dev/overbench/experiment"
	"go.hopcount.dev/overbench/workload"
)

func workloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "csv",
			Usage:    "path to the movies dataset csv",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "N",
			Usage: "number of initial nodes",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "inserts",
			Value: 2000,
		},
		&cli.IntFlag{
			Name:  "lookups",
			Value: 2000,
		},
		&cli.IntFlag{
			Name:  "updates",
			Value: 300,
		},
		&cli.IntFlag{
			Name:  "deletes",
			Value: 300,
		},
		&cli.IntFlag{
			Name:  "join_leave",
			Usage: "number of churn events",
			Value: 30,
		},
		&cli.IntFlag{
			Name:  "K",
			Usage: "fan-out of the concurrent lookup sub-experiment",
			Value: 50,
		},
		&cli.Int64Flag{
			Name:  "seed",
			Value: 0,
		},
	}
}

func descriptorFromFlags(ctx *cli.Context) workload.Descriptor {
	return workload.Descriptor{
		N:         ctx.Int("N"),
		Inserts:   ctx.Int("inserts"),
		Lookups:   ctx.Int("lookups"),
		Updates:   ctx.Int("updates"),
		Deletes:   ctx.Int("deletes"),
		JoinLeave: ctx.Int("join_leave"),
		K:         ctx.Int("K"),
		Seed:      ctx.Int64("seed"),
	}
}

func loadSource(ctx *cli.Context, desc workload.Descriptor) ([]dataset.Pair, error) {
	// bounded prefix: the driver never reads past the workload size
	limit := desc.Items() + 100
	return dataset.OpenMovies(ctx.String("csv"), limit)
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the baseline workload against both overlays",
		Flags: append(workloadFlags(),
			&cli.StringFlag{
				Name:  "out",
				Usage: "result file path",
				Value: "results.json",
			},
		),
		Action: runBaseline,
	}
}

func runBaseline(ctx *cli.Context) error {
	logger := getLogger(ctx)
	desc := descriptorFromFlags(ctx)

	source, err := loadSource(ctx, desc)
	if err != nil {
		return err
	}

	record, err := experiment.NewRunner(logger).Baseline(source, desc)
	if err != nil {
		return err
	}

	out := ctx.String("out")
	if err := writeRecord(out, record); err != nil {
		return err
	}
	logger.Info("Wrote result record", zap.String("path", out))
	fmt.Fprintf(ctx.App.Writer, "wrote %s\n", out)
	return nil
}

func writeRecord(path string, record *experiment.Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
