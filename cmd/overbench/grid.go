package overbench

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/experiment"
)

func gridCmd() *cli.Command {
	return &cli.Command{
		Name:  "grid",
		Usage: "run the N x join_leave grid with fixed K and seed",
		Flags: append(workloadFlags(),
			&cli.IntSliceFlag{
				Name:  "grid_N",
				Usage: "node counts to sweep",
				Value: cli.NewIntSlice(20, 50, 100),
			},
			&cli.IntSliceFlag{
				Name:  "grid_join_leave",
				Usage: "churn volumes to sweep",
				Value: cli.NewIntSlice(0, 20, 50),
			},
			&cli.StringFlag{
				Name:  "outdir",
				Usage: "directory for per-cell result files",
				Value: "results",
			},
		),
		Action: runGrid,
	}
}

func runGrid(ctx *cli.Context) error {
	logger := getLogger(ctx)
	desc := descriptorFromFlags(ctx)

	source, err := loadSource(ctx, desc)
	if err != nil {
		return err
	}

	outdir := ctx.String("outdir")
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}

	cells, err := experiment.NewRunner(logger).Grid(source, desc,
		ctx.IntSlice("grid_N"), ctx.IntSlice("grid_join_leave"))
	if err != nil {
		return err
	}

	for _, cell := range cells {
		path := filepath.Join(outdir, cell.Filename())
		if err := writeRecord(path, cell.Record); err != nil {
			return err
		}
		logger.Info("Wrote grid cell", zap.String("path", path))
	}
	fmt.Fprintf(ctx.App.Writer, "wrote %d records under %s\n", len(cells), outdir)
	return nil
}
