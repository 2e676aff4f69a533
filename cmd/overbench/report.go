package overbench

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.hopcount.dev/overbench/experiment"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "summarize grid results into csv and markdown tables",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "results",
				Usage: "directory holding res_N*_JL*_K*_S*.json files",
				Value: "results",
			},
			&cli.StringFlag{
				Name:  "outdir",
				Usage: "directory for the summary files",
				Value: "results",
			},
		},
		Action: runReport,
	}
}

func formatStat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

func runReport(ctx *cli.Context) error {
	cells, err := experiment.LoadCells(ctx.String("results"))
	if err != nil {
		return err
	}
	rows := experiment.SummaryRows(cells)

	summary := table.NewWriter()
	summary.AppendHeader(table.Row{"protocol", "N", "join_leave", "K", "seed", "found", "kquery_mean_hops", "kquery_p95_hops"})
	for _, row := range rows {
		summary.AppendRow(table.Row{
			row.Protocol,
			row.N,
			row.JoinLeave,
			row.K,
			row.Seed,
			fmt.Sprintf("%d/%d", row.Found, row.K),
			formatStat(row.KQueryMeanHops),
			formatStat(row.KQueryP95Hops),
		})
	}
	summary.SetStyle(table.StyleDefault)
	summary.Style().Options.SeparateRows = true

	outdir := ctx.String("outdir")
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}
	csvPath := filepath.Join(outdir, "kquery_summary.csv")
	if err := os.WriteFile(csvPath, []byte(summary.RenderCSV()+"\n"), 0644); err != nil {
		return err
	}
	mdPath := filepath.Join(outdir, "kquery_summary.md")
	if err := os.WriteFile(mdPath, []byte(summary.RenderMarkdown()+"\n"), 0644); err != nil {
		return err
	}

	summary.SetOutputMirror(ctx.App.Writer)
	summary.Render()
	fmt.Fprintf(ctx.App.Writer, "wrote %s and %s\n", csvPath, mdPath)
	return nil
}
