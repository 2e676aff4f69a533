// Package experiment builds both overlays, runs the workload against each,
// and assembles the result record the external serializer writes out.
package experiment

import (
	"fmt"

	"go.uber.org/zap"

	"go.hopcount.dev/overbench/chord"
	"go.hopcount.dev/overbench/dataset"
	"go.hopcount.dev/overbench/metrics"
	"go.hopcount.dev/overbench/pastry"
	"go.hopcount.dev/overbench/spec/overlay"
	"go.hopcount.dev/overbench/workload"
)

// Record is the per-run result: one summary map per protocol keyed by op
// class, the echoed parameters, and the merged error tallies.
type Record struct {
	Chord       map[string]*metrics.Summary `json:"chord"`
	Pastry      map[string]*metrics.Summary `json:"pastry"`
	Params      workload.Descriptor         `json:"params"`
	Errors      map[string]int              `json:"errors"`
	KQueryFound map[string]int              `json:"kquery_found"`
}

type Runner struct {
	logger *zap.Logger
}

func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

func (r *Runner) buildOverlay(protocol string) (overlay.Overlay, error) {
	switch protocol {
	case "chord":
		return chord.New(chord.DefaultConfig(r.logger))
	case "pastry":
		return pastry.New(pastry.DefaultConfig(r.logger))
	default:
		return nil, fmt.Errorf("experiment: unknown protocol %q", protocol)
	}
}

func (r *Runner) runProtocol(protocol string, source []dataset.Pair, desc workload.Descriptor) (*workload.Outcome, error) {
	ov, err := r.buildOverlay(protocol)
	if err != nil {
		return nil, err
	}
	driver := workload.NewDriver(r.logger, ov)
	outcome, err := driver.Run(source, desc)
	if err != nil {
		return nil, fmt.Errorf("experiment: %s workload: %w", protocol, err)
	}
	return outcome, nil
}

// Baseline runs the same descriptor against a fresh Chord and a fresh
// Pastry overlay and folds both outcomes into one record. Identical seeds
// produce byte-identical records.
func (r *Runner) Baseline(source []dataset.Pair, desc workload.Descriptor) (*Record, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	chordOut, err := r.runProtocol("chord", source, desc)
	if err != nil {
		return nil, err
	}
	pastryOut, err := r.runProtocol("pastry", source, desc)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]int)
	for kind, count := range chordOut.Errors {
		merged[kind] += count
	}
	for kind, count := range pastryOut.Errors {
		merged[kind] += count
	}

	return &Record{
		Chord:  chordOut.Summary,
		Pastry: pastryOut.Summary,
		Params: desc,
		Errors: merged,
		KQueryFound: map[string]int{
			"chord":  chordOut.KQueryFound,
			"pastry": pastryOut.KQueryFound,
		},
	}, nil
}

// Cell is one grid coordinate along with its completed record.
type Cell struct {
	N         int
	JoinLeave int
	Record    *Record
}

// Filename is the canonical grid file name for this cell.
func (c *Cell) Filename() string {
	return fmt.Sprintf("res_N%d_JL%d_K%d_S%d.json", c.N, c.JoinLeave, c.Record.Params.K, c.Record.Params.Seed)
}

// Grid runs the Cartesian product of ns and joinLeaves over the base
// descriptor with fixed K and seed, one record per cell.
func (r *Runner) Grid(source []dataset.Pair, base workload.Descriptor, ns, joinLeaves []int) ([]*Cell, error) {
	cells := make([]*Cell, 0, len(ns)*len(joinLeaves))
	for _, n := range ns {
		for _, jl := range joinLeaves {
			desc := base
			desc.N = n
			desc.JoinLeave = jl
			r.logger.Info("Running grid cell",
				zap.Int("N", n),
				zap.Int("joinLeave", jl),
			)
			record, err := r.Baseline(source, desc)
			if err != nil {
				return nil, err
			}
			cells = append(cells, &Cell{N: n, JoinLeave: jl, Record: record})
		}
	}
	return cells, nil
}
