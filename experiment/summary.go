package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"go.hopcount.dev/overbench/workload"
)

// SummaryRow is one line of the K-query grid summary: per protocol and
// grid coordinate, the K-query mean and p95 hop cost.
type SummaryRow struct {
	Protocol       string
	N              int
	JoinLeave      int
	K              int
	Seed           int64
	Found          int
	KQueryMeanHops *float64
	KQueryP95Hops  *float64
}

// SummaryRows flattens grid cells into per-protocol rows, ordered by
// protocol, then N, then join_leave.
func SummaryRows(cells []*Cell) []SummaryRow {
	rows := make([]SummaryRow, 0, 2*len(cells))
	for _, cell := range cells {
		for _, protocol := range []string{"chord", "pastry"} {
			summary := cell.Record.Chord
			if protocol == "pastry" {
				summary = cell.Record.Pastry
			}
			row := SummaryRow{
				Protocol:  protocol,
				N:         cell.N,
				JoinLeave: cell.JoinLeave,
				K:         cell.Record.Params.K,
				Seed:      cell.Record.Params.Seed,
				Found:     cell.Record.KQueryFound[protocol],
			}
			if kq := summary[workload.ClassKQuery]; kq != nil {
				row.KQueryMeanHops = kq.Mean
				row.KQueryP95Hops = kq.P95
			}
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		if a.N != b.N {
			return a.N < b.N
		}
		return a.JoinLeave < b.JoinLeave
	})
	return rows
}

var gridFilePattern = regexp.MustCompile(`^res_N(\d+)_JL(\d+)_K(\d+)_S(\d+)\.json$`)

// LoadCells reads previously written grid records back from dir, cross
// checking the filename coordinates against the embedded parameters.
func LoadCells(dir string) ([]*Cell, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("experiment: reading results dir: %w", err)
	}

	var cells []*Cell
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := gridFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		jl, _ := strconv.Atoi(m[2])
		k, _ := strconv.Atoi(m[3])
		seed, _ := strconv.ParseInt(m[4], 10, 64)

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("experiment: reading %s: %w", entry.Name(), err)
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("experiment: parsing %s: %w", entry.Name(), err)
		}
		if record.Params.N != n || record.Params.JoinLeave != jl ||
			record.Params.K != k || record.Params.Seed != seed {
			return nil, fmt.Errorf("experiment: %s: embedded params disagree with filename", entry.Name())
		}
		cells = append(cells, &Cell{N: n, JoinLeave: jl, Record: &record})
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("experiment: no res_N*_JL*_K*_S*.json files under %s", dir)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].N != cells[j].N {
			return cells[i].N < cells[j].N
		}
		return cells[i].JoinLeave < cells[j].JoinLeave
	})
	return cells, nil
}
