package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/dataset"
	"go.hopcount.dev/overbench/workload"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSource(n int) []dataset.Pair {
	pairs := make([]dataset.Pair, n)
	for i := range pairs {
		pairs[i] = dataset.Pair{
			Key:   []byte(fmt.Sprintf("movie-%04d", i)),
			Value: dataset.Record{ID: fmt.Sprintf("%d", i)},
		}
	}
	return pairs
}

func TestBaselineRecordShape(t *testing.T) {
	as := require.New(t)
	runner := NewRunner(zap.NewNop())

	desc := workload.Descriptor{
		N:         5,
		Inserts:   30,
		Lookups:   30,
		Updates:   10,
		Deletes:   10,
		JoinLeave: 2,
		K:         5,
		Seed:      1,
	}
	record, err := runner.Baseline(testSource(200), desc)
	as.NoError(err)

	for _, class := range workload.Classes {
		as.Contains(record.Chord, class)
		as.Contains(record.Pastry, class)
	}
	as.Equal(desc, record.Params)
	as.Contains(record.KQueryFound, "chord")
	as.Contains(record.KQueryFound, "pastry")
}

func TestBaselineDeterminism(t *testing.T) {
	as := require.New(t)
	runner := NewRunner(zap.NewNop())

	desc := workload.Descriptor{
		N:         8,
		Inserts:   40,
		Lookups:   40,
		Updates:   10,
		Deletes:   10,
		JoinLeave: 3,
		K:         6,
		Seed:      1,
	}

	marshal := func() []byte {
		record, err := runner.Baseline(testSource(200), desc)
		as.NoError(err)
		data, err := json.Marshal(record)
		as.NoError(err)
		return data
	}
	as.Equal(marshal(), marshal())
}

func TestGridCells(t *testing.T) {
	as := require.New(t)
	runner := NewRunner(zap.NewNop())

	base := workload.Descriptor{
		N:       5,
		Inserts: 20,
		Lookups: 20,
		K:       4,
		Seed:    1,
	}
	cells, err := runner.Grid(testSource(100), base, []int{3, 5}, []int{0, 2})
	as.NoError(err)
	as.Len(cells, 4)

	as.Equal("res_N3_JL0_K4_S1.json", cells[0].Filename())
	as.Equal(3, cells[0].Record.Params.N)
	as.Equal(2, cells[1].Record.Params.JoinLeave)
}

func TestSummaryRowsAndLoadCells(t *testing.T) {
	as := require.New(t)
	runner := NewRunner(zap.NewNop())

	base := workload.Descriptor{
		N:       4,
		Inserts: 20,
		Lookups: 20,
		K:       4,
		Seed:    1,
	}
	cells, err := runner.Grid(testSource(100), base, []int{3, 4}, []int{0})
	as.NoError(err)

	dir := t.TempDir()
	for _, cell := range cells {
		data, err := json.Marshal(cell.Record)
		as.NoError(err)
		as.NoError(os.WriteFile(filepath.Join(dir, cell.Filename()), data, 0644))
	}

	loaded, err := LoadCells(dir)
	as.NoError(err)
	as.Len(loaded, len(cells))

	rows := SummaryRows(loaded)
	as.Len(rows, 2*len(cells))
	as.Equal("chord", rows[0].Protocol)
	as.Equal("pastry", rows[len(rows)-1].Protocol)
	for _, row := range rows {
		as.Equal(4, row.K)
		as.Equal(int64(1), row.Seed)
		as.NotNil(row.KQueryMeanHops)
		as.NotNil(row.KQueryP95Hops)
	}
}

func TestLoadCellsRejectsMismatchedParams(t *testing.T) {
	as := require.New(t)
	dir := t.TempDir()

	record := &Record{
		Params: workload.Descriptor{N: 99, K: 4, Seed: 1},
	}
	data, err := json.Marshal(record)
	as.NoError(err)
	as.NoError(os.WriteFile(filepath.Join(dir, "res_N3_JL0_K4_S1.json"), data, 0644))

	_, err = LoadCells(dir)
	as.ErrorContains(err, "disagree")
}
