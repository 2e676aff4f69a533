package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	as := require.New(t)
	agg := NewAggregator()

	for _, hops := range []int{3, 1, 4, 1, 5} {
		agg.Record("lookup", hops)
	}

	out := agg.Summarize("lookup", "insert")

	lookup := out["lookup"]
	as.Equal(5, lookup.Count)
	as.InDelta(2.8, *lookup.Mean, 1e-9)
	// sorted: 1 1 3 4 5
	as.Equal(3.0, *lookup.Median)
	as.Equal(5.0, *lookup.P95)

	// empty class is present with a zero count and null statistics
	insert := out["insert"]
	as.Equal(0, insert.Count)
	as.Nil(insert.Mean)
	as.Nil(insert.Median)
	as.Nil(insert.P95)
}

func TestMedianLowerMiddle(t *testing.T) {
	as := require.New(t)
	agg := NewAggregator()

	for _, hops := range []int{4, 2, 3, 1} {
		agg.Record("lookup", hops)
	}
	out := agg.Summarize("lookup")
	// even count takes the lower of the two middles: sorted 1 2 3 4 -> 2
	as.Equal(2.0, *out["lookup"].Median)
}

func TestP95NearestRank(t *testing.T) {
	as := require.New(t)
	agg := NewAggregator()

	// ranks 1..100, nearest-rank p95 is the 95th value
	for i := 1; i <= 100; i++ {
		agg.Record("lookup", i)
	}
	out := agg.Summarize("lookup")
	as.Equal(95.0, *out["lookup"].P95)

	single := NewAggregator()
	single.Record("lookup", 7)
	as.Equal(7.0, *single.Summarize("lookup")["lookup"].P95)
}

func TestErrorTally(t *testing.T) {
	as := require.New(t)
	agg := NewAggregator()

	agg.RecordError("RoutingDiverged")
	agg.RecordError("RoutingDiverged")
	agg.RecordError("KeyNotFound")
	agg.RecordError("")

	errs := agg.Errors()
	as.Equal(2, errs["RoutingDiverged"])
	as.Equal(1, errs["KeyNotFound"])
	as.Equal(1, errs["Unknown"])
}
