// Package metrics aggregates per-class hop counts into the summary
// statistics the result record carries.
package metrics

import (
	"sort"

	"github.com/montanaflynn/stats"
)

// Summary holds one operation class's hop statistics. The pointers are nil
// when the class recorded no samples, serialized as JSON null.
type Summary struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	P95    *float64 `json:"p95"`
}

type Aggregator struct {
	samples map[string][]float64
	errors  map[string]int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		samples: make(map[string][]float64),
		errors:  make(map[string]int),
	}
}

func (a *Aggregator) Record(class string, hops int) {
	a.samples[class] = append(a.samples[class], float64(hops))
}

// RecordError tallies an operation-level error. It adds no hop sample; an
// operation counts toward its class statistics only through Record.
func (a *Aggregator) RecordError(kind string) {
	if kind == "" {
		kind = "Unknown"
	}
	a.errors[kind]++
}

func (a *Aggregator) Errors() map[string]int {
	out := make(map[string]int, len(a.errors))
	for kind, count := range a.errors {
		out[kind] = count
	}
	return out
}

func (a *Aggregator) Count(class string) int {
	return len(a.samples[class])
}

// Summarize reports one Summary per requested class. Classes without
// samples are present with a zero count and null statistics.
func (a *Aggregator) Summarize(classes ...string) map[string]*Summary {
	out := make(map[string]*Summary, len(classes))
	for _, class := range classes {
		out[class] = a.summarizeClass(class)
	}
	return out
}

func (a *Aggregator) summarizeClass(class string) *Summary {
	values := a.samples[class]
	if len(values) == 0 {
		return &Summary{}
	}

	mean, err := stats.Mean(stats.Float64Data(values))
	if err != nil {
		return &Summary{}
	}
	p95, err := stats.PercentileNearestRank(stats.Float64Data(values), 95)
	if err != nil {
		return &Summary{}
	}

	// lower of the two middles for even counts
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median := sorted[(len(sorted)-1)/2]

	return &Summary{
		Count:  len(values),
		Mean:   &mean,
		Median: &median,
		P95:    &p95,
	}
}
