// Package workload drives one overlay through the benchmark phases:
// insert, lookup, update, delete, churn, and the concurrent K-query,
// tagging every operation with its routing cost.
package workload

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"go.hopcount.dev/overbench/dataset"
	"go.hopcount.dev/overbench/metrics"
	"go.hopcount.dev/overbench/spec/overlay"
)

const (
	ClassInsert = "insert"
	ClassLookup = "lookup"
	ClassUpdate = "update"
	ClassDelete = "delete"
	ClassChurn  = "churn"
	ClassKQuery = "kquery"
)

// Classes lists every op class in phase order; the aggregator reports all
// of them even when a phase ran zero operations.
var Classes = []string{ClassInsert, ClassLookup, ClassUpdate, ClassDelete, ClassChurn, ClassKQuery}

// Outcome is what one protocol run hands back to the runner.
type Outcome struct {
	Summary     map[string]*metrics.Summary
	Errors      map[string]int
	KQueryFound int
	// ResidentKeys is the post-run overlay-wide key count, used by audits.
	ResidentKeys int
}

type Driver struct {
	logger *zap.Logger
	ov     overlay.Overlay
	agg    *metrics.Aggregator
	rng    *rand.Rand

	live []string // inserted, not yet deleted keys, in insertion order
}

func NewDriver(logger *zap.Logger, ov overlay.Overlay) *Driver {
	return &Driver{
		logger: logger.With(zap.String("protocol", ov.Protocol())),
		ov:     ov,
		agg:    metrics.NewAggregator(),
	}
}

// Run executes the full workload against the overlay. Recoverable errors
// (missing keys, diverged routes) are tallied and the run continues;
// structural errors abort.
func (d *Driver) Run(source []dataset.Pair, desc Descriptor) (*Outcome, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if len(source) < desc.Inserts {
		return nil, fmt.Errorf("workload: source has %d items, need %d", len(source), desc.Inserts)
	}
	d.rng = rand.New(rand.NewSource(desc.Seed))

	if err := d.build(desc.N); err != nil {
		return nil, err
	}
	if err := d.inserts(source, desc.Inserts); err != nil {
		return nil, err
	}
	if err := d.lookups(desc.Lookups); err != nil {
		return nil, err
	}
	if err := d.updates(desc.Updates); err != nil {
		return nil, err
	}
	if err := d.deletes(desc.Deletes); err != nil {
		return nil, err
	}
	if err := d.churn(desc.JoinLeave); err != nil {
		return nil, err
	}
	found, err := d.kquery(desc.K, desc.Seed)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Summary:      d.agg.Summarize(Classes...),
		Errors:       d.agg.Errors(),
		KQueryFound:  found,
		ResidentKeys: d.ov.Keys(),
	}, nil
}

// build joins N nodes sequentially through the first node, running the
// maintenance barrier between joins so every node starts from a stable
// overlay.
func (d *Driver) build(n int) error {
	for i := 0; i < n; i++ {
		label := fmt.Sprintf("node-%03d", i)
		if _, _, err := d.ov.Join(label); err != nil {
			return fmt.Errorf("workload: joining %s: %w", label, err)
		}
		if err := d.ov.MaintenanceBarrier(); err != nil {
			return err
		}
	}
	d.logger.Info("Overlay built", zap.Int("nodes", n))
	return nil
}

// origin picks the node a routed operation starts from.
func (d *Driver) origin() (uint64, error) {
	nodes := d.ov.Nodes()
	if len(nodes) == 0 {
		return 0, overlay.ErrOverlayEmpty
	}
	return nodes[d.rng.Intn(len(nodes))], nil
}

// settle tallies a recoverable operation error, or aborts on a structural
// one. Diverged routes are excluded from the class statistics; a completed
// route that misses the key still counts its hops.
func (d *Driver) settle(class string, r overlay.Routed, err error) error {
	if err == nil {
		d.agg.Record(class, r.Hops)
		return nil
	}
	if !overlay.Recoverable(err) {
		return err
	}
	d.agg.RecordError(overlay.Kind(err))
	if !errors.Is(err, overlay.ErrRoutingDiverged) {
		d.agg.Record(class, r.Hops)
	}
	return nil
}

func (d *Driver) inserts(source []dataset.Pair, count int) error {
	for _, item := range source[:count] {
		origin, err := d.origin()
		if err != nil {
			return err
		}
		r, err := d.ov.Put(origin, item.Key, item.Value.Encode())
		if err := d.settle(ClassInsert, r, err); err != nil {
			return err
		}
		d.live = append(d.live, string(item.Key))
	}
	return nil
}

func (d *Driver) lookups(count int) error {
	for i := 0; i < count; i++ {
		key, ok := d.pickLive()
		if !ok {
			break
		}
		origin, err := d.origin()
		if err != nil {
			return err
		}
		_, r, err := d.ov.Get(origin, []byte(key))
		if err := d.settle(ClassLookup, r, err); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) updates(count int) error {
	for i := 0; i < count; i++ {
		key, ok := d.pickLive()
		if !ok {
			break
		}
		origin, err := d.origin()
		if err != nil {
			return err
		}
		popularity := d.rng.Float64() * 100
		value := dataset.Record{Popularity: &popularity}
		r, err := d.ov.Update(origin, []byte(key), value.Encode())
		if err := d.settle(ClassUpdate, r, err); err != nil {
			return err
		}
	}
	return nil
}

// deletes removes count distinct previously-inserted keys.
func (d *Driver) deletes(count int) error {
	for i := 0; i < count && len(d.live) > 0; i++ {
		idx := d.rng.Intn(len(d.live))
		key := d.live[idx]
		d.live = append(d.live[:idx], d.live[idx+1:]...)

		origin, err := d.origin()
		if err != nil {
			return err
		}
		r, err := d.ov.Delete(origin, []byte(key))
		if err := d.settle(ClassDelete, r, err); err != nil {
			return err
		}
	}
	return nil
}

// churn runs join/leave cycles: one node joins, a random node leaves, and
// the maintenance barrier restores the invariants after each event. The
// recorded cost is the join route plus both key migrations.
func (d *Driver) churn(count int) error {
	for i := 0; i < count; i++ {
		label := fmt.Sprintf("churn-%03d", i)
		_, joined, err := d.ov.Join(label)
		if err != nil {
			if !overlay.Recoverable(err) {
				return fmt.Errorf("workload: churn join %s: %w", label, err)
			}
			d.agg.RecordError(overlay.Kind(err))
			continue
		}
		if err := d.ov.MaintenanceBarrier(); err != nil {
			return err
		}

		nodes := d.ov.Nodes()
		victim := nodes[d.rng.Intn(len(nodes))]
		left, err := d.ov.Leave(victim)
		if err != nil {
			if !overlay.Recoverable(err) {
				return fmt.Errorf("workload: churn leave %012x: %w", victim, err)
			}
			d.agg.RecordError(overlay.Kind(err))
			continue
		}
		if err := d.ov.MaintenanceBarrier(); err != nil {
			return err
		}

		d.agg.Record(ClassChurn, joined.Hops+left.Hops)
	}
	return nil
}

// pickLive draws a random live key with replacement.
func (d *Driver) pickLive() (string, bool) {
	if len(d.live) == 0 {
		return "", false
	}
	return d.live[d.rng.Intn(len(d.live))], true
}
