package workload

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"sync"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/spec/overlay"
)

type kqueryResult struct {
	routed overlay.Routed
	found  bool
	err    error
}

// childSeed derives a deterministic, independent RNG stream for task index
// from the run seed. The parent generator is never touched concurrently.
func childSeed(seed int64, index int) int64 {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf, uint64(seed))
	binary.BigEndian.PutUint64(buf[8:], uint64(index))
	return int64(xxh3.Hash(buf))
}

// kquery issues k concurrent lookups over a disjoint sample of live keys.
// Each task owns its key, its RNG stream, and its hop trace; only reads
// touch shared overlay state, so no write gate is needed on the hot path.
func (d *Driver) kquery(k int, seed int64) (int, error) {
	if k == 0 {
		return 0, nil
	}
	if k > len(d.live) {
		d.logger.Warn("K exceeds live keys, clamping",
			zap.Int("k", k),
			zap.Int("live", len(d.live)),
		)
		k = len(d.live)
	}
	if k == 0 {
		return 0, nil
	}

	// disjoint sample drawn sequentially from the parent stream
	sample := make([]string, 0, k)
	perm := d.rng.Perm(len(d.live))
	for _, idx := range perm[:k] {
		sample = append(sample, d.live[idx])
	}

	nodes := d.ov.Nodes()
	if len(nodes) == 0 {
		return 0, overlay.ErrOverlayEmpty
	}

	results := make([]kqueryResult, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			taskRng := rand.New(rand.NewSource(childSeed(seed, i)))
			origin := nodes[taskRng.Intn(len(nodes))]
			value, routed, err := d.ov.Get(origin, []byte(sample[i]))
			results[i] = kqueryResult{
				routed: routed,
				found:  err == nil && value != nil,
				err:    err,
			}
		}(i)
	}
	wg.Wait()

	// fold results back in task order so the aggregation is deterministic
	found := 0
	for _, res := range results {
		if res.err != nil && !overlay.Recoverable(res.err) {
			return found, res.err
		}
		if res.err != nil {
			d.agg.RecordError(overlay.Kind(res.err))
			if errors.Is(res.err, overlay.ErrRoutingDiverged) {
				continue
			}
		}
		d.agg.Record(ClassKQuery, res.routed.Hops)
		if res.found {
			found++
		}
	}
	return found, nil
}
