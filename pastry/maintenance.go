package pastry

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

// repairLeaves rebuilds n's leaf set from its current leaves plus their
// leaves, the standard one-round gossip repair.
func (o *Overlay) repairLeaves(n *node) {
	candidates := n.leaves.members()
	for _, leaf := range n.leaves.members() {
		if peer := o.get(leaf); peer != nil {
			candidates = append(candidates, peer.leaves.members()...)
			candidates = append(candidates, peer.id)
		}
	}
	candidates = append(candidates, n.table.members()...)

	live := candidates[:0]
	for _, id := range candidates {
		if o.get(id) != nil {
			live = append(live, id)
		}
	}
	n.leaves.rebuild(live)
}

// repairTable prunes dead slots and refills from everything n knows.
func (o *Overlay) repairTable(n *node) {
	for _, id := range n.table.members() {
		if o.get(id) == nil {
			n.table.remove(id)
		}
	}
	for _, id := range n.known() {
		n.table.consider(id)
	}
}

// fingerprint digests every node's routing state; an unchanged digest
// between rounds means the barrier reached a fixed point.
func (o *Overlay) fingerprint() uint64 {
	hasher := xxh3.New()
	buf := make([]byte, 8)
	write := func(v uint64) {
		binary.BigEndian.PutUint64(buf, v)
		hasher.Write(buf)
	}
	o.ring.Range(func(id uint64) bool {
		n := o.get(id)
		write(n.id)
		for _, leaf := range n.leaves.members() {
			write(leaf)
		}
		for _, entry := range n.table.members() {
			write(entry)
		}
		return true
	})
	return hasher.Sum64()
}

// rehomeKeys moves any key stranded by membership change back to the node
// numerically nearest to it, so the residency invariant holds at every
// barrier. A departing node's heir sheds the half that belongs across the
// gap here.
func (o *Overlay) rehomeKeys() {
	for _, id := range o.Nodes() {
		n := o.get(id)
		strays := n.store.Evict(func(keyID uint64) bool {
			owner, err := o.Responsible(keyID)
			return err == nil && owner != n.id
		})
		for _, e := range strays {
			owner, err := o.Responsible(e.ID)
			if err != nil {
				continue
			}
			o.get(owner).store.Put(e.Key, e.Value)
		}
		if len(strays) > 0 {
			o.logger.Debug("Rehomed stray keys",
				zap.Uint64("node", id),
				zap.Int("keys", len(strays)),
			)
		}
	}
}

// MaintenanceBarrier repairs leaf sets and routing tables to a fixed point.
// Workload operations never overlap a barrier.
func (o *Overlay) MaintenanceBarrier() error {
	if len(o.nodes) == 0 {
		return nil
	}
	before := o.fingerprint()
	for round := 0; round < o.config.MaxBarrierRounds; round++ {
		ids := o.Nodes()
		for _, id := range ids {
			o.repairLeaves(o.get(id))
		}
		for _, id := range ids {
			o.repairTable(o.get(id))
		}
		after := o.fingerprint()
		if after == before {
			o.rehomeKeys()
			return nil
		}
		before = after
	}
	o.rehomeKeys()
	o.logger.Warn("Barrier did not reach a fixed point",
		zap.Int("rounds", o.config.MaxBarrierRounds),
		zap.Int("nodes", len(o.nodes)),
	)
	return nil
}
