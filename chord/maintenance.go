package chord

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/spec/ident"
)

// makeSuccList builds a deduplicated successor list headed by immediate.
func makeSuccList(immediate uint64, successors []uint64, maxLen int) []uint64 {
	succList := []uint64{immediate}
	seen := map[uint64]bool{immediate: true}

	for _, succ := range successors {
		if len(succList) >= maxLen {
			break
		}
		if seen[succ] {
			continue
		}
		seen[succ] = true
		succList = append(succList, succ)
	}
	return succList
}

// stabilize asks the successor for its predecessor, adopts it when it sits
// between the two, then notifies the successor.
func (o *Overlay) stabilize(n *node) {
	succ := o.firstLiveSuccessor(n)
	if succ == nil {
		// total successor loss, reattach via ring order
		owner, err := o.Responsible(ident.ModuloSum(n.id, 1))
		if err != nil || owner == n.id {
			n.successors = []uint64{n.id}
			return
		}
		succ = o.get(owner)
	}

	// the check must also run when n is its own successor: a degenerate
	// (n, n) interval admits any other node, which is how the ring creator
	// adopts its first peer
	if succ.hasPred {
		if x := o.get(succ.predecessor); x != nil && x.id != n.id && ident.BetweenStrict(n.id, x.id, succ.id) {
			o.logger.Debug("Discovered new successor via stabilize",
				zap.Uint64("node", n.id),
				zap.Uint64("new", x.id),
				zap.Uint64("old", succ.id),
			)
			succ = x
		}
	}

	n.successors = makeSuccList(succ.id, succ.successors, o.config.SuccessorEntries)
	o.notify(succ, n)
}

// notify tells succ that n might be its predecessor.
func (o *Overlay) notify(succ, n *node) {
	if succ.id == n.id {
		return
	}
	if !succ.hasPred || o.get(succ.predecessor) == nil ||
		ident.BetweenStrict(succ.predecessor, n.id, succ.id) {
		succ.setPredecessor(n.id)
	}
}

// checkPredecessor clears a predecessor pointer left dangling by a departed
// node.
func (o *Overlay) checkPredecessor(n *node) {
	if n.hasPred && o.get(n.predecessor) == nil {
		o.logger.Debug("Discovered dead predecessor", zap.Uint64("node", n.id))
		n.clearPredecessor()
	}
}

// fixFingers recomputes the full finger table through protocol routing.
// Maintenance forwards are free: the trace exists only to bound runaway
// routes while the ring is still converging.
func (o *Overlay) fixFingers(n *node) {
	budget := len(o.nodes) + 8
	for i := 0; i < ident.MaxBits; i++ {
		start := ident.ModuloSum(n.id, 1<<uint(i))
		tr := o.exchange.Trace("fix-fingers", budget)
		f, err := o.findSuccessor(n, start, tr)
		if err != nil {
			continue
		}
		n.fingers[i] = f.id
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
		if n.hasPred {
			write(n.predecessor)
		}
		for _, s := range n.successors {
			write(s)
		}
		for _, f := range n.fingers {
			write(f)
		}
		return true
	})
	return hasher.Sum64()
}

// rehomeKeys moves any key stranded by membership change back to its
// responsible node, so the residency invariant holds at every barrier.
func (o *Overlay) rehomeKeys() {
	for _, id := range o.Nodes() {
		n := o.get(id)
		strays := n.store.Evict(func(keyID uint64) bool {
			return !n.ownsKey(keyID)
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

// MaintenanceBarrier runs stabilization rounds until the overlay reaches a
// fixed point. Workload operations never overlap a barrier.
func (o *Overlay) MaintenanceBarrier() error {
	if len(o.nodes) == 0 {
		return nil
	}
	before := o.fingerprint()
	for round := 0; round < o.config.MaxBarrierRounds; round++ {
		ids := o.Nodes()
		for _, id := range ids {
			o.checkPredecessor(o.get(id))
		}
		for _, id := range ids {
			o.stabilize(o.get(id))
		}
		for _, id := range ids {
			o.fixFingers(o.get(id))
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
