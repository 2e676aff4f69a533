package pastry

import (
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/spec/ident"
	"go.hopcount.dev/overbench/spec/overlay"
)

// Join mints an identifier for label and joins through the oldest live
// member: a join message is routed toward the new id, every node on the
// path contributes the routing table row matching its shared prefix, the
// delivering node seeds the leaf set, and the newcomer's two immediate
// numeric neighbors hand over the keys now closer to it.
func (o *Overlay) Join(label string) (uint64, overlay.Routed, error) {
	id, err := ident.Mint(label, func(candidate uint64) bool {
		return o.get(candidate) != nil
	})
	if err != nil {
		return 0, overlay.Routed{}, err
	}

	n := newNode(id, label, o.config.LeafEntries)
	n.state.Set(overlay.Joining)

	if len(o.nodes) == 0 {
		n.state.Set(overlay.Active)
		o.admit(n)
		o.logger.Info("Creating new overlay", zap.Uint64("node", id))
		return id, overlay.Routed{Target: id}, nil
	}

	bootstrap := o.get(o.order[0])
	tr := o.exchange.Trace("join", o.hopBudget())

	var path []*node
	nearest, err := o.routeFrom(bootstrap, id, tr, &path)
	if err != nil {
		return 0, overlay.Routed{Hops: tr.Hops()}, err
	}

	// row r of the new table comes from the r-th node on the join path;
	// consider() re-derives each entry's slot so only fitting ids stick
	for r, hop := range path {
		n.learn(hop.id)
		for _, entry := range hop.table.row(r) {
			n.learn(entry)
		}
	}

	// leaf set seeds from the numerically nearest node
	n.leaves.rebuild(append(nearest.leaves.members(), nearest.id))

	// announce to every node we now reference; they fold the newcomer into
	// their own tables opportunistically
	for _, ref := range n.known() {
		if peer := o.get(ref); peer != nil {
			peer.learn(id)
		}
	}

	n.state.Set(overlay.Active)
	o.admit(n)

	// both numeric neighbors surrender the keys now closer to the newcomer
	moved := 0
	neighbors := make([]uint64, 0, 2)
	if len(n.leaves.lower) > 0 {
		neighbors = append(neighbors, n.leaves.lower[0])
	}
	if len(n.leaves.upper) > 0 && (len(neighbors) == 0 || neighbors[0] != n.leaves.upper[0]) {
		neighbors = append(neighbors, n.leaves.upper[0])
	}
	for _, neighbor := range neighbors {
		peer := o.get(neighbor)
		if peer == nil || peer.id == id {
			continue
		}
		handoff := peer.store.Evict(func(keyID uint64) bool {
			dNew := ident.NumericDistance(id, keyID)
			dOld := ident.NumericDistance(peer.id, keyID)
			return dNew < dOld || (dNew == dOld && id < peer.id)
		})
		if len(handoff) == 0 {
			continue
		}
		n.store.Import(handoff)
		moved += len(handoff)
		if err := tr.Forward(peer.id, id); err != nil {
			return 0, overlay.Routed{Hops: tr.Hops()}, err
		}
	}

	o.logger.Info("Joined overlay",
		zap.Uint64("node", id),
		zap.Uint64("via", bootstrap.id),
		zap.Uint64("nearest", nearest.id),
		zap.Int("pathLen", len(path)),
		zap.Int("transferred", moved),
	)
	return id, overlay.Routed{Target: nearest.id, Hops: tr.Hops()}, nil
}

func (o *Overlay) admit(n *node) {
	o.nodes[n.id] = n
	o.ring.Add(n.id)
	o.order = append(o.order, n.id)
}

// Leave removes id gracefully: keys move to the numerically nearest live
// leaf and every node referencing the leaver repairs its slot from its own
// remaining knowledge.
func (o *Overlay) Leave(id uint64) (overlay.Routed, error) {
	if len(o.nodes) == 0 {
		return overlay.Routed{}, overlay.ErrOverlayEmpty
	}
	if err := ident.Validate(id); err != nil {
		return overlay.Routed{}, err
	}
	n := o.get(id)
	if n == nil {
		return overlay.Routed{}, overlay.ErrNodeGone
	}
	n.state.Set(overlay.Leaving)

	tr := o.exchange.Trace("leave", 0)
	defer o.release(n)

	if o.ring.Len() == 1 {
		if n.store.Len() > 0 {
			o.logger.Warn("Last node leaving with resident keys",
				zap.Uint64("node", id),
				zap.Int("keys", n.store.Len()),
			)
		}
		return overlay.Routed{Target: id}, nil
	}

	var heir *node
	best := ident.MaxIdentifier
	for _, leaf := range n.leaves.members() {
		candidate := o.get(leaf)
		if candidate == nil {
			continue
		}
		d := ident.NumericDistance(leaf, id)
		if d < best || heir == nil {
			heir = candidate
			best = d
		}
	}
	if heir == nil {
		// leaf set exhausted, any live member will do
		for _, other := range o.Nodes() {
			if other != id {
				heir = o.get(other)
				break
			}
		}
	}

	moved := n.store.Evict(func(uint64) bool { return true })
	heir.store.Import(moved)
	if len(moved) > 0 {
		if err := tr.Forward(id, heir.id); err != nil {
			return overlay.Routed{Hops: tr.Hops()}, err
		}
	}

	// scrub the leaver everywhere, then let each node refill the freed slot
	// from what it still knows
	o.ring.Range(func(other uint64) bool {
		if other == id {
			return true
		}
		peer := o.get(other)
		peer.forget(id)
		for _, known := range peer.known() {
			peer.table.consider(known)
		}
		return true
	})

	o.logger.Info("Left overlay",
		zap.Uint64("node", id),
		zap.Uint64("heir", heir.id),
		zap.Int("transferred", len(moved)),
	)
	return overlay.Routed{Target: heir.id, Hops: tr.Hops()}, nil
}

func (o *Overlay) release(n *node) {
	n.state.Set(overlay.Left)
	delete(o.nodes, n.id)
	o.ring.Remove(n.id)
	for i, id := range o.order {
		if id == n.id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}
