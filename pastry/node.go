package pastry

import (
	"go.hopcount.dev/overbench/kv/memory"
	"go.hopcount.dev/overbench/spec/ident"
	"go.hopcount.dev/overbench/spec/overlay"
)

type node struct {
	id    uint64
	label string
	state overlay.State

	leaves *leafSet
	table  *routingTable

	store *memory.MemoryKV
}

func newNode(id uint64, label string, leafEntries int) *node {
	return &node{
		id:     id,
		label:  label,
		leaves: newLeafSet(id, leafEntries),
		table:  newRoutingTable(id),
		store:  memory.WithHashFn(ident.Hash),
	}
}

// known lists every node this node references: leaves plus routing slots.
func (n *node) known() []uint64 {
	seen := make(map[uint64]bool)
	var out []uint64
	for _, id := range append(n.leaves.members(), n.table.members()...) {
		if id == n.id || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// learn records another node in whichever structure it fits.
func (n *node) learn(id uint64) {
	if id == n.id {
		return
	}
	n.table.consider(id)
	n.leaves.rebuild(append(n.leaves.members(), id))
}

// forget drops a departed peer from both structures.
func (n *node) forget(id uint64) {
	n.table.remove(id)
	members := n.leaves.members()
	kept := members[:0]
	for _, m := range members {
		if m != id {
			kept = append(kept, m)
		}
	}
	n.leaves.rebuild(kept)
}
