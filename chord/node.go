package chord

import (
	"go.hopcount.dev/overbench/kv/memory"
	"go.hopcount.dev/overbench/spec/ident"
	"go.hopcount.dev/overbench/spec/overlay"
)

// node is one ring member. Nodes live in the overlay arena and refer to each
// other by identifier only; resolving a reference goes through the arena so
// a departed peer simply stops resolving.
type node struct {
	id    uint64
	label string
	state overlay.State

	predecessor uint64
	hasPred     bool

	// successors[0] is the immediate successor
	successors []uint64
	fingers    []uint64

	store *memory.MemoryKV
}

func newNode(id uint64, label string) *node {
	n := &node{
		id:      id,
		label:   label,
		fingers: make([]uint64, ident.MaxBits),
		store:   memory.WithHashFn(ident.Hash),
	}
	for i := range n.fingers {
		n.fingers[i] = id
	}
	return n
}

func (n *node) clearPredecessor() {
	n.predecessor = 0
	n.hasPred = false
}

func (n *node) setPredecessor(id uint64) {
	n.predecessor = id
	n.hasPred = true
}

// ownsKey reports responsibility for id under the ring predicate
// id IN (predecessor, n].
func (n *node) ownsKey(id uint64) bool {
	if !n.hasPred {
		return true
	}
	return ident.BetweenInclusiveHigh(n.predecessor, id, n.id)
}
