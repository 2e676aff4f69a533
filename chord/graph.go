package chord

import (
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

func formatNode(id uint64) string {
	return fmt.Sprintf("%012x", id)
}

var vOptions = []func(*graph.VertexProperties){
	graph.VertexAttribute("shape", "box"),
}

var rootVOptions = append(vOptions,
	graph.VertexAttribute("style", "filled"),
	graph.VertexAttribute("color", "yellow"),
)

// WriteRingGraph walks the stabilized ring via successor pointers and emits
// it as DOT for the external plot layer. Fails when the ring is not a single
// cycle over all live nodes.
func (o *Overlay) WriteRingGraph(w io.Writer) error {
	ids := o.Nodes()
	if len(ids) == 0 {
		return fmt.Errorf("cannot draw an empty ring")
	}

	root := o.get(ids[0])
	cycle := make([]uint64, 0, len(ids))
	seen := make(map[uint64]bool)

	next := root
	for {
		cycle = append(cycle, next.id)
		seen[next.id] = true
		succ := o.firstLiveSuccessor(next)
		if succ == nil {
			return fmt.Errorf("node %012x has no successor", next.id)
		}
		if succ.id == root.id {
			break
		}
		if seen[succ.id] {
			return fmt.Errorf("ring is unstable")
		}
		next = succ
	}
	if len(cycle) != len(ids) {
		return fmt.Errorf("ring covers %d of %d nodes", len(cycle), len(ids))
	}

	ring := graph.New(formatNode, graph.Directed())
	for _, id := range cycle {
		if id == root.id {
			ring.AddVertex(id, rootVOptions...)
		} else {
			ring.AddVertex(id, vOptions...)
		}
	}
	for i := 0; i < len(cycle)-1; i++ {
		ring.AddEdge(formatNode(cycle[i]), formatNode(cycle[i+1]))
	}
	ring.AddEdge(formatNode(cycle[len(cycle)-1]), formatNode(cycle[0]))

	return draw.DOT(ring, w)
}
