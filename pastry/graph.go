package pastry

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

// WriteLeafGraph walks the overlay clockwise via each node's nearest upper
// leaf and emits the resulting ring as DOT for the external plot layer.
func (o *Overlay) WriteLeafGraph(w io.Writer) error {
	ids := o.Nodes()
	if len(ids) == 0 {
		return fmt.Errorf("cannot draw an empty overlay")
	}

	root := o.get(ids[0])
	cycle := make([]uint64, 0, len(ids))
	seen := make(map[uint64]bool)

	next := root
	for {
		cycle = append(cycle, next.id)
		seen[next.id] = true
		if len(next.leaves.upper) == 0 {
			if len(ids) == 1 {
				break
			}
			return fmt.Errorf("node %012x has no upper leaf", next.id)
		}
		succ := o.get(next.leaves.upper[0])
		if succ == nil {
			return fmt.Errorf("node %012x references a departed leaf", next.id)
		}
		if succ.id == root.id {
			break
		}
		if seen[succ.id] {
			return fmt.Errorf("leaf ring is unstable")
		}
		next = succ
	}
	if len(cycle) != len(ids) {
		return fmt.Errorf("leaf ring covers %d of %d nodes", len(cycle), len(ids))
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
	if len(cycle) > 1 {
		ring.AddEdge(formatNode(cycle[len(cycle)-1]), formatNode(cycle[0]))
	}

	return draw.DOT(ring, w)
}
