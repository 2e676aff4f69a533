// Package pastry implements the prefix-routing overlay: leaf sets, a
// digit-indexed routing table, and the traced join protocol, executed
// in-process against an arena of virtual nodes with hop-accounted routing.
package pastry

import (
	"fmt"
	"math/bits"

	"github.com/zhangyunhao116/skipset"
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/bus"
	"go.hopcount.dev/overbench/spec/ident"
	"go.hopcount.dev/overbench/spec/overlay"
)

type Overlay struct {
	config   Config
	logger   *zap.Logger
	exchange *bus.Exchange

	// the arena owns all node storage; everything else refers by id
	nodes map[uint64]*node
	ring  *skipset.Uint64Set
	order []uint64
}

var _ overlay.Overlay = (*Overlay)(nil)

func New(config Config) (*Overlay, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger.With(zap.String("protocol", "pastry"))
	return &Overlay{
		config:   config,
		logger:   logger,
		exchange: bus.New(logger),
		nodes:    make(map[uint64]*node),
		ring:     skipset.NewUint64(),
	}, nil
}

func (o *Overlay) Protocol() string {
	return "pastry"
}

func (o *Overlay) get(id uint64) *node {
	return o.nodes[id]
}

func (o *Overlay) Nodes() []uint64 {
	ids := make([]uint64, 0, len(o.nodes))
	o.ring.Range(func(id uint64) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func (o *Overlay) Keys() int {
	total := 0
	for _, n := range o.nodes {
		total += n.store.Len()
	}
	return total
}

// Responsible resolves ground-truth responsibility without routing: the
// live node numerically nearest to id, ties to the lower identifier.
func (o *Overlay) Responsible(id uint64) (uint64, error) {
	if err := ident.Validate(id); err != nil {
		return 0, err
	}
	if o.ring.Len() == 0 {
		return 0, overlay.ErrOverlayEmpty
	}
	var (
		owner uint64
		best  uint64
		first = true
	)
	o.ring.Range(func(candidate uint64) bool {
		d := ident.NumericDistance(candidate, id)
		if first || d < best || (d == best && candidate < owner) {
			owner = candidate
			best = d
			first = false
		}
		return true
	})
	return owner, nil
}

// hopBudget bounds one routed operation at 4*ceil(log_2^b N), floor 32.
func (o *Overlay) hopBudget() int {
	n := len(o.nodes)
	if n < 2 {
		return minHopBudget
	}
	logRadix := (bits.Len(uint(n-1)) + ident.DigitBits - 1) / ident.DigitBits
	budget := 4 * logRadix
	if budget < minHopBudget {
		return minHopBudget
	}
	return budget
}

const minHopBudget = 32

// nextHop picks the forwarding target for key at n, following the three
// routing cases: leaf set, routing table, then the rare-case fallback.
// Returning n means deliver locally.
func (o *Overlay) nextHop(n *node, key uint64) *node {
	// 1) key within leaf set range: the numerically closest leaf delivers
	if n.leaves.covers(key) {
		closest := n.leaves.closest(key)
		if closest == n.id {
			return n
		}
		return o.get(closest)
	}

	prefix := ident.SharedPrefixLen(n.id, key)
	selfDist := ident.NumericDistance(n.id, key)

	// 2) routing table entry for the next digit; every forward must strictly
	// shrink the numeric distance, which is what makes the route loop-free
	if col, err := ident.Digit(key, prefix); err == nil {
		if next, ok := n.table.entry(prefix, col); ok {
			if candidate := o.get(next); candidate != nil &&
				ident.NumericDistance(next, key) < selfDist {
				return candidate
			}
		}
	}

	// 3) rare case: any known node at least as good on prefix and strictly
	// closer numerically; failing that, any known node strictly closer.
	// When the key lies outside the leaf arc the furthest leaf on the
	// nearer side is always strictly closer, so the route keeps making
	// progress until some node's leaf set covers the key.
	var (
		best       *node
		bestPrefix = -1
		bestDist   = selfDist
	)
	for _, id := range n.known() {
		candidate := o.get(id)
		if candidate == nil {
			continue
		}
		d := ident.NumericDistance(id, key)
		if d >= selfDist {
			continue
		}
		p := ident.SharedPrefixLen(id, key)
		if p < prefix {
			p = -1
		}
		if p > bestPrefix || (p == bestPrefix && d < bestDist) {
			best = candidate
			bestPrefix = p
			bestDist = d
		}
	}
	if best != nil {
		return best
	}
	return n
}

// routeFrom forwards key from start until some node delivers, charging one
// hop per forward. When path is non-nil every node on the way is appended,
// delivering node included.
func (o *Overlay) routeFrom(start *node, key uint64, tr *bus.Trace, path *[]*node) (*node, error) {
	current := start
	for {
		if path != nil {
			*path = append(*path, current)
		}
		next := o.nextHop(current, key)
		if next == nil || next == current {
			return current, nil
		}
		if err := tr.Forward(current.id, next.id); err != nil {
			return nil, err
		}
		current = next
	}
}

func (o *Overlay) route(op string, origin uint64, key uint64) (*node, *bus.Trace, error) {
	tr := o.exchange.Trace(op, o.hopBudget())
	if len(o.nodes) == 0 {
		return nil, tr, overlay.ErrOverlayEmpty
	}
	if err := ident.Validate(origin, key); err != nil {
		return nil, tr, err
	}
	start := o.get(origin)
	if start == nil {
		return nil, tr, overlay.ErrNodeGone
	}
	target, err := o.routeFrom(start, key, tr, nil)
	if err != nil {
		return nil, tr, err
	}
	return target, tr, nil
}

func (o *Overlay) Put(origin uint64, key []byte, value []byte) (overlay.Routed, error) {
	target, tr, err := o.route("put", origin, ident.Hash(key))
	if err != nil {
		return overlay.Routed{Hops: tr.Hops()}, err
	}
	target.store.Put(key, value)
	return overlay.Routed{Target: target.id, Hops: tr.Hops()}, nil
}

func (o *Overlay) Get(origin uint64, key []byte) ([]byte, overlay.Routed, error) {
	target, tr, err := o.route("get", origin, ident.Hash(key))
	if err != nil {
		return nil, overlay.Routed{Hops: tr.Hops()}, err
	}
	routed := overlay.Routed{Target: target.id, Hops: tr.Hops()}
	value, ok := target.store.Get(key)
	if !ok {
		return nil, routed, fmt.Errorf("get %q: %w", key, overlay.ErrKeyNotFound)
	}
	return value, routed, nil
}

func (o *Overlay) Update(origin uint64, key []byte, value []byte) (overlay.Routed, error) {
	target, tr, err := o.route("update", origin, ident.Hash(key))
	if err != nil {
		return overlay.Routed{Hops: tr.Hops()}, err
	}
	routed := overlay.Routed{Target: target.id, Hops: tr.Hops()}
	if !target.store.Update(key, value) {
		return routed, fmt.Errorf("update %q: %w", key, overlay.ErrKeyNotFound)
	}
	return routed, nil
}

func (o *Overlay) Delete(origin uint64, key []byte) (overlay.Routed, error) {
	target, tr, err := o.route("delete", origin, ident.Hash(key))
	if err != nil {
		return overlay.Routed{Hops: tr.Hops()}, err
	}
	routed := overlay.Routed{Target: target.id, Hops: tr.Hops()}
	if !target.store.Delete(key) {
		return routed, fmt.Errorf("delete %q: %w", key, overlay.ErrKeyNotFound)
	}
	return routed, nil
}
