// Package chord implements the ring overlay: successor lists, finger
// tables, and the stabilization protocol, all executed in-process against
// an arena of virtual nodes with hop-accounted routing.
package chord

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
	logger := config.Logger.With(zap.String("protocol", "chord"))
	return &Overlay{
		config:   config,
		logger:   logger,
		exchange: bus.New(logger),
		nodes:    make(map[uint64]*node),
		ring:     skipset.NewUint64(),
	}, nil
}

func (o *Overlay) Protocol() string {
	return "chord"
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

// Responsible resolves ground-truth ring responsibility without routing:
// the first live identifier clockwise from id.
func (o *Overlay) Responsible(id uint64) (uint64, error) {
	if err := ident.Validate(id); err != nil {
		return 0, err
	}
	if o.ring.Len() == 0 {
		return 0, overlay.ErrOverlayEmpty
	}
	var owner uint64
	found := false
	o.ring.Range(func(candidate uint64) bool {
		if candidate >= id {
			owner = candidate
			found = true
			return false
		}
		return true
	})
	if !found {
		// wrap around to the lowest id
		o.ring.Range(func(candidate uint64) bool {
			owner = candidate
			return false
		})
	}
	return owner, nil
}

// hopBudget bounds one routed operation at 2*ceil(log2 N), floor 32.
func (o *Overlay) hopBudget() int {
	n := len(o.nodes)
	if n < 2 {
		return minHopBudget
	}
	budget := 2 * bits.Len(uint(n-1))
	if budget < minHopBudget {
		return minHopBudget
	}
	return budget
}

const minHopBudget = 32

// firstLiveSuccessor resolves the head of n's successor list, skipping
// departed entries.
func (o *Overlay) firstLiveSuccessor(n *node) *node {
	for _, id := range n.successors {
		if succ := o.get(id); succ != nil {
			return succ
		}
	}
	return nil
}

func (n *node) closestPrecedingFinger(o *Overlay, key uint64) *node {
	for i := ident.MaxBits - 1; i >= 0; i-- {
		finger := o.get(n.fingers[i])
		if finger == nil {
			continue
		}
		if ident.BetweenStrict(n.id, finger.id, key) {
			return finger
		}
	}
	return n
}

// findSuccessor routes from start toward key's successor, charging one hop
// per forward on tr.
func (o *Overlay) findSuccessor(start *node, key uint64, tr *bus.Trace) (*node, error) {
	current := start
	for {
		succ := o.firstLiveSuccessor(current)
		if succ == nil {
			return nil, overlay.ErrNodeNoSuccessor
		}
		if ident.BetweenInclusiveHigh(current.id, key, succ.id) {
			if err := tr.Forward(current.id, succ.id); err != nil {
				return nil, err
			}
			return succ, nil
		}
		next := current.closestPrecedingFinger(o, key)
		if next == current {
			// cannot improve via fingers, fall back on the ring
			next = succ
		}
		if err := tr.Forward(current.id, next.id); err != nil {
			return nil, err
		}
		current = next
	}
}

// route resolves the node responsible for key starting at origin. Zero hops
// when origin itself owns the key.
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
	if start.hasPred && start.ownsKey(key) {
		return start, tr, nil
	}
	if o.firstLiveSuccessor(start) == start {
		// single node ring
		return start, tr, nil
	}
	target, err := o.findSuccessor(start, key, tr)
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

// Join mints an identifier for label and joins the ring through the oldest
// live member. The proposed successor hands over the keys the new node is
// now responsible for; pointer repair is left to the next barrier.
func (o *Overlay) Join(label string) (uint64, overlay.Routed, error) {
	id, err := ident.Mint(label, func(candidate uint64) bool {
		return o.get(candidate) != nil
	})
	if err != nil {
		return 0, overlay.Routed{}, err
	}

	n := newNode(id, label)
	n.state.Set(overlay.Joining)

	if len(o.nodes) == 0 {
		// first node creates the ring
		n.successors = []uint64{id}
		n.state.Set(overlay.Active)
		o.admit(n)
		o.logger.Info("Creating new ring", zap.Uint64("node", id))
		return id, overlay.Routed{Target: id}, nil
	}

	bootstrap := o.get(o.order[0])
	tr := o.exchange.Trace("join", o.hopBudget())
	succ, err := o.findSuccessor(bootstrap, id, tr)
	if err != nil {
		return 0, overlay.Routed{Hops: tr.Hops()}, err
	}

	n.successors = []uint64{succ.id}
	n.clearPredecessor()

	// the successor hands over every key in (predecessor, id]
	lowBound, bounded := succ.predecessor, succ.hasPred
	moved := succ.store.Evict(func(keyID uint64) bool {
		if !bounded {
			return ident.BetweenInclusiveHigh(succ.id, keyID, id)
		}
		return ident.BetweenInclusiveHigh(lowBound, keyID, id)
	})
	n.store.Import(moved)
	if len(moved) > 0 {
		if err := tr.Forward(succ.id, id); err != nil {
			return 0, overlay.Routed{Hops: tr.Hops()}, err
		}
	}

	n.state.Set(overlay.Active)
	o.admit(n)

	o.logger.Info("Joined ring",
		zap.Uint64("node", id),
		zap.Uint64("via", bootstrap.id),
		zap.Uint64("successor", succ.id),
		zap.Int("transferred", len(moved)),
	)
	return id, overlay.Routed{Target: succ.id, Hops: tr.Hops()}, nil
}

func (o *Overlay) admit(n *node) {
	o.nodes[n.id] = n
	o.ring.Add(n.id)
	o.order = append(o.order, n.id)
}

// Leave removes id gracefully: keys are pushed to the successor and the
// immediate neighbors are rewired before the node is released.
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

	var succ *node
	for _, sid := range n.successors {
		if sid == id {
			continue
		}
		if succ = o.get(sid); succ != nil {
			break
		}
	}
	if succ == nil {
		// stale successor list, fall back on ring order
		owner, err := o.Responsible(ident.ModuloSum(id, 1))
		if err != nil {
			return overlay.Routed{}, err
		}
		if owner == id {
			return overlay.Routed{}, overlay.ErrNodeNoSuccessor
		}
		succ = o.get(owner)
	}

	// push resident keys to the successor in one batch transfer
	moved := n.store.Evict(func(uint64) bool { return true })
	succ.store.Import(moved)
	if len(moved) > 0 {
		if err := tr.Forward(id, succ.id); err != nil {
			return overlay.Routed{Hops: tr.Hops()}, err
		}
	}

	// rewire neighbors around the departing node
	if n.hasPred {
		if pred := o.get(n.predecessor); pred != nil {
			for i, sid := range pred.successors {
				if sid == id {
					pred.successors[i] = succ.id
				}
			}
			succ.setPredecessor(pred.id)
		}
	}
	if succ.hasPred && succ.predecessor == id {
		if n.hasPred && o.get(n.predecessor) != nil {
			succ.setPredecessor(n.predecessor)
		} else {
			succ.clearPredecessor()
		}
	}

	o.logger.Info("Left ring",
		zap.Uint64("node", id),
		zap.Uint64("successor", succ.id),
		zap.Int("transferred", len(moved)),
	)
	return overlay.Routed{Target: succ.id, Hops: tr.Hops()}, nil
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
