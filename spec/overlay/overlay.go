package overlay

// Routed describes the outcome of a routed operation: the node that handled
// it and the number of forwarding steps it took to get there.
type Routed struct {
	Target uint64
	Hops   int
}

// KV is the key-value capability set of a single overlay. Every operation
// starts at origin (a live node id) and is routed to the responsible node.
// Get/Update/Delete against a key absent at the owner fail ErrKeyNotFound.
type KV interface {
	Put(origin uint64, key []byte, value []byte) (Routed, error)
	Get(origin uint64, key []byte) ([]byte, Routed, error)
	Update(origin uint64, key []byte, value []byte) (Routed, error)
	Delete(origin uint64, key []byte) (Routed, error)
}

// Membership controls overlay membership. Join mints an identifier from
// label, routes the join through an existing member, and returns the hops
// spent; Leave gracefully removes the node, handing its keys to the new
// owner. Both leave the overlay in a pre-barrier state: callers run
// MaintenanceBarrier before issuing further routed operations.
type Membership interface {
	Join(label string) (id uint64, r Routed, err error)
	Leave(id uint64) (Routed, error)
}

// Overlay is the protocol-independent surface the workload driver runs
// against. Implementations are single-writer: mutating operations and the
// maintenance barrier never run concurrently; concurrent Gets are safe
// between barriers.
type Overlay interface {
	KV
	Membership

	// Protocol returns the wire name of the overlay ("chord", "pastry").
	Protocol() string
	// Nodes returns the ids of all live members in ascending order.
	Nodes() []uint64
	// Responsible resolves the node responsible for id without routing.
	Responsible(id uint64) (uint64, error)
	// MaintenanceBarrier runs protocol stabilization to a fixed point.
	MaintenanceBarrier() error
	// Keys returns the number of keys resident across all live nodes.
	Keys() int
}
