//go:generate stringer -type=State
package overlay

import "sync/atomic"

type State uint64

const (
	// Node created but not part of any overlay, default state
	Inactive State = iota
	// In the progress of joining the overlay
	Joining
	// Ready to handle routing and KV requests
	Active
	// Leaving and transferring keys to the new owner
	Leaving
	// No longer an overlay member
	Left
)

func (s *State) Transition(expected State, new State) bool {
	return atomic.CompareAndSwapUint64((*uint64)(s), uint64(expected), uint64(new))
}

func (s *State) Get() State {
	return State(atomic.LoadUint64((*uint64)(s)))
}

func (s *State) Set(val State) {
	atomic.StoreUint64((*uint64)(s), uint64(val))
}
