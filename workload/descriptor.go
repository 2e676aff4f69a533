package workload

import "errors"

// Descriptor is the workload shape: how many nodes, how many of each
// operation, churn volume, K-query fan-out, and the seed every random
// choice derives from.
type Descriptor struct {
	N         int   `json:"N"`
	Inserts   int   `json:"inserts"`
	Lookups   int   `json:"lookups"`
	Updates   int   `json:"updates"`
	Deletes   int   `json:"deletes"`
	JoinLeave int   `json:"join_leave"`
	K         int   `json:"K"`
	Seed      int64 `json:"seed"`
}

func (d *Descriptor) Validate() error {
	if d == nil {
		return errors.New("nil Descriptor")
	}
	if d.N < 1 {
		return errors.New("invalid N, need at least one node")
	}
	if d.Inserts < 0 || d.Lookups < 0 || d.Updates < 0 || d.Deletes < 0 ||
		d.JoinLeave < 0 || d.K < 0 {
		return errors.New("operation counts cannot be negative")
	}
	if d.Deletes > d.Inserts {
		return errors.New("cannot delete more keys than were inserted")
	}
	return nil
}

// Items is how much of the key source one protocol run consumes.
func (d *Descriptor) Items() int {
	return d.Inserts + d.Lookups + d.Updates + d.Deletes
}
