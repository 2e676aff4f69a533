// Package bus provides the synchronous, hop-accounted dispatch shared by
// both overlays. A Trace rides along one routed operation: every forward
// between distinct nodes costs one hop, and a trace that exhausts its budget
// fails the operation instead of looping forever.
package bus

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.hopcount.dev/overbench/spec/overlay"
)

// Trace accounts the forwarding steps of a single routed operation. Traces
// are not shared between operations; concurrent lookups each carry their
// own, which keeps hop counts independent of interleaving.
type Trace struct {
	logger *zap.Logger
	budget int
	hops   int
}

// Exchange mints traces. The sequence counter is atomic because concurrent
// K-query tasks start traces simultaneously.
type Exchange struct {
	logger *zap.Logger
	seq    atomic.Uint64
}

func New(logger *zap.Logger) *Exchange {
	return &Exchange{
		logger: logger,
	}
}

// Trace starts hop accounting for one operation with the given budget.
// A budget of 0 disables divergence detection.
func (e *Exchange) Trace(op string, budget int) *Trace {
	seq := e.seq.Inc()
	return &Trace{
		logger: e.logger.With(zap.String("op", op), zap.Uint64("trace", seq)),
		budget: budget,
	}
}

// Forward delivers one routing step from node from to node to. Delivery to
// self is free; anything else costs one hop against the budget.
func (t *Trace) Forward(from, to uint64) error {
	if from == to {
		return nil
	}
	t.hops++
	if t.budget > 0 && t.hops > t.budget {
		t.logger.Warn("Routing exceeded hop budget",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Int("budget", t.budget),
		)
		return overlay.ErrRoutingDiverged
	}
	return nil
}

func (t *Trace) Hops() int {
	return t.hops
}
