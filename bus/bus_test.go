package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go.hopcount.dev/overbench/spec/overlay"
)

func TestTraceCountsForwards(t *testing.T) {
	as := require.New(t)
	exchange := New(zaptest.NewLogger(t))

	tr := exchange.Trace("lookup", 8)
	as.Equal(0, tr.Hops())

	as.NoError(tr.Forward(1, 2))
	as.NoError(tr.Forward(2, 3))
	as.Equal(2, tr.Hops())

	// delivery to self is free
	as.NoError(tr.Forward(3, 3))
	as.Equal(2, tr.Hops())
}

func TestTraceBudget(t *testing.T) {
	as := require.New(t)
	exchange := New(zaptest.NewLogger(t))

	tr := exchange.Trace("lookup", 2)
	as.NoError(tr.Forward(1, 2))
	as.NoError(tr.Forward(2, 3))
	as.ErrorIs(tr.Forward(3, 4), overlay.ErrRoutingDiverged)

	// zero budget disables divergence detection
	free := exchange.Trace("leave", 0)
	for i := uint64(0); i < 100; i++ {
		as.NoError(free.Forward(i, i+1))
	}
	as.Equal(100, free.Hops())
}
