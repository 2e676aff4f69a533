package overlay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	as := require.New(t)

	as.Equal(KindKeyNotFound, Kind(ErrKeyNotFound))
	as.Equal(KindRoutingDiverged, Kind(ErrRoutingDiverged))
	as.Equal(KindOverlayEmpty, Kind(ErrOverlayEmpty))
	as.Equal(KindIdFormat, Kind(ErrIdFormat))
	as.Equal(KindDuplicateID, Kind(ErrDuplicateID))
	as.Empty(Kind(ErrNodeGone))
	as.Empty(Kind(fmt.Errorf("unrelated")))

	// classification survives wrapping
	as.Equal(KindKeyNotFound, Kind(fmt.Errorf("get %q: %w", "key", ErrKeyNotFound)))
}

func TestRecoverable(t *testing.T) {
	as := require.New(t)

	as.True(Recoverable(ErrKeyNotFound))
	as.True(Recoverable(ErrRoutingDiverged))
	as.True(Recoverable(fmt.Errorf("wrapped: %w", ErrRoutingDiverged)))

	as.False(Recoverable(ErrOverlayEmpty))
	as.False(Recoverable(ErrIdFormat))
	as.False(Recoverable(ErrDuplicateID))
	as.False(Recoverable(fmt.Errorf("unrelated")))
}
