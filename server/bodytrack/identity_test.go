package bodytrack

import (
	"testing"
	"time"

	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func face(id string, score float32) *nn.FaceMatch {
	return &nn.FaceMatch{
		Box:        nn.MakeRect(130, 110, 170, 150),
		IdentityID: id,
		Name:       "Name of " + id,
		Role:       "Worker",
		Authorized: true,
		Score:      score,
	}
}

func testBindingParams() *BindingParams {
	p := DefaultParams().Binding
	return &p
}

func TestBindingDebounce(t *testing.T) {
	p := testBindingParams()
	ib := IdentityBinding{}
	require.Equal(t, BindingUnbound, ib.State(t0, p))

	require.False(t, ib.Observe(face("U1", 0.7), t0, p))
	require.Equal(t, BindingPending, ib.State(t0, p))
	_, ok := ib.Current(t0, p)
	require.False(t, ok)

	t1 := t0.Add(400 * time.Millisecond)
	require.True(t, ib.Observe(face("U1", 0.7), t1, p))
	require.Equal(t, BindingConfirmed, ib.State(t1, p))
	id, ok := ib.Current(t1, p)
	require.True(t, ok)
	require.Equal(t, "U1", id.ID)
	require.Equal(t, "Name of U1", id.Name)
	require.Equal(t, "Worker", id.Role)
	require.True(t, id.Authorized)
	require.Equal(t, float32(0.7), id.Score)

	// Refreshing doesn't re-confirm
	require.False(t, ib.Observe(face("U1", 0.8), t1.Add(time.Second), p))
}

func TestBindingAlternatingNeverConfirms(t *testing.T) {
	p := testBindingParams()
	ib := IdentityBinding{}
	now := t0
	for i := 0; i < 10; i++ {
		id := "U1"
		if i%2 == 1 {
			id = "U2"
		}
		require.False(t, ib.Observe(face(id, 0.9), now, p))
		now = now.Add(400 * time.Millisecond)
	}
	require.Equal(t, BindingPending, ib.State(now, p))
}

func TestBindingIgnoresWeakMatches(t *testing.T) {
	p := testBindingParams()
	ib := IdentityBinding{}
	require.False(t, ib.Observe(face("U1", 0.7), t0, p))
	// Below the lock score, and unknown faces, change nothing
	require.False(t, ib.Observe(face("U2", 0.61), t0.Add(time.Second), p))
	require.False(t, ib.Observe(face("", 0.99), t0.Add(time.Second), p))
	require.False(t, ib.Observe(nil, t0.Add(time.Second), p))
	// So U1 is still pending with a count of 1, and this confirms it
	require.True(t, ib.Observe(face("U1", 0.62), t0.Add(2*time.Second), p))
}

func TestBindingTTL(t *testing.T) {
	p := testBindingParams()
	ib := IdentityBinding{}
	ib.Observe(face("U1", 0.7), t0, p)
	confirmedAt := t0.Add(400 * time.Millisecond)
	require.True(t, ib.Observe(face("U1", 0.7), confirmedAt, p))

	eps := time.Millisecond
	_, ok := ib.Current(confirmedAt.Add(p.IdentityTTL-eps), p)
	require.True(t, ok)
	_, ok = ib.Current(confirmedAt.Add(p.IdentityTTL+eps), p)
	require.False(t, ok)
	require.Equal(t, BindingUnbound, ib.State(confirmedAt.Add(p.IdentityTTL+eps), p))

	// After expiry, the identity has to earn its lock again
	later := confirmedAt.Add(p.IdentityTTL + time.Second)
	require.False(t, ib.Observe(face("U1", 0.7), later, p))
	require.True(t, ib.Observe(face("U1", 0.7), later.Add(time.Second), p))
}

func TestBindingRefreshExtendsTTL(t *testing.T) {
	p := testBindingParams()
	ib := IdentityBinding{}
	ib.Observe(face("U1", 0.7), t0, p)
	ib.Observe(face("U1", 0.7), t0, p)
	refresh := t0.Add(5 * time.Second)
	ib.Observe(face("U1", 0.7), refresh, p)
	_, ok := ib.Current(refresh.Add(p.IdentityTTL-time.Millisecond), p)
	require.True(t, ok)
}

func TestBindingConflictRevokes(t *testing.T) {
	p := testBindingParams()
	ib := IdentityBinding{}
	ib.Observe(face("U1", 0.7), t0, p)
	ib.Observe(face("U1", 0.7), t0, p)
	require.Equal(t, BindingConfirmed, ib.State(t0, p))

	now := t0.Add(time.Second)
	require.False(t, ib.Observe(face("U2", 0.9), now, p))
	require.Equal(t, BindingPending, ib.State(now, p))
	_, ok := ib.Current(now, p)
	require.False(t, ok)

	require.True(t, ib.Observe(face("U2", 0.9), now.Add(time.Second), p))
	id, _ := ib.Current(now.Add(time.Second), p)
	require.Equal(t, "U2", id.ID)
}

func TestBindingPendingExpires(t *testing.T) {
	p := testBindingParams()
	ib := IdentityBinding{}
	ib.Observe(face("U1", 0.7), t0, p)
	// Evidence from long ago doesn't count towards a confirmation
	require.False(t, ib.Observe(face("U1", 0.7), t0.Add(p.IdentityTTL+time.Second), p))
	require.Equal(t, BindingPending, ib.State(t0.Add(p.IdentityTTL+time.Second), p))
}

func TestBindingSingleFrameConfirm(t *testing.T) {
	p := testBindingParams()
	p.ConfirmFrames = 0
	ib := IdentityBinding{}
	require.True(t, ib.Observe(face("U1", 0.7), t0, p))
}
