package bodytrack

import (
	"time"

	"github.com/cyclopcam/perimeter/pkg/nn"
)

// BindingState is the externally visible state of an IdentityBinding
type BindingState int

const (
	BindingUnbound   BindingState = iota // No face evidence, or all evidence has expired
	BindingPending                       // Collecting consecutive matches of one candidate identity
	BindingConfirmed                     // Identity is locked to the track
)

func (s BindingState) String() string {
	switch s {
	case BindingPending:
		return "pending"
	case BindingConfirmed:
		return "confirmed"
	}
	return "unbound"
}

// BindingParams control how eagerly an identity is locked to a body
type BindingParams struct {
	MinLockScore  float32       // Face matches scoring below this are ignored entirely
	ConfirmFrames int           // Number of consecutive matches of the same identity before we lock it
	IdentityTTL   time.Duration // How long a locked identity survives without fresh evidence
}

// Identity is what we report for a track. The zero value means "no identity".
type Identity struct {
	ID         string  `json:"identity_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Role       string  `json:"role,omitempty"`
	Authorized bool    `json:"authorized"`
	Score      float32 `json:"score"`
}

func identityFromMatch(m *nn.FaceMatch) Identity {
	return Identity{
		ID:         m.IdentityID,
		Name:       m.Name,
		Role:       m.Role,
		Authorized: m.Authorized,
		Score:      m.Score,
	}
}

// binding is one of unbound, pending, or confirmed.
// Each variant carries only the fields that are meaningful in that state.
type binding interface {
	state() BindingState
}

type unbound struct{}

type pending struct {
	id       string
	count    int
	lastSeen time.Time
}

type confirmed struct {
	identity Identity
	since    time.Time // Time of the most recent match that confirmed or refreshed the identity
}

func (unbound) state() BindingState   { return BindingUnbound }
func (pending) state() BindingState   { return BindingPending }
func (confirmed) state() BindingState { return BindingConfirmed }

// IdentityBinding is the debounce + TTL state machine that attaches an identity to a body track.
// Unbound -> Pending(id, n) -> Confirmed(id) -> Unbound (after IdentityTTL without a refresh).
type IdentityBinding struct {
	b binding
}

func (ib *IdentityBinding) current() binding {
	if ib.b == nil {
		return unbound{}
	}
	return ib.b
}

// expire drops evidence that is older than the TTL
func (ib *IdentityBinding) expire(now time.Time, p *BindingParams) {
	switch s := ib.current().(type) {
	case confirmed:
		if now.Sub(s.since) > p.IdentityTTL {
			ib.b = unbound{}
		}
	case pending:
		if now.Sub(s.lastSeen) > p.IdentityTTL {
			ib.b = unbound{}
		}
	}
}

// Observe feeds one face match (already associated with this track) into the state machine.
// Returns true if this observation caused the identity to become confirmed.
func (ib *IdentityBinding) Observe(m *nn.FaceMatch, now time.Time, p *BindingParams) bool {
	if m == nil || !m.IsKnown() || m.Score < p.MinLockScore {
		return false
	}
	ib.expire(now, p)

	var next pending
	switch s := ib.current().(type) {
	case confirmed:
		if s.identity.ID == m.IdentityID {
			ib.b = confirmed{identity: identityFromMatch(m), since: now}
			return false
		}
		// Conflicting evidence revokes the lock. The newcomer must earn its own confirmation.
		next = pending{id: m.IdentityID, count: 1, lastSeen: now}
	case pending:
		if s.id == m.IdentityID {
			next = pending{id: s.id, count: s.count + 1, lastSeen: now}
		} else {
			next = pending{id: m.IdentityID, count: 1, lastSeen: now}
		}
	default:
		next = pending{id: m.IdentityID, count: 1, lastSeen: now}
	}

	if next.count >= max(1, p.ConfirmFrames) {
		ib.b = confirmed{identity: identityFromMatch(m), since: now}
		return true
	}
	ib.b = next
	return false
}

// Current returns the identity that the track should report at time 'now'.
func (ib *IdentityBinding) Current(now time.Time, p *BindingParams) (Identity, bool) {
	if s, ok := ib.current().(confirmed); ok && now.Sub(s.since) <= p.IdentityTTL {
		return s.identity, true
	}
	return Identity{}, false
}

// State returns the state at time 'now', taking expiry into account
func (ib *IdentityBinding) State(now time.Time, p *BindingParams) BindingState {
	ib.expire(now, p)
	return ib.current().state()
}
