package zones

import (
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/access"
	"github.com/stretchr/testify/require"
)

const frameW = 1000
const frameH = 1000

func newTestEngine(t *testing.T) *Engine {
	return NewEngine(logs.NewTestingLog(t), access.NewPolicy(nil), 0.25)
}

// A person whose feet are at normalized x, with a box 100 pixels wide
func personAtX(x float32) nn.PersonBox {
	cx := x * frameW
	return nn.PersonBox{Box: nn.MakeRect(cx-50, 100, cx+50, 500), Confidence: 0.9}
}

func lineZone() Zone {
	return Zone{
		ID:              "line1",
		FeedID:          1,
		Name:            "Server room door",
		Type:            ZoneTypeLine,
		Points:          []nn.Point{{X: 0.5, Y: 0}, {X: 0.5, Y: 1}},
		AuthorizedRoles: []string{"Worker"},
		Active:          true,
	}
}

func squareZone() Zone {
	return Zone{
		ID:     "poly1",
		FeedID: 1,
		Name:   "Vault",
		Type:   ZoneTypePolygon,
		Points: []nn.Point{{X: 0.2, Y: 0.05}, {X: 0.8, Y: 0.05}, {X: 0.8, Y: 0.8}, {X: 0.2, Y: 0.8}},
		Active: true,
	}
}

func TestLineCrossing(t *testing.T) {
	e := newTestEngine(t)
	zones := []Zone{lineZone()}

	// First observation establishes the side, with no event
	ev := e.Check(1, zones, []nn.PersonBox{personAtX(0.4)}, nil, frameW, frameH)
	require.Len(t, ev, 0)
	side, ok := e.SideOf(1, "line1", 0)
	require.True(t, ok)
	require.Equal(t, SideA, side)

	// Same side again
	ev = e.Check(1, zones, []nn.PersonBox{personAtX(0.45)}, nil, frameW, frameH)
	require.Len(t, ev, 0)

	// Cross over
	ev = e.Check(1, zones, []nn.PersonBox{personAtX(0.6)}, nil, frameW, frameH)
	require.Len(t, ev, 1)
	require.Equal(t, AlertTypeCrossing, ev[0].AlertType)
	require.Equal(t, "line1", ev[0].ZoneID)
	require.Equal(t, UnknownPerson, ev[0].PersonName)
	require.False(t, ev[0].Authorized)
	require.InDelta(t, 0.6, ev[0].PersonFeet.X, 1e-5)
	require.InDelta(t, 0.5, ev[0].PersonFeet.Y, 1e-5)

	// Staying on the new side produces nothing more
	ev = e.Check(1, zones, []nn.PersonBox{personAtX(0.65)}, nil, frameW, frameH)
	require.Len(t, ev, 0)
}

func TestLineCrossingAuthorization(t *testing.T) {
	e := newTestEngine(t)
	zones := []Zone{lineZone()}

	worker := func(p nn.PersonBox) nn.FaceMatch {
		return nn.FaceMatch{
			Box:        nn.MakeRect(p.Box.X1+30, 110, p.Box.X1+70, 150),
			IdentityID: "U1",
			Name:       "Alice",
			Role:       "Worker",
			Score:      0.7,
		}
	}

	p := personAtX(0.4)
	require.Len(t, e.Check(1, zones, []nn.PersonBox{p}, []nn.FaceMatch{worker(p)}, frameW, frameH), 0)
	p = personAtX(0.6)
	ev := e.Check(1, zones, []nn.PersonBox{p}, []nn.FaceMatch{worker(p)}, frameW, frameH)
	require.Len(t, ev, 1)
	require.Equal(t, "Alice", ev[0].PersonName)
	require.Equal(t, "Worker", ev[0].PersonRole)
	require.True(t, ev[0].Authorized)

	// Override roles pass any zone, even one with no allowed roles
	z := lineZone()
	z.AuthorizedRoles = nil
	zones = []Zone{z}
	boss := worker(p)
	boss.Role = " C-Level "
	ev = e.Check(1, zones, []nn.PersonBox{personAtX(0.4)}, []nn.FaceMatch{worker(personAtX(0.4))}, frameW, frameH)
	require.Len(t, ev, 1)
	require.False(t, ev[0].Authorized)
	ev = e.Check(1, zones, []nn.PersonBox{p}, []nn.FaceMatch{boss}, frameW, frameH)
	require.Len(t, ev, 1)
	require.True(t, ev[0].Authorized)
}

func TestSideMemoryPurge(t *testing.T) {
	e := newTestEngine(t)
	zones := []Zone{lineZone()}

	e.Check(1, zones, []nn.PersonBox{personAtX(0.1), personAtX(0.3)}, nil, frameW, frameH)
	_, ok := e.SideOf(1, "line1", 1)
	require.True(t, ok)

	// p1 is absent from this frame, so its memory goes
	e.Check(1, zones, []nn.PersonBox{personAtX(0.1)}, nil, frameW, frameH)
	_, ok = e.SideOf(1, "line1", 1)
	require.False(t, ok)

	// p1 reappears on the other side. That is a first observation, not a crossing.
	ev := e.Check(1, zones, []nn.PersonBox{personAtX(0.1), personAtX(0.7)}, nil, frameW, frameH)
	require.Len(t, ev, 0)

	// An empty frame clears everything for the feed
	require.Len(t, e.Check(1, zones, nil, nil, frameW, frameH), 0)
	_, ok = e.SideOf(1, "line1", 0)
	require.False(t, ok)
	ev = e.Check(1, zones, []nn.PersonBox{personAtX(0.7)}, nil, frameW, frameH)
	require.Len(t, ev, 0)
}

func TestFeedsAreIndependent(t *testing.T) {
	e := newTestEngine(t)
	zones := []Zone{lineZone()}
	e.Check(1, zones, []nn.PersonBox{personAtX(0.4)}, nil, frameW, frameH)
	// Feed 2 has never seen anybody, so this is a first observation
	require.Len(t, e.Check(2, zones, []nn.PersonBox{personAtX(0.6)}, nil, frameW, frameH), 0)
	require.Len(t, e.Check(1, zones, []nn.PersonBox{personAtX(0.6)}, nil, frameW, frameH), 1)

	e.ForgetFeed(1)
	_, ok := e.SideOf(1, "line1", 0)
	require.False(t, ok)
	_, ok = e.SideOf(2, "line1", 0)
	require.True(t, ok)
}

func TestPolygonPresence(t *testing.T) {
	e := newTestEngine(t)
	zones := []Zone{squareZone()}

	// Fully inside
	ev := e.Check(1, zones, []nn.PersonBox{personAtX(0.5)}, nil, frameW, frameH)
	require.Len(t, ev, 1)
	require.Equal(t, AlertTypePresence, ev[0].AlertType)
	require.Equal(t, ZoneTypePolygon, ev[0].ZoneType)
	require.False(t, ev[0].Authorized)

	// Presence fires on every frame. Rate limiting is the alert gate's job.
	require.Len(t, e.Check(1, zones, []nn.PersonBox{personAtX(0.5)}, nil, frameW, frameH), 1)

	// Centroid inside, but the right edge sticks out of the zone
	clipped := nn.PersonBox{Box: nn.MakeRect(700, 100, 850, 500)}
	require.True(t, nn.PointInPolygon(clipped.Box.Center().Normalize(frameW, frameH), zones[0].Points))
	require.Len(t, e.Check(1, zones, []nn.PersonBox{clipped}, nil, frameW, frameH), 0)

	// Feet inside, but head above the zone
	tall := nn.PersonBox{Box: nn.MakeRect(400, 10, 500, 500)}
	require.Len(t, e.Check(1, zones, []nn.PersonBox{tall}, nil, frameW, frameH), 0)
}

func TestDegenerateZones(t *testing.T) {
	e := newTestEngine(t)
	poly := squareZone()
	poly.Points = poly.Points[:2]
	line := lineZone()
	line.Points = line.Points[:1]
	inactive := lineZone()
	inactive.ID = "off"
	inactive.Active = false

	zones := []Zone{poly, line, inactive}
	for _, x := range []float32{0.4, 0.6, 0.4} {
		require.Len(t, e.Check(1, zones, []nn.PersonBox{personAtX(x)}, nil, frameW, frameH), 0)
	}
	_, ok := e.SideOf(1, "off", 0)
	require.False(t, ok)

	require.Len(t, e.Check(1, nil, []nn.PersonBox{personAtX(0.5)}, nil, frameW, frameH), 0)
	require.Len(t, e.Check(1, []Zone{squareZone()}, []nn.PersonBox{personAtX(0.5)}, nil, 0, 0), 0)
}

func TestRetainZones(t *testing.T) {
	e := newTestEngine(t)
	a := lineZone()
	b := lineZone()
	b.ID = "line2"
	e.Check(1, []Zone{a, b}, []nn.PersonBox{personAtX(0.4)}, nil, frameW, frameH)
	e.RetainZones(1, []Zone{b})
	_, ok := e.SideOf(1, "line1", 0)
	require.False(t, ok)
	_, ok = e.SideOf(1, "line2", 0)
	require.True(t, ok)
}
