package door

import (
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/access"
	"github.com/stretchr/testify/require"
)

const frameW = 200
const frameH = 200

// Build an RGB frame filled with 'background', with the region 'box' filled with 'door'
func makeFrame(background, door byte, box nn.Rect) nn.ImageCrop {
	pixels := make([]byte, frameW*frameH*3)
	for y := 0; y < frameH; y++ {
		for x := 0; x < frameW; x++ {
			v := background
			if float32(x) >= box.X1 && float32(x) < box.X2 && float32(y) >= box.Y1 && float32(y) < box.Y2 {
				v = door
			}
			i := (y*frameW + x) * 3
			pixels[i] = v
			pixels[i+1] = v
			pixels[i+2] = v
		}
	}
	return nn.WholeImage(3, pixels, frameW, frameH)
}

func doors(boxes ...nn.Rect) []nn.DoorBox {
	out := []nn.DoorBox{}
	for _, b := range boxes {
		out = append(out, nn.DoorBox{Box: b})
	}
	return out
}

func newTestMonitor(t *testing.T) *Monitor {
	return NewMonitor(logs.NewTestingLog(t), DefaultParams(), access.NewPolicy(nil))
}

func TestDoorMovement(t *testing.T) {
	m := newTestMonitor(t)
	box := nn.MakeRect(50, 20, 150, 180)
	closed := makeFrame(10, 50, box)
	open := makeFrame(10, 200, box)

	// First sighting is movement
	r := m.Detect(1, doors(box), closed, nil)
	require.True(t, r.MovementDetected)
	require.NotNil(t, r.DoorBox)
	require.Equal(t, box, *r.DoorBox)
	require.Equal(t, "", r.Hint)

	// Nothing changed
	r = m.Detect(1, doors(box), closed, nil)
	require.False(t, r.MovementDetected)
	require.Less(t, r.Diff, float32(0.02))

	// Box jitter over the same pixels is not movement
	r = m.Detect(1, doors(nn.MakeRect(52, 21, 148, 179)), closed, nil)
	require.False(t, r.MovementDetected)

	// The door swings open
	r = m.Detect(1, doors(box), open, nil)
	require.True(t, r.MovementDetected)
	require.Greater(t, r.Diff, float32(0.5))

	// The door disappears
	r = m.Detect(1, nil, open, nil)
	require.True(t, r.MovementDetected)
	require.Nil(t, r.DoorBox)
	require.Equal(t, HintNoDoor, r.Hint)
	require.False(t, m.HasState(1))

	// Still gone
	r = m.Detect(1, nil, open, nil)
	require.False(t, r.MovementDetected)
}

func TestDoorDifferentRegion(t *testing.T) {
	m := newTestMonitor(t)
	a := nn.MakeRect(0, 0, 60, 100)
	b := nn.MakeRect(120, 50, 190, 190)
	frame := makeFrame(10, 200, a)
	require.True(t, m.Detect(1, doors(a), frame, nil).MovementDetected)
	// A box that doesn't overlap the previous one is not compared, even though its pixels differ
	require.False(t, m.Detect(1, doors(b), frame, nil).MovementDetected)
}

func TestDoorLargestWins(t *testing.T) {
	m := newTestMonitor(t)
	small := nn.MakeRect(0, 0, 20, 20)
	big := nn.MakeRect(50, 20, 150, 180)
	frame := makeFrame(10, 50, big)
	r := m.Detect(1, doors(small, big), frame, nil)
	require.Equal(t, big, *r.DoorBox)
	require.Equal(t, big, r.Doors[0].Box)
	require.Len(t, r.Doors, 2)

	// The small door changing has no effect on the dominant door
	frame = makeFrame(10, 50, big)
	for i := 0; i < 20*20*3; i++ {
		frame.Pixels[i] = 255
	}
	require.False(t, m.Detect(1, doors(small, big), frame, nil).MovementDetected)
}

func TestDoorWithoutPixels(t *testing.T) {
	m := newTestMonitor(t)
	box := nn.MakeRect(50, 20, 150, 180)
	empty := nn.ImageCrop{}

	r := m.Detect(1, doors(box), empty, nil)
	require.True(t, r.MovementDetected)
	require.Equal(t, HintNoPixels, r.Hint)

	r = m.Detect(1, doors(box), empty, nil)
	require.False(t, r.MovementDetected)

	// Once pixels arrive, that is the first real look at the door
	r = m.Detect(1, doors(box), makeFrame(10, 50, box), nil)
	require.True(t, r.MovementDetected)
	require.Equal(t, "", r.Hint)
}

func TestDoorFeedsAreIndependent(t *testing.T) {
	m := newTestMonitor(t)
	box := nn.MakeRect(50, 20, 150, 180)
	frame := makeFrame(10, 50, box)
	require.True(t, m.Detect(1, doors(box), frame, nil).MovementDetected)
	require.True(t, m.Detect(2, doors(box), frame, nil).MovementDetected)
	m.ForgetFeed(1)
	require.False(t, m.HasState(1))
	require.True(t, m.HasState(2))
	require.True(t, m.Detect(1, doors(box), frame, nil).MovementDetected)
}

func TestDoorPermission(t *testing.T) {
	m := newTestMonitor(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	box := nn.MakeRect(50, 20, 150, 180)
	frame := makeFrame(10, 50, box)
	cfg := &AccessConfig{
		AreaName:     "Office 1",
		AllowedRoles: []string{"Admin"},
		FaceFeedID:   0,
	}

	// Nobody known at the face feed: allowed, and no alert
	r := m.Detect(1, doors(box), frame, cfg)
	require.True(t, r.MovementDetected)
	require.True(t, r.Allowed)
	require.False(t, r.Alert)
	require.Nil(t, r.LastPerson)
	require.Equal(t, "Office 1", r.AreaName)

	m.ForgetFeed(1)
	m.Recognitions.Set(0, []nn.FaceMatch{{IdentityID: "U2", Name: "Bob", Role: "Worker", Score: 0.8}}, now)
	r = m.Detect(1, doors(box), frame, cfg)
	require.True(t, r.MovementDetected)
	require.False(t, r.Allowed)
	require.True(t, r.Alert)
	require.Equal(t, &Person{Name: "Bob", Role: "Worker", IdentityID: "U2"}, r.LastPerson)

	// Not allowed, but the door didn't move
	r = m.Detect(1, doors(box), frame, cfg)
	require.False(t, r.MovementDetected)
	require.False(t, r.Allowed)
	require.False(t, r.Alert)

	// An unrecognized face is a visitor
	m.ForgetFeed(1)
	m.Recognitions.Set(0, []nn.FaceMatch{{Score: 0.3}}, now)
	r = m.Detect(1, doors(box), frame, cfg)
	require.Equal(t, &Person{Name: UnknownName, Role: DefaultRole}, r.LastPerson)
	require.True(t, r.Alert)

	// Override role
	m.ForgetFeed(1)
	m.Recognitions.Set(0, []nn.FaceMatch{{IdentityID: "U3", Name: "Carol", Role: "C-Level", Score: 0.9}}, now)
	r = m.Detect(1, doors(box), frame, cfg)
	require.True(t, r.Allowed)
	require.False(t, r.Alert)
	require.Equal(t, now, m.Recognitions.UpdatedAt(0))

	// An empty recognition result means nobody is visible
	m.Recognitions.Set(0, nil, now)
	require.Nil(t, m.Recognitions.Last(0))
}

func TestResolveAccess(t *testing.T) {
	areas := []Area{
		{Name: "Office 1", FaceFeedID: 0, DoorFeedID: 1, AllowedRoles: []string{"Admin"}},
		{Name: "Office 2", FaceFeedID: 2, DoorFeedID: 3, AllowedRoles: []string{"Admin", "Worker"}},
	}
	planDoors := []PlanDoor{
		{Name: "Lab", FeedID: 3, AllowedRoles: []string{"Scientist"}},
	}

	cfg := ResolveAccess(1, planDoors, areas)
	require.Equal(t, &AccessConfig{AreaName: "Office 1", AllowedRoles: []string{"Admin"}, FaceFeedID: 0}, cfg)

	// The floor plan door wins, and sees faces on its own feed
	cfg = ResolveAccess(3, planDoors, areas)
	require.Equal(t, &AccessConfig{AreaName: "Lab", AllowedRoles: []string{"Scientist"}, FaceFeedID: 3}, cfg)

	require.Nil(t, ResolveAccess(7, planDoors, areas))
	require.Nil(t, ResolveAccess(1, nil, nil))
}
