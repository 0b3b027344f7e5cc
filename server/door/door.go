// Package door watches the dominant door in a feed for significant movement (opening or closing),
// and decides whether the last person seen near that door was allowed to move it.
package door

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/access"
)

const (
	HintNoDoor   = "No door detected. Point camera at the door."
	HintNoPixels = "No frame pixels supplied; door movement unavailable."
)

// Defaults for a person we saw, but whose face told us nothing
const (
	UnknownName = "Unknown"
	DefaultRole = "Visitor"
)

type Params struct {
	DiffThreshold    float32 // Mean absolute gray difference (0..1) that counts as significant movement
	OverlapThreshold float32 // Minimum IoU between consecutive door boxes for them to be the same door
	CropSize         int     // Door regions are sampled at CropSize x CropSize
}

func DefaultParams() Params {
	return Params{
		DiffThreshold:    0.12,
		OverlapThreshold: 0.30,
		CropSize:         64,
	}
}

// Person is the last known person for a feed, as seen by the face recognizer
type Person struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	IdentityID string `json:"identity_id,omitempty"`
}

// Result of evaluating one frame
// SYNC-DOOR-RESULT
type Result struct {
	Doors            []nn.DoorBox `json:"doors"`
	DoorBox          *nn.Rect     `json:"door_bbox"` // The dominant door, or nil
	MovementDetected bool         `json:"movement_detected"`
	Diff             float32      `json:"diff"` // Only meaningful when consecutive samples of the same door were compared
	AreaName         string       `json:"area_name,omitempty"`
	LastPerson       *Person      `json:"last_person"`
	Allowed          bool         `json:"allowed"`
	Alert            bool         `json:"alert"`
	Hint             string       `json:"hint,omitempty"`
}

// regionState is what we remember about a feed's door between frames
type regionState struct {
	box    *nn.Rect
	sample *signature
}

// Monitor owns the door region state of every feed
type Monitor struct {
	Log logs.Log

	params       Params
	policy       *access.Policy
	Recognitions *RecognitionCache

	lock  sync.Mutex
	feeds map[int64]*regionState
}

func NewMonitor(log logs.Log, params Params, policy *access.Policy) *Monitor {
	return &Monitor{
		Log:          log,
		params:       params,
		policy:       policy,
		Recognitions: NewRecognitionCache(),
		feeds:        map[int64]*regionState{},
	}
}

// Returns the door with the largest area, or -1 if there are no doors
func largestDoor(doors []nn.DoorBox) int {
	best := -1
	bestArea := float32(-1)
	for i := range doors {
		a := doors[i].Box.Area()
		if a > bestArea {
			bestArea = a
			best = i
		}
	}
	return best
}

// Detect classifies door movement for one frame of a feed, and resolves whether the
// movement was allowed. cfg may be nil, in which case nobody is checked and nothing alerts.
// frame may be an invalid (empty) crop, in which case we can still notice doors appearing
// and disappearing, but can't measure appearance change.
func (m *Monitor) Detect(feedID int64, doors []nn.DoorBox, frame nn.ImageCrop, cfg *AccessConfig) *Result {
	res := &Result{
		Doors:   sortedBySize(doors),
		Allowed: true,
	}
	res.MovementDetected, res.Diff = m.classify(feedID, res.Doors, frame)
	if len(res.Doors) != 0 {
		box := res.Doors[0].Box
		res.DoorBox = &box
	}

	switch {
	case len(doors) == 0:
		res.Hint = HintNoDoor
	case !frame.IsValid():
		res.Hint = HintNoPixels
	}

	if cfg != nil {
		res.AreaName = cfg.AreaName
		if last := m.Recognitions.Last(cfg.FaceFeedID); last != nil {
			res.LastPerson = last
			res.Allowed = m.policy.IsAuthorized(last.Role, cfg.AllowedRoles)
			res.Alert = res.MovementDetected && !res.Allowed
		}
	}
	return res
}

// Returns a copy of doors, largest first. Equal sized doors keep their detector order.
func sortedBySize(doors []nn.DoorBox) []nn.DoorBox {
	out := append([]nn.DoorBox{}, doors...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Box.Area() > out[j].Box.Area()
	})
	return out
}

// classify updates the feed's region state, and returns true if the door moved.
// doors must be sorted largest first.
func (m *Monitor) classify(feedID int64, doors []nn.DoorBox, frame nn.ImageCrop) (bool, float32) {
	m.lock.Lock()
	defer m.lock.Unlock()

	prev := m.feeds[feedID]
	if prev == nil {
		prev = &regionState{}
	}

	if len(doors) == 0 {
		// A door that vanishes is worth attention: it was occluded, or somebody stepped in front of it
		delete(m.feeds, feedID)
		return prev.box != nil, 0
	}

	box := doors[0].Box
	sample := sampleRegion(frame, box, m.params.CropSize)
	next := &regionState{box: &box, sample: sample}
	m.feeds[feedID] = next

	if prev.box == nil {
		// First sighting
		return true, 0
	}
	if sample == nil {
		return false, 0
	}
	if prev.sample == nil {
		// The previous frame had no pixels, so this is the first time we can look at the door
		return true, 0
	}
	if box.IOU(*prev.box) < m.params.OverlapThreshold {
		// A different door, or the camera moved. Don't compare unrelated pixels.
		return false, 0
	}
	diff := meanAbsDiff(sample, prev.sample)
	if diff >= m.params.DiffThreshold {
		if m.Log != nil {
			m.Log.Debugf("Door (feed %v): movement, diff %.3f", feedID, diff)
		}
		return true, diff
	}
	return false, diff
}

// HasState returns true if we remember a door for the feed
func (m *Monitor) HasState(feedID int64) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.feeds[feedID] != nil
}

// ForgetFeed discards the door state and last recognition of a feed
func (m *Monitor) ForgetFeed(feedID int64) {
	m.lock.Lock()
	delete(m.feeds, feedID)
	m.lock.Unlock()
	m.Recognitions.Forget(feedID)
}

// RecognitionCache holds the most recent face recognition result of each feed.
// The door monitor reads it to decide who moved a door. It is written by whoever
// runs face recognition, which may be a different feed to the door feed.
type RecognitionCache struct {
	lock  sync.Mutex
	feeds map[int64]recognition
}

type recognition struct {
	faces []nn.FaceMatch
	at    time.Time
}

func NewRecognitionCache() *RecognitionCache {
	return &RecognitionCache{
		feeds: map[int64]recognition{},
	}
}

// Set replaces the recognition result of a feed. An empty list means "nobody visible".
func (c *RecognitionCache) Set(feedID int64, faces []nn.FaceMatch, now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.feeds[feedID] = recognition{
		faces: append([]nn.FaceMatch{}, faces...),
		at:    now,
	}
}

// Last returns the first face of the most recent recognition result, or nil
func (c *RecognitionCache) Last(feedID int64) *Person {
	c.lock.Lock()
	defer c.lock.Unlock()
	r, ok := c.feeds[feedID]
	if !ok || len(r.faces) == 0 {
		return nil
	}
	f := r.faces[0]
	p := &Person{
		Name:       f.Name,
		Role:       strings.TrimSpace(f.Role),
		IdentityID: f.IdentityID,
	}
	if p.Name == "" {
		p.Name = UnknownName
	}
	if p.Role == "" {
		p.Role = DefaultRole
	}
	return p
}

// Time of the most recent recognition result for the feed
func (c *RecognitionCache) UpdatedAt(feedID int64) time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.feeds[feedID].at
}

func (c *RecognitionCache) Forget(feedID int64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.feeds, feedID)
}
