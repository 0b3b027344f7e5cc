package bodytrack

import (
	"math"
	"sort"
	"sync"
	"time"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/google/uuid"
)

// Number of recent boxes we keep per track, for drawing a trail in the UI. Must be a power of 2.
const trailSize = 8

// Params control body tracking and identity binding
type Params struct {
	BodyTTL      time.Duration // A track is removed when it hasn't been seen for this long
	IOUThreshold float32       // Minimum IoU to match a person box to an existing track
	FaceOverlap  float32       // Minimum fraction of a face's area that must lie inside a person box
	Binding      BindingParams
}

func DefaultParams() Params {
	return Params{
		BodyTTL:      3 * time.Second,
		IOUThreshold: 0.40,
		FaceOverlap:  0.30,
		Binding: BindingParams{
			MinLockScore:  0.62,
			ConfirmFrames: 2,
			IdentityTTL:   8 * time.Second,
		},
	}
}

// Track is a provisional identifier for one physical body across consecutive frames of one feed.
type Track struct {
	ID        string
	Box       nn.Rect // Most recent observation
	FirstSeen time.Time
	LastSeen  time.Time
	binding   IdentityBinding
	trail     ringbuffer.RingP[nn.Rect]
}

func (t *Track) Trail() []nn.Rect {
	out := make([]nn.Rect, 0, t.trail.Len())
	for i := 0; i < t.trail.Len(); i++ {
		out = append(out, t.trail.Peek(i))
	}
	return out
}

// Detection is a person (or a lone face) with the identity we believe belongs to it.
// SYNC-BODYTRACK-DETECTION
type Detection struct {
	TrackID string    `json:"track_id,omitempty"` // Empty for a face that belongs to no person box
	Box     nn.Rect   `json:"bbox"`
	Trail   []nn.Rect `json:"trail,omitempty"`
	Identity
	FaceOnly bool `json:"face_only,omitempty"` // A visible face whose body was not detected
}

// UpdateResult is the outcome of feeding one frame into the registry
type UpdateResult struct {
	Matched    []string    // Track ID for each input person box (same order as the input)
	NewTracks  []string    // Tracks created in this frame
	Confirmed  []string    // Tracks whose identity became confirmed in this frame
	Detections []Detection // One per person box, followed by one per unassociated face
}

// Registry owns the body tracks of every feed.
// All state is keyed by feed ID, and feeds never observe each other's tracks.
type Registry struct {
	Log     logs.Log
	Verbose bool

	params Params

	lock  sync.Mutex
	feeds map[int64][]*Track // Tracks in creation order, which gives us deterministic tie breaking
}

func NewRegistry(log logs.Log, params Params) *Registry {
	return &Registry{
		Log:    log,
		params: params,
		feeds:  map[int64][]*Track{},
	}
}

func (r *Registry) Params() Params {
	return r.params
}

// Returns the integer pixel bounds that enclose a box, for the spatial index
func pixelBounds(b nn.Rect) (int32, int32, int32, int32) {
	return int32(math.Floor(float64(b.X1))), int32(math.Floor(float64(b.Y1))), int32(math.Ceil(float64(b.X2))), int32(math.Ceil(float64(b.Y2)))
}

// Update processes one frame of person boxes and face matches for a feed.
// Tracks that have not been seen for BodyTTL are dropped first. Each person box is then
// greedily matched to the live track with the highest IoU (first track wins a tie), and
// a box that can't reach IOUThreshold with any unmatched track gets a new track.
// Finally, face matches are associated to person boxes, and fed into the identity binding
// of the matched track.
func (r *Registry) Update(feedID int64, persons []nn.PersonBox, faces []nn.FaceMatch, now time.Time) *UpdateResult {
	r.lock.Lock()
	defer r.lock.Unlock()

	p := &r.params
	result := &UpdateResult{
		Matched:    make([]string, len(persons)),
		Detections: make([]Detection, 0, len(persons)),
	}

	// Drop stale tracks
	live := make([]*Track, 0, len(r.feeds[feedID]))
	for _, t := range r.feeds[feedID] {
		if now.Sub(t.LastSeen) < p.BodyTTL {
			live = append(live, t)
		} else if r.Verbose {
			r.Log.Infof("Tracker (feed %v): Track %v expired", feedID, t.ID)
		}
	}

	// Spatial index of live tracks. A track with zero overlap can never reach the IoU threshold,
	// so we only need to consider tracks whose bounds intersect the new box.
	var fb *flatbush.Flatbush[int32]
	if len(live) != 0 {
		fb = flatbush.NewFlatbush[int32]()
		fb.Reserve(len(live))
		for _, t := range live {
			fb.Add(pixelBounds(t.Box))
		}
		fb.Finish()
	}

	used := make([]bool, len(live))
	personTracks := make([]*Track, len(persons))
	candidates := []int{}

	for i := range persons {
		box := persons[i].Box
		bestJ := -1
		bestIOU := float32(0)
		if fb != nil {
			x1, y1, x2, y2 := pixelBounds(box)
			candidates = fb.SearchFast(x1, y1, x2, y2, candidates[:0])
			sort.Ints(candidates)
			for _, j := range candidates {
				if used[j] {
					continue
				}
				iou := box.IOU(live[j].Box)
				if iou > bestIOU {
					bestIOU = iou
					bestJ = j
				}
			}
		}

		var track *Track
		if bestJ != -1 && bestIOU >= p.IOUThreshold {
			track = live[bestJ]
			used[bestJ] = true
		} else {
			track = &Track{
				ID:        uuid.NewString(),
				FirstSeen: now,
				trail:     ringbuffer.NewRingP[nn.Rect](trailSize),
			}
			live = append(live, track)
			used = append(used, true)
			result.NewTracks = append(result.NewTracks, track.ID)
			if r.Verbose {
				c := box.Center()
				r.Log.Infof("Tracker (feed %v): New track %v at %.0f,%.0f", feedID, track.ID, c.X, c.Y)
			}
		}
		track.Box = box
		track.LastSeen = now
		track.trail.Add(box)
		personTracks[i] = track
		result.Matched[i] = track.ID
	}
	r.feeds[feedID] = live

	// Find the best eligible face for each track. If two faces land on the same body,
	// the higher scoring one wins.
	bestFace := make([]*nn.FaceMatch, len(persons))
	for i := range faces {
		face := &faces[i]
		if !face.IsKnown() || face.Score < p.Binding.MinLockScore {
			continue
		}
		pi := AssociateFace(face.Box, persons, p.FaceOverlap)
		if pi == -1 {
			continue
		}
		if bestFace[pi] == nil || face.Score > bestFace[pi].Score {
			bestFace[pi] = face
		}
	}
	for i, face := range bestFace {
		if face == nil {
			continue
		}
		track := personTracks[i]
		if track.binding.Observe(face, now, &p.Binding) {
			result.Confirmed = append(result.Confirmed, track.ID)
			if r.Verbose {
				r.Log.Infof("Tracker (feed %v): Track %v confirmed as '%v' (%v, score %.2f)", feedID, track.ID, face.Name, face.IdentityID, face.Score)
			}
		}
	}

	for i, track := range personTracks {
		identity, _ := track.binding.Current(now, &p.Binding)
		result.Detections = append(result.Detections, Detection{
			TrackID:  track.ID,
			Box:      persons[i].Box,
			Trail:    track.Trail(),
			Identity: identity,
		})
	}

	// A face that belongs to no body is still somebody we can see
	for i := range faces {
		face := &faces[i]
		if AssociateFace(face.Box, persons, p.FaceOverlap) != -1 {
			continue
		}
		result.Detections = append(result.Detections, Detection{
			Box:      face.Box,
			Identity: identityFromMatch(face),
			FaceOnly: true,
		})
	}

	return result
}

// NumTracks returns the number of tracks held for the feed (including tracks that
// will be dropped on the next update).
func (r *Registry) NumTracks(feedID int64) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.feeds[feedID])
}

// Identity returns the identity that a track reports at time 'now'
func (r *Registry) Identity(feedID int64, trackID string, now time.Time) (Identity, BindingState, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, t := range r.feeds[feedID] {
		if t.ID == trackID {
			id, _ := t.binding.Current(now, &r.params.Binding)
			return id, t.binding.State(now, &r.params.Binding), true
		}
	}
	return Identity{}, BindingUnbound, false
}

// ForgetFeed discards all tracks of a feed
func (r *Registry) ForgetFeed(feedID int64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.feeds, feedID)
}
