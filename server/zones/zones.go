// Package zones detects people inside restricted polygons, and people crossing restricted lines.
package zones

import (
	"fmt"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/access"
	"github.com/cyclopcam/perimeter/server/bodytrack"
)

type ZoneType string

const (
	ZoneTypePolygon ZoneType = "polygon"
	ZoneTypeLine    ZoneType = "line"
)

type AlertType string

const (
	AlertTypePresence AlertType = "zone_presence"
	AlertTypeCrossing AlertType = "line_crossing"
)

// Side of a line, from the sign of the cross product
type Side byte

const (
	SideA Side = 'A' // Cross product >= 0
	SideB Side = 'B'
)

// The name we report for a person whose face we could not resolve
const UnknownPerson = "Unknown"

// Zone is a read-only snapshot of an operator-configured zone.
// Points are normalized to [0,1].
type Zone struct {
	ID              string
	FeedID          int64
	Name            string
	Type            ZoneType
	Points          []nn.Point
	AuthorizedRoles []string
	Active          bool
}

// ZoneEvent is emitted for every zone/person pair that triggers, whether or not the
// person is authorized. Only unauthorized events are candidates for alerting.
// SYNC-ZONE-EVENT
type ZoneEvent struct {
	ZoneID     string    `json:"zone_id"`
	ZoneName   string    `json:"zone_name"`
	ZoneType   ZoneType  `json:"zone_type"`
	AlertType  AlertType `json:"alert_type"`
	PersonBox  nn.Rect   `json:"person_bbox"`
	PersonFeet nn.Point  `json:"person_feet_n"` // Normalized
	PersonName string    `json:"person_name"`
	PersonRole string    `json:"person_role,omitempty"`
	Authorized bool      `json:"authorized"`
}

// Per-frame positional key ("p0", "p1", ...) of a person, used for line side memory
func positionalKey(i int) string {
	return fmt.Sprintf("p%v", i)
}

// Engine evaluates zones against the persons in a frame.
// The only state it holds is the line side memory, which is keyed by feed, then zone,
// then positional person key.
type Engine struct {
	Log logs.Log

	policy      *access.Policy
	faceOverlap float32

	lock  sync.Mutex
	sides map[int64]map[string]map[string]Side
}

func NewEngine(log logs.Log, policy *access.Policy, faceOverlap float32) *Engine {
	return &Engine{
		Log:         log,
		policy:      policy,
		faceOverlap: faceOverlap,
		sides:       map[int64]map[string]map[string]Side{},
	}
}

// Check evaluates every active zone of the feed against every person in the frame.
// width and height are the frame dimensions, which we need to normalize person boxes
// into zone coordinates.
func (e *Engine) Check(feedID int64, zones []Zone, persons []nn.PersonBox, faces []nn.FaceMatch, width, height int) []ZoneEvent {
	if len(zones) == 0 || width <= 0 || height <= 0 {
		return nil
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	if len(persons) == 0 {
		// Nobody visible, so start from a clean slate when people reappear
		delete(e.sides, feedID)
		return nil
	}

	feedSides := e.sides[feedID]
	if feedSides == nil {
		feedSides = map[string]map[string]Side{}
		e.sides[feedID] = feedSides
	}

	type personInfo struct {
		corners [4]nn.Point
		feet    nn.Point
		name    string
		role    string
	}
	w, h := width, height
	info := make([]personInfo, len(persons))
	for i := range persons {
		box := persons[i].Box
		pi := &info[i]
		for c, pt := range box.Corners() {
			pi.corners[c] = pt.Normalize(w, h)
		}
		pi.feet = box.Feet().Normalize(w, h)
		pi.name = UnknownPerson
		if face := bodytrack.FaceForPerson(box, faces, e.faceOverlap); face != nil {
			if face.Name != "" {
				pi.name = face.Name
			}
			pi.role = face.Role
		}
	}

	present := map[string]bool{}
	for i := range persons {
		present[positionalKey(i)] = true
	}

	events := []ZoneEvent{}
	for z := range zones {
		zone := &zones[z]
		if !zone.Active {
			continue
		}
		zoneSides := feedSides[zone.ID]
		if zoneSides == nil {
			zoneSides = map[string]Side{}
			feedSides[zone.ID] = zoneSides
		}

		for i := range persons {
			pi := &info[i]
			authorized := e.policy.IsAuthorized(pi.role, zone.AuthorizedRoles)
			event := ZoneEvent{
				ZoneID:     zone.ID,
				ZoneName:   zone.Name,
				ZoneType:   zone.Type,
				PersonBox:  persons[i].Box,
				PersonFeet: pi.feet,
				PersonName: pi.name,
				PersonRole: pi.role,
				Authorized: authorized,
			}
			switch zone.Type {
			case ZoneTypePolygon:
				if len(zone.Points) >= 3 && allInside(pi.corners[:], zone.Points) {
					event.AlertType = AlertTypePresence
					events = append(events, event)
				}
			case ZoneTypeLine:
				if len(zone.Points) < 2 {
					continue
				}
				side := SideB
				if nn.LineSide(pi.feet, zone.Points[0], zone.Points[1]) >= 0 {
					side = SideA
				}
				key := positionalKey(i)
				prev, havePrev := zoneSides[key]
				zoneSides[key] = side
				if havePrev && prev != side {
					event.AlertType = AlertTypeCrossing
					events = append(events, event)
				}
			}
		}

		// Forget slots that are not present in this frame
		for key := range zoneSides {
			if !present[key] {
				delete(zoneSides, key)
			}
		}
	}

	return events
}

func allInside(points []nn.Point, polygon []nn.Point) bool {
	for _, p := range points {
		if !nn.PointInPolygon(p, polygon) {
			return false
		}
	}
	return true
}

// RetainZones drops side memory for zones of the feed that are no longer configured
func (e *Engine) RetainZones(feedID int64, zones []Zone) {
	e.lock.Lock()
	defer e.lock.Unlock()
	feedSides := e.sides[feedID]
	if feedSides == nil {
		return
	}
	keep := map[string]bool{}
	for i := range zones {
		keep[zones[i].ID] = true
	}
	for id := range feedSides {
		if !keep[id] {
			delete(feedSides, id)
		}
	}
}

// SideOf returns the remembered side of a positional person key, for diagnostics and tests
func (e *Engine) SideOf(feedID int64, zoneID string, personIndex int) (Side, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	s, ok := e.sides[feedID][zoneID][positionalKey(personIndex)]
	return s, ok
}

// ForgetFeed discards all side memory of a feed
func (e *Engine) ForgetFeed(feedID int64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	delete(e.sides, feedID)
}
