// Package engine turns the detections of a single frame into tracks, identities, zone events,
// door movement, and deduplicated alerts.
//
// All state is owned by an Engine instance, and partitioned by feed ID. The engine performs
// no I/O, so callers supply configuration snapshots (zones, door access) with each frame.
package engine

import (
	"fmt"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/access"
	"github.com/cyclopcam/perimeter/server/alertgate"
	"github.com/cyclopcam/perimeter/server/bodytrack"
	"github.com/cyclopcam/perimeter/server/door"
	"github.com/cyclopcam/perimeter/server/zones"
)

type AlertType string

const (
	AlertTypeDoor     AlertType = "unauthorized_door_access"
	AlertTypePresence AlertType = AlertType(zones.AlertTypePresence)
	AlertTypeCrossing AlertType = AlertType(zones.AlertTypeCrossing)
)

// The gate key we use for a door that has no configured area name
const unnamedDoorArea = "door"

type Params struct {
	Track           bodytrack.Params
	Door            door.Params
	ZoneFaceOverlap float32
	AlertCooldown   time.Duration
	OverrideRoles   []string
}

func DefaultParams() Params {
	return Params{
		Track:           bodytrack.DefaultParams(),
		Door:            door.DefaultParams(),
		ZoneFaceOverlap: 0.25,
		AlertCooldown:   15 * time.Second,
		OverrideRoles:   access.DefaultOverrideRoles,
	}
}

// FrameInput is everything we know about one frame of one feed.
// Faces and Doors are nil when that detector did not run on this frame, which is
// different from an empty list (the detector ran, and found nothing).
type FrameInput struct {
	FeedID     int64
	Time       time.Time
	Width      int // Frame width in pixels. If zero, we use the width of Image.
	Height     int
	Persons    []nn.PersonBox
	Faces      []nn.FaceMatch
	Doors      []nn.DoorBox
	Image      nn.ImageCrop       // Frame pixels. May be empty.
	Zones      []zones.Zone       // Zones configured for this feed
	DoorAccess *door.AccessConfig // Access rules for the door seen by this feed, or nil
}

// Alert is an unauthorized event that made it through the dedup gate
type Alert struct {
	Type       AlertType `json:"type"`
	FeedID     int64     `json:"feed_id"`
	Area       string    `json:"area"` // Zone ID, or door area name
	AreaName   string    `json:"area_name"`
	PersonName string    `json:"person_name"`
	PersonRole string    `json:"person_role"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
}

// FrameResult is the outcome of one frame
// SYNC-FRAME-RESULT
type FrameResult struct {
	FeedID     int64                 `json:"feed_id"`
	Time       time.Time             `json:"time"`
	Detections []bodytrack.Detection `json:"detections"`
	NewTracks  []string              `json:"new_tracks,omitempty"`
	Confirmed  []string              `json:"confirmed,omitempty"`
	ZoneEvents []zones.ZoneEvent     `json:"zone_alerts"`
	Door       *door.Result          `json:"door,omitempty"`
	Alerts     []Alert               `json:"alerts"`
}

// Engine is the per-process owner of all tracking and violation state
type Engine struct {
	Log    logs.Log
	Tracks *bodytrack.Registry
	Zones  *zones.Engine
	Doors  *door.Monitor
	Gate   *alertgate.Gate
	Policy *access.Policy
}

func NewEngine(log logs.Log, params Params) *Engine {
	policy := access.NewPolicy(params.OverrideRoles)
	return &Engine{
		Log:    log,
		Tracks: bodytrack.NewRegistry(logs.NewPrefixLogger(log, "Tracks:"), params.Track),
		Zones:  zones.NewEngine(logs.NewPrefixLogger(log, "Zones:"), policy, params.ZoneFaceOverlap),
		Doors:  door.NewMonitor(logs.NewPrefixLogger(log, "Door:"), params.Door, policy),
		Gate:   alertgate.NewGate(params.AlertCooldown),
		Policy: policy,
	}
}

// SetVerbose turns on logging of track and identity lifecycle events
func (e *Engine) SetVerbose(verbose bool) {
	e.Tracks.Verbose = verbose
}

// ProcessFrame runs one frame through every engine.
// It never fails. Missing detections simply produce no events.
func (e *Engine) ProcessFrame(in *FrameInput) *FrameResult {
	now := in.Time
	if now.IsZero() {
		now = time.Now()
	}
	width, height := in.Width, in.Height
	if width == 0 || height == 0 {
		width, height = in.Image.ImageWidth, in.Image.ImageHeight
	}

	res := &FrameResult{
		FeedID:     in.FeedID,
		Time:       now,
		ZoneEvents: []zones.ZoneEvent{},
		Alerts:     []Alert{},
	}

	upd := e.Tracks.Update(in.FeedID, in.Persons, in.Faces, now)
	res.Detections = upd.Detections
	res.NewTracks = upd.NewTracks
	res.Confirmed = upd.Confirmed

	if in.Faces != nil {
		e.Doors.Recognitions.Set(in.FeedID, in.Faces, now)
	}

	e.Zones.RetainZones(in.FeedID, in.Zones)
	if events := e.Zones.Check(in.FeedID, in.Zones, in.Persons, in.Faces, width, height); events != nil {
		res.ZoneEvents = events
	}
	for i := range res.ZoneEvents {
		ev := &res.ZoneEvents[i]
		if ev.Authorized {
			continue
		}
		if e.Gate.ShouldEmit(alertgate.Key{FeedID: in.FeedID, Area: ev.ZoneID}, now) {
			res.Alerts = append(res.Alerts, zoneAlert(in.FeedID, ev, now))
		}
	}

	if in.Doors != nil {
		res.Door = e.Doors.Detect(in.FeedID, in.Doors, in.Image, in.DoorAccess)
		if res.Door.Alert {
			area := res.Door.AreaName
			if area == "" {
				area = unnamedDoorArea
			}
			if e.Gate.ShouldEmit(alertgate.Key{FeedID: in.FeedID, Area: area}, now) {
				res.Alerts = append(res.Alerts, doorAlert(in.FeedID, area, res.Door, now))
			}
		}
	}

	return res
}

func zoneAlert(feedID int64, ev *zones.ZoneEvent, now time.Time) Alert {
	role := ev.PersonRole
	if role == "" {
		role = "unknown role"
	}
	var msg string
	if ev.AlertType == zones.AlertTypeCrossing {
		msg = fmt.Sprintf("%v (%v) crossed restricted line '%v'", ev.PersonName, role, ev.ZoneName)
	} else {
		msg = fmt.Sprintf("%v (%v) entered restricted zone '%v'", ev.PersonName, role, ev.ZoneName)
	}
	return Alert{
		Type:       AlertType(ev.AlertType),
		FeedID:     feedID,
		Area:       ev.ZoneID,
		AreaName:   ev.ZoneName,
		PersonName: ev.PersonName,
		PersonRole: ev.PersonRole,
		Message:    msg,
		Time:       now,
	}
}

func doorAlert(feedID int64, area string, r *door.Result, now time.Time) Alert {
	a := Alert{
		Type:     AlertTypeDoor,
		FeedID:   feedID,
		Area:     area,
		AreaName: r.AreaName,
		Time:     now,
	}
	if r.LastPerson != nil {
		a.PersonName = r.LastPerson.Name
		a.PersonRole = r.LastPerson.Role
	}
	a.Message = fmt.Sprintf("%v (%v) moved the door of '%v' without permission", a.PersonName, a.PersonRole, area)
	return a
}

// ForgetFeed evicts every piece of state held for a feed
func (e *Engine) ForgetFeed(feedID int64) {
	e.Tracks.ForgetFeed(feedID)
	e.Zones.ForgetFeed(feedID)
	e.Doors.ForgetFeed(feedID)
	e.Gate.ForgetFeed(feedID)
}
