package configdb

import (
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/door"
	"github.com/cyclopcam/perimeter/server/zones"
)

// CameraZone is a zone drawn directly onto a camera's view.
// Points are normalized to [0,1] of the video frame.
// SYNC-RECORD-CAMERA-ZONE
type CameraZone struct {
	ID              string      `gorm:"primaryKey" json:"id"`
	CreatedAt       dbh.IntTime `json:"-"`
	FeedID          int64       `json:"feed_id"`
	Name            string      `json:"name"`
	ZoneType        string      `json:"zone_type"` // "polygon" or "line"
	Points          []nn.Point  `json:"points" gorm:"serializer:json"`
	AuthorizedRoles []string    `json:"authorized_roles" gorm:"serializer:json"`
	Color           string      `json:"color" gorm:"default:null"`
	Active          bool        `json:"active"`
}

func (z *CameraZone) ToZone() zones.Zone {
	return zones.Zone{
		ID:              z.ID,
		FeedID:          z.FeedID,
		Name:            z.Name,
		Type:            zones.ZoneType(z.ZoneType),
		Points:          z.Points,
		AuthorizedRoles: z.AuthorizedRoles,
		Active:          z.Active,
	}
}

// DoorArea pairs a camera that sees faces with a camera that sees a door.
// SYNC-RECORD-DOOR-AREA
type DoorArea struct {
	ID           string   `gorm:"primaryKey" json:"id"`
	Position     int      `json:"-"` // Preserves the order in which the areas were supplied
	Name         string   `json:"name"`
	FaceFeedID   int64    `json:"face_feed_id"`
	DoorFeedID   int64    `json:"door_feed_id"`
	AllowedRoles []string `json:"allowed_roles" gorm:"serializer:json"`
}

func (a *DoorArea) ToArea() door.Area {
	return door.Area{
		Name:         a.Name,
		FaceFeedID:   a.FaceFeedID,
		DoorFeedID:   a.DoorFeedID,
		AllowedRoles: a.AllowedRoles,
	}
}

// PlanDoor is a door placed on the floor plan. If FeedID is set, then that camera
// watches both the door and the faces of people using it.
// SYNC-RECORD-PLAN-DOOR
type PlanDoor struct {
	ID               string      `gorm:"primaryKey" json:"id"`
	CreatedAt        dbh.IntTime `json:"-"`
	Name             string      `json:"name"`
	Point            nn.Point    `json:"point" gorm:"serializer:json"` // Normalized position on the floor plan
	FeedID           *int64      `json:"feed_id" gorm:"default:null"`
	AllowedRoles     []string    `json:"allowed_roles" gorm:"serializer:json"`
	RestrictionLevel string      `json:"restriction_level" gorm:"default:null"`
}
