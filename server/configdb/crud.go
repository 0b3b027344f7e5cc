package configdb

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/door"
	"github.com/cyclopcam/perimeter/server/zones"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("Not found")

const DefaultZoneName = "Restricted Zone"
const DefaultZoneColor = "#ef4444"

// The door areas we report until the operator configures their own
func DefaultDoorAreas() []DoorArea {
	return []DoorArea{
		{ID: "office1", Name: "Office 1", FaceFeedID: 0, DoorFeedID: 1, AllowedRoles: []string{"Admin"}},
		{ID: "office2", Name: "Office 2", FaceFeedID: 2, DoorFeedID: 3, AllowedRoles: []string{"Admin", "Worker"}},
	}
}

// ValidateZone rejects zones that could never fire
func ValidateZone(z *CameraZone) error {
	switch zones.ZoneType(z.ZoneType) {
	case zones.ZoneTypePolygon:
		if len(z.Points) < 3 {
			return fmt.Errorf("A polygon zone needs at least 3 points")
		}
	case zones.ZoneTypeLine:
		if len(z.Points) != 2 {
			return fmt.Errorf("A line zone needs exactly 2 points")
		}
		if z.Points[0] == z.Points[1] {
			return fmt.Errorf("The two points of a line zone must be different")
		}
	default:
		return fmt.Errorf("Invalid zone type '%v'. Must be 'polygon' or 'line'", z.ZoneType)
	}
	for _, p := range z.Points {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return fmt.Errorf("Zone points must be normalized to [0,1], but found %v,%v", p.X, p.Y)
		}
	}
	return nil
}

// Zones returns every camera zone, active or not
func (c *ConfigDB) Zones() ([]CameraZone, error) {
	s, err := c.getSnapshot()
	if err != nil {
		return nil, err
	}
	return append([]CameraZone{}, s.zones...), nil
}

// ZonesForFeed returns the active zones of a feed, ready for the zone engine
func (c *ConfigDB) ZonesForFeed(feedID int64) ([]zones.Zone, error) {
	s, err := c.getSnapshot()
	if err != nil {
		return nil, err
	}
	out := []zones.Zone{}
	for i := range s.zones {
		if s.zones[i].FeedID == feedID && s.zones[i].Active {
			out = append(out, s.zones[i].ToZone())
		}
	}
	return out, nil
}

// AddZone assigns a new ID to z and inserts it
func (c *ConfigDB) AddZone(z *CameraZone) error {
	z.ID = uuid.NewString()
	z.CreatedAt = dbh.MakeIntTime(time.Now())
	if z.Name == "" {
		z.Name = DefaultZoneName
	}
	if z.ZoneType == "" {
		z.ZoneType = string(zones.ZoneTypePolygon)
	}
	if z.Color == "" {
		z.Color = DefaultZoneColor
	}
	if z.AuthorizedRoles == nil {
		z.AuthorizedRoles = []string{}
	}
	if err := ValidateZone(z); err != nil {
		return err
	}
	defer c.invalidate()
	return c.DB.Create(z).Error
}

// ZoneUpdate is a partial update. Nil fields are left unchanged.
type ZoneUpdate struct {
	FeedID          *int64     `json:"feed_id"`
	Name            *string    `json:"name"`
	ZoneType        *string    `json:"zone_type"`
	Points          []nn.Point `json:"points"`
	AuthorizedRoles []string   `json:"authorized_roles"`
	Color           *string    `json:"color"`
	Active          *bool      `json:"active"`
}

func (c *ConfigDB) UpdateZone(id string, upd *ZoneUpdate) (*CameraZone, error) {
	z := CameraZone{}
	if err := c.DB.Where("id = ?", id).First(&z).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if upd.FeedID != nil {
		z.FeedID = *upd.FeedID
	}
	if upd.Name != nil {
		z.Name = *upd.Name
	}
	if upd.ZoneType != nil {
		z.ZoneType = *upd.ZoneType
	}
	if upd.Points != nil {
		z.Points = upd.Points
	}
	if upd.AuthorizedRoles != nil {
		z.AuthorizedRoles = upd.AuthorizedRoles
	}
	if upd.Color != nil {
		z.Color = *upd.Color
	}
	if upd.Active != nil {
		z.Active = *upd.Active
	}
	if err := ValidateZone(&z); err != nil {
		return nil, err
	}
	defer c.invalidate()
	if err := c.DB.Save(&z).Error; err != nil {
		return nil, err
	}
	return &z, nil
}

func (c *ConfigDB) DeleteZone(id string) error {
	defer c.invalidate()
	res := c.DB.Where("id = ?", id).Delete(&CameraZone{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DoorAreas returns the configured door areas, or the defaults if none have been configured
func (c *ConfigDB) DoorAreas() ([]DoorArea, error) {
	s, err := c.getSnapshot()
	if err != nil {
		return nil, err
	}
	if len(s.areas) == 0 {
		return DefaultDoorAreas(), nil
	}
	return append([]DoorArea{}, s.areas...), nil
}

// Derive an area ID from its name, eg "Office 1" -> "office1"
func areaIDFromName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "")
}

// SetDoorAreas replaces all door areas. Setting an empty list reverts to the defaults.
func (c *ConfigDB) SetDoorAreas(areas []DoorArea) ([]DoorArea, error) {
	out := make([]DoorArea, len(areas))
	seen := map[string]bool{}
	for i, a := range areas {
		if a.Name == "" {
			a.Name = fmt.Sprintf("Area %v", i+1)
		}
		if a.ID == "" {
			a.ID = areaIDFromName(a.Name)
		}
		if a.ID == "" || seen[a.ID] {
			a.ID = fmt.Sprintf("area%v", i)
		}
		if a.AllowedRoles == nil {
			a.AllowedRoles = []string{}
		}
		a.Position = i
		seen[a.ID] = true
		out[i] = a
	}
	defer c.invalidate()
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&DoorArea{}).Error; err != nil {
			return err
		}
		if len(out) != 0 {
			return tx.Create(&out).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to save door areas: %w", err)
	}
	if len(out) == 0 {
		return DefaultDoorAreas(), nil
	}
	return out, nil
}

func (c *ConfigDB) PlanDoors() ([]PlanDoor, error) {
	s, err := c.getSnapshot()
	if err != nil {
		return nil, err
	}
	return append([]PlanDoor{}, s.planDoors...), nil
}

func (c *ConfigDB) AddPlanDoor(d *PlanDoor) error {
	d.ID = uuid.NewString()
	d.CreatedAt = dbh.MakeIntTime(time.Now())
	if d.AllowedRoles == nil {
		d.AllowedRoles = []string{}
	}
	defer c.invalidate()
	return c.DB.Create(d).Error
}

func (c *ConfigDB) DeletePlanDoor(id string) error {
	defer c.invalidate()
	res := c.DB.Where("id = ?", id).Delete(&PlanDoor{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DoorAccessForFeed resolves the access rules for the door watched by a feed.
// Returns nil if the feed's door is not configured.
func (c *ConfigDB) DoorAccessForFeed(feedID int64) (*door.AccessConfig, error) {
	s, err := c.getSnapshot()
	if err != nil {
		return nil, err
	}
	planDoors := []door.PlanDoor{}
	for _, d := range s.planDoors {
		if d.FeedID != nil {
			planDoors = append(planDoors, door.PlanDoor{Name: d.Name, FeedID: *d.FeedID, AllowedRoles: d.AllowedRoles})
		}
	}
	areaRows := s.areas
	if len(areaRows) == 0 {
		areaRows = DefaultDoorAreas()
	}
	areas := make([]door.Area, 0, len(areaRows))
	for i := range areaRows {
		areas = append(areas, areaRows[i].ToArea())
	}
	return door.ResolveAccess(feedID, planDoors, areas), nil
}
