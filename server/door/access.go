package door

// AccessConfig says who may move the door watched by a feed, and which feed sees their faces
type AccessConfig struct {
	AreaName     string
	AllowedRoles []string
	FaceFeedID   int64 // Feed whose face recognition results identify the person at the door
}

// PlanDoor is a door placed on the floor plan, and watched by a single camera that sees
// both the door and the faces of people using it.
type PlanDoor struct {
	Name         string
	FeedID       int64
	AllowedRoles []string
}

// Area is a door access area, where one camera watches faces and another watches the door.
type Area struct {
	Name         string
	FaceFeedID   int64
	DoorFeedID   int64
	AllowedRoles []string
}

// ResolveAccess finds the access rules for the door seen by feedID.
// A floor plan door on the feed wins. Otherwise we use the first area whose door feed is
// this feed. Returns nil if the feed's door is not configured.
func ResolveAccess(feedID int64, planDoors []PlanDoor, areas []Area) *AccessConfig {
	for _, d := range planDoors {
		if d.FeedID == feedID {
			return &AccessConfig{
				AreaName:     d.Name,
				AllowedRoles: d.AllowedRoles,
				FaceFeedID:   feedID,
			}
		}
	}
	for _, a := range areas {
		if a.DoorFeedID == feedID {
			return &AccessConfig{
				AreaName:     a.Name,
				AllowedRoles: a.AllowedRoles,
				FaceFeedID:   a.FaceFeedID,
			}
		}
	}
	return nil
}
