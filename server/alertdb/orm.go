package alertdb

import (
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/perimeter/server/engine"
)

// Alert is an escalated violation in the alert log.
// SYNC-RECORD-ALERT
type Alert struct {
	ID           int64            `gorm:"primaryKey" json:"-"`
	AlertID      string           `json:"id"` // Public ID, so that the internal sequence is not exposed
	Time         dbh.IntTime      `json:"time"`
	AlertType    engine.AlertType `json:"alert_type"`
	FeedID       int64            `json:"feed_id"`
	Area         string           `json:"area"`
	AreaName     string           `json:"area_name"`
	PersonName   string           `json:"person_name"`
	PersonRole   string           `json:"person_role"`
	Message      string           `json:"message"`
	Acknowledged bool             `json:"acknowledged"`
}
