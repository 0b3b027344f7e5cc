// Package alertdb is the persistent log of alerts that made it through the dedup gate.
package alertdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/server/engine"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultMaxAlerts = 1000

var ErrNotFound = errors.New("Alert not found")

// AlertDB is a bounded log of alerts. When the log grows beyond MaxAlerts,
// the oldest alerts are purged.
type AlertDB struct {
	Log       logs.Log
	DB        *gorm.DB
	MaxAlerts int

	// Serializes insert+purge, so that concurrent feed workers don't overshoot MaxAlerts
	writeLock sync.Mutex
}

// Open or create an alert DB
func NewAlertDB(logger logs.Log, dbFilename string, maxAlerts int) (*AlertDB, error) {
	if maxAlerts <= 0 {
		maxAlerts = DefaultMaxAlerts
	}
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	alertDB, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &AlertDB{
		Log:       logger,
		DB:        alertDB,
		MaxAlerts: maxAlerts,
	}, nil
}

// LogAlert records an alert, and returns the stored record
func (a *AlertDB) LogAlert(alert *engine.Alert) (*Alert, error) {
	rec := &Alert{
		AlertID:    uuid.NewString(),
		Time:       dbh.MakeIntTime(alert.Time),
		AlertType:  alert.Type,
		FeedID:     alert.FeedID,
		Area:       alert.Area,
		AreaName:   alert.AreaName,
		PersonName: alert.PersonName,
		PersonRole: alert.PersonRole,
		Message:    alert.Message,
	}

	a.writeLock.Lock()
	defer a.writeLock.Unlock()

	if err := a.DB.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("Failed to save alert: %w", err)
	}
	a.purgeOldRecords()
	return rec, nil
}

// Escalate satisfies the feed monitor's alert sink
func (a *AlertDB) Escalate(alert *engine.Alert) error {
	_, err := a.LogAlert(alert)
	return err
}

// Delete everything but the newest MaxAlerts records
func (a *AlertDB) purgeOldRecords() {
	var count int64
	if err := a.DB.Model(&Alert{}).Count(&count).Error; err != nil {
		a.Log.Errorf("Failed to count alerts: %v", err)
		return
	}
	if count <= int64(a.MaxAlerts) {
		return
	}
	err := a.DB.Exec("DELETE FROM alert WHERE id NOT IN (SELECT id FROM alert ORDER BY id DESC LIMIT ?)", a.MaxAlerts).Error
	if err != nil {
		a.Log.Errorf("Failed to purge old alerts: %v", err)
	}
}

// Alerts returns up to limit alerts, newest first. A limit of zero or less returns the entire log.
func (a *AlertDB) Alerts(limit int) ([]Alert, error) {
	alerts := []Alert{}
	q := a.DB.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// Acknowledge marks an alert as seen by an operator
func (a *AlertDB) Acknowledge(alertID string) error {
	res := a.DB.Model(&Alert{}).Where("alert_id = ?", alertID).Update("acknowledged", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes the entire alert log, and returns the number of alerts deleted
func (a *AlertDB) Clear() (int64, error) {
	a.writeLock.Lock()
	defer a.writeLock.Unlock()
	res := a.DB.Where("1 = 1").Delete(&Alert{})
	return res.RowsAffected, res.Error
}
