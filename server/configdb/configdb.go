// Package configdb stores the operator's configuration: camera zones, door access areas,
// and doors placed on the floor plan.
package configdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

type ConfigDB struct {
	Log logs.Log
	DB  *gorm.DB

	// Snapshot of the configuration, which the feed workers read on every frame.
	// Any write clears it.
	cacheLock sync.Mutex
	cache     *snapshot
}

type snapshot struct {
	zones     []CameraZone
	areas     []DoorArea
	planDoors []PlanDoor
}

func NewConfigDB(logger logs.Log, dbFilename string) (*ConfigDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	configDB, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &ConfigDB{
		Log: logger,
		DB:  configDB,
	}, nil
}

func (c *ConfigDB) invalidate() {
	c.cacheLock.Lock()
	c.cache = nil
	c.cacheLock.Unlock()
}

func (c *ConfigDB) getSnapshot() (*snapshot, error) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	if c.cache != nil {
		return c.cache, nil
	}
	s := &snapshot{}
	if err := c.DB.Order("created_at, rowid").Find(&s.zones).Error; err != nil {
		return nil, fmt.Errorf("Failed to read camera zones: %w", err)
	}
	if err := c.DB.Order("position").Find(&s.areas).Error; err != nil {
		return nil, fmt.Errorf("Failed to read door areas: %w", err)
	}
	if err := c.DB.Order("created_at, rowid").Find(&s.planDoors).Error; err != nil {
		return nil, fmt.Errorf("Failed to read floor plan doors: %w", err)
	}
	c.cache = s
	return s, nil
}
