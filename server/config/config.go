package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/perimeter/server/access"
	"github.com/cyclopcam/perimeter/server/bodytrack"
	"github.com/cyclopcam/perimeter/server/door"
)

const DefaultFilename = "perimeter.json"

// Config holds every tunable of the tracking and violation engine, as well as the server settings.
// A zero value means "use the default".
type Config struct {
	BodyTTLSeconds       float64  `json:"bodyTTLSeconds"`       // A body track dies when it hasn't been seen for this long
	IOUThreshold         float32  `json:"iouThreshold"`         // Minimum IoU to continue a body track
	FaceOverlap          float32  `json:"faceOverlap"`          // Minimum fraction of a face inside a body, for identity binding
	ZoneFaceOverlap      float32  `json:"zoneFaceOverlap"`      // Minimum fraction of a face inside a body, for naming zone violators
	MinLockScore         float32  `json:"minLockScore"`         // Face match score needed to lock an identity onto a body
	IdentityTTLSeconds   float64  `json:"identityTTLSeconds"`   // A locked identity lives this long without fresh evidence
	ConfirmFrames        int      `json:"confirmFrames"`        // Consecutive matches of one identity before it locks
	DoorDiffThreshold    float32  `json:"doorDiffThreshold"`    // Mean gray difference (0..1) that means the door moved
	DoorOverlapThreshold float32  `json:"doorOverlapThreshold"` // IoU between consecutive door boxes to consider them the same door
	DoorCropSize         int      `json:"doorCropSize"`         // Side length of the door sample
	AlertCooldownSeconds float64  `json:"alertCooldownSeconds"` // Minimum time between alerts for the same feed and zone/area
	OverrideRoles        []string `json:"overrideRoles"`        // Roles that may go anywhere
	FrameIntervalMS      int      `json:"frameIntervalMS"`      // How often feed workers process the latest frame
	MaxAlerts            int      `json:"maxAlerts"`            // Size of the alert log
	Listen               string   `json:"listen"`               // HTTP listen address, eg ":8080"
	DataDir              string   `json:"dataDir"`              // Location of our sqlite databases
	Verbose              bool     `json:"verbose"`              // Log track and identity lifecycle
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "perimeter"
	}
	return filepath.Join(home, "perimeter")
}

// LoadConfig reads a JSON config file. If filename is empty, we use DefaultFilename,
// and a missing default file is not an error.
func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}
	explicit := filename != ""
	if !explicit {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			cfg.SetDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

// SetDefaults fills in every zero value
func (c *Config) SetDefaults() {
	setf := func(v *float32, def float32) {
		if *v == 0 {
			*v = def
		}
	}
	setd := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	seti := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setd(&c.BodyTTLSeconds, 3)
	setf(&c.IOUThreshold, 0.40)
	setf(&c.FaceOverlap, 0.30)
	setf(&c.ZoneFaceOverlap, 0.25)
	setf(&c.MinLockScore, 0.62)
	setd(&c.IdentityTTLSeconds, 8)
	seti(&c.ConfirmFrames, 2)
	setf(&c.DoorDiffThreshold, 0.12)
	setf(&c.DoorOverlapThreshold, 0.30)
	seti(&c.DoorCropSize, 64)
	setd(&c.AlertCooldownSeconds, 15)
	seti(&c.FrameIntervalMS, 400)
	seti(&c.MaxAlerts, 1000)
	if len(c.OverrideRoles) == 0 {
		c.OverrideRoles = append([]string{}, access.DefaultOverrideRoles...)
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
}

func (c *Config) Validate() error {
	if c.IOUThreshold < 0 || c.IOUThreshold > 1 {
		return fmt.Errorf("iouThreshold must be between 0 and 1")
	}
	if c.FaceOverlap < 0 || c.FaceOverlap > 1 || c.ZoneFaceOverlap < 0 || c.ZoneFaceOverlap > 1 {
		return fmt.Errorf("faceOverlap and zoneFaceOverlap must be between 0 and 1")
	}
	if c.BodyTTLSeconds < 0 || c.IdentityTTLSeconds < 0 || c.AlertCooldownSeconds < 0 {
		return fmt.Errorf("Durations may not be negative")
	}
	if c.ConfirmFrames < 0 || c.DoorCropSize < 0 || c.FrameIntervalMS < 0 || c.MaxAlerts < 0 {
		return fmt.Errorf("Counts may not be negative")
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) TrackParams() bodytrack.Params {
	return bodytrack.Params{
		BodyTTL:      seconds(c.BodyTTLSeconds),
		IOUThreshold: c.IOUThreshold,
		FaceOverlap:  c.FaceOverlap,
		Binding: bodytrack.BindingParams{
			MinLockScore:  c.MinLockScore,
			ConfirmFrames: c.ConfirmFrames,
			IdentityTTL:   seconds(c.IdentityTTLSeconds),
		},
	}
}

func (c *Config) DoorParams() door.Params {
	return door.Params{
		DiffThreshold:    c.DoorDiffThreshold,
		OverlapThreshold: c.DoorOverlapThreshold,
		CropSize:         c.DoorCropSize,
	}
}

func (c *Config) AlertCooldown() time.Duration {
	return seconds(c.AlertCooldownSeconds)
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}
