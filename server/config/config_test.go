package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	require.NoError(t, c.Validate())
	p := c.TrackParams()
	require.Equal(t, 3*time.Second, p.BodyTTL)
	require.Equal(t, float32(0.4), p.IOUThreshold)
	require.Equal(t, float32(0.62), p.Binding.MinLockScore)
	require.Equal(t, 2, p.Binding.ConfirmFrames)
	require.Equal(t, 8*time.Second, p.Binding.IdentityTTL)
	require.Equal(t, 15*time.Second, c.AlertCooldown())
	require.Equal(t, 400*time.Millisecond, c.FrameInterval())
	require.Equal(t, 64, c.DoorParams().CropSize)
	require.Equal(t, []string{"C-Level", "Admin"}, c.OverrideRoles)
	require.Equal(t, ":8080", c.Listen)
	require.NotEqual(t, "", c.DataDir)
}

func TestLoadConfig(t *testing.T) {
	filename := "test-config.json"
	require.NoError(t, os.WriteFile(filename, []byte(`{"iouThreshold": 0.45, "identityTTLSeconds": 6, "overrideRoles": ["Boss"]}`), 0644))
	defer os.Remove(filename)

	c, err := LoadConfig(filename)
	require.NoError(t, err)
	require.Equal(t, float32(0.45), c.IOUThreshold)
	require.Equal(t, 6*time.Second, c.TrackParams().Binding.IdentityTTL)
	require.Equal(t, []string{"Boss"}, c.OverrideRoles)
	// Unspecified values get defaults
	require.Equal(t, float32(0.12), c.DoorDiffThreshold)

	_, err = LoadConfig("does-not-exist.json")
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filename, []byte(`{"iouThreshold": 1.5}`), 0644))
	_, err = LoadConfig(filename)
	require.Error(t, err)
}
