package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 100, cfg.Wipe.PassPayloadMB)
	assert.Equal(t, "logs", cfg.Audit.Dir)
	assert.Equal(t, "usbzero_log", cfg.Audit.Prefix)
	assert.Equal(t, 2*time.Second, cfg.GetSettleDelay())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbzero.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wipe:\n  pass_payload_mb: 8\nsecurity:\n  excluded_devices: [\"/dev/sda\"]\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Wipe.PassPayloadMB)
	assert.Equal(t, "ext4", cfg.Wipe.Filesystem)
	assert.True(t, cfg.IsExcluded("/dev/sda"))
	assert.False(t, cfg.IsExcluded("/dev/sdb"))
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wipe:\n  default_passes: 36\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default passes")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero payload", func(c *Config) { c.Wipe.PassPayloadMB = 0 }},
		{"negative speed", func(c *Config) { c.Wipe.MaxSpeedMBps = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "TRACE" }},
		{"bad settle", func(c *Config) { c.Wipe.SettleDelay = "soon" }},
		{"empty tool", func(c *Config) { c.HPA.Tool = "" }},
		{"prefix with slash", func(c *Config) { c.Audit.Prefix = "../x" }},
		{"empty excluded", func(c *Config) { c.Security.ExcludedDevices = []string{" "} }},
		{"huge chunk", func(c *Config) { c.Wipe.ChunkSize = 128 * 1024 * 1024 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "usbzero.yaml")
	cfg := Default()
	cfg.Wipe.DefaultAlgorithm = "dod5220"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyProfile(t *testing.T) {
	for _, p := range Profiles {
		cfg := Default()
		require.NoError(t, ApplyProfile(cfg, p), p)
		assert.NoError(t, Validate(cfg), p)
	}

	cfg := Default()
	require.NoError(t, ApplyProfile(cfg, "paranoid"))
	assert.Equal(t, "gutmann", cfg.Wipe.DefaultAlgorithm)
	assert.Equal(t, 35, cfg.Wipe.DefaultPasses)

	assert.Error(t, ApplyProfile(Default(), "turbo"))
}
