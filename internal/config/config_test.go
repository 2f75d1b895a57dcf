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

	patterns, err := cfg.EffectivePatterns()
	require.NoError(t, err)
	assert.Equal(t, []string{"zero", "ones", "random"}, patterns)
	assert.Equal(t, 30*time.Second, cfg.GetMaxVerdictAge())
	assert.Equal(t, time.Duration(0), cfg.GetMaxDuration())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasanitizer.yaml")
	contents := []byte(`
sanitize:
  profile: dod5220
  bound_bytes: 1048576
security:
  excluded_drives: ["/dev/sdz"]
`)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dod5220", cfg.Sanitize.Profile)
	assert.Equal(t, uint64(1048576), cfg.Sanitize.BoundBytes)
	assert.Equal(t, []string{"/dev/sdz"}, cfg.Security.ExcludedDrives)
	assert.Equal(t, int64(1024*1024), cfg.Sanitize.ChunkSize)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasanitizer.toml")
	contents := []byte(`
[sanitize]
patterns = ["random", "zero"]
verify_mode = "sampled"
verify_samples = 8

[logging]
level = "DEBUG"
`)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	patterns, err := cfg.EffectivePatterns()
	require.NoError(t, err)
	assert.Equal(t, []string{"random", "zero"}, patterns)
	assert.Equal(t, "sampled", cfg.Sanitize.VerifyMode)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"cfg.yaml", "cfg.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Sanitize.Profile = "quick"
			require.NoError(t, Save(cfg, path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "quick", loaded.Sanitize.Profile)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero bound", func(c *Config) { c.Sanitize.BoundBytes = 0 }},
		{"unaligned bound", func(c *Config) { c.Sanitize.BoundBytes = 1000 }},
		{"bound over cap", func(c *Config) { c.Sanitize.BoundBytes = c.Sanitize.MaxBoundBytes + 512 }},
		{"cap over limit", func(c *Config) { c.Sanitize.MaxBoundBytes = MaxBoundLimit + 1 }},
		{"unaligned chunk", func(c *Config) { c.Sanitize.ChunkSize = 1000 }},
		{"huge chunk", func(c *Config) { c.Sanitize.ChunkSize = 128 * 1024 * 1024 }},
		{"negative retries", func(c *Config) { c.Sanitize.MaxRetries = -1 }},
		{"negative speed", func(c *Config) { c.Sanitize.MaxSpeedMBps = -5 }},
		{"bad duration", func(c *Config) { c.Sanitize.MaxDuration = "soon" }},
		{"zero verdict age", func(c *Config) { c.Security.MaxVerdictAge = "0s" }},
		{"bad verify mode", func(c *Config) { c.Sanitize.VerifyMode = "never" }},
		{"sampled without samples", func(c *Config) { c.Sanitize.VerifyMode = "sampled"; c.Sanitize.VerifySamples = 0 }},
		{"unknown profile", func(c *Config) { c.Sanitize.Profile = "gutmann-lite" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "TRACE" }},
		{"relative protected mount", func(c *Config) { c.Security.ProtectedMounts = []string{"boot"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestApplyProfile(t *testing.T) {
	cfg := Default()
	cfg.Sanitize.Patterns = []string{"zero"}

	require.NoError(t, ApplyProfile(cfg, "paranoid"))
	patterns, err := cfg.EffectivePatterns()
	require.NoError(t, err)
	assert.Len(t, patterns, 7)

	assert.Error(t, ApplyProfile(cfg, "nope"))
	assert.Contains(t, ProfileNames(), "standard")
}

func TestProfilePatternsReturnsCopy(t *testing.T) {
	first, err := ProfilePatterns("standard")
	require.NoError(t, err)
	first[0] = "mutated"

	second, err := ProfilePatterns("standard")
	require.NoError(t, err)
	assert.Equal(t, "zero", second[0])
}
