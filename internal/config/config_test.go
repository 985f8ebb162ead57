// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.InDelta(t, 30.0, cfg.Clips.DefaultDuration, 1e-9)
	assert.InDelta(t, 180.0, cfg.Clips.MaxDuration, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.Clips.AnonTTL)
	assert.Equal(t, "ffmpeg", cfg.Media.FFmpegPath)
	assert.Equal(t, "whisper-1", cfg.AI.Model)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataDir: /var/lib/clippy
logLevel: debug
server:
  listen: ":9090"
clips:
  maxDuration: 120
  anonTTL: 48h
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/clippy", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.InDelta(t, 120.0, cfg.Clips.MaxDuration, 1e-9)
	assert.Equal(t, 48*time.Hour, cfg.Clips.AnonTTL)

	// Untouched fields keep their defaults.
	assert.InDelta(t, 30.0, cfg.Clips.DefaultDuration, 1e-9)
	assert.Equal(t, "ffmpeg", cfg.Media.FFmpegPath)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\n"), 0o644))

	t.Setenv("CLIPPY_LOG_LEVEL", "warn")
	t.Setenv("CLIPPY_MAX_DURATION", "90")
	t.Setenv("CLIPPY_ANON_TTL", "6h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.InDelta(t, 90.0, cfg.Clips.MaxDuration, 1e-9)
	assert.Equal(t, 6*time.Hour, cfg.Clips.AnonTTL)
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("CLIPPY_MAX_DURATION", "plenty")
	t.Setenv("CLIPPY_ANON_TTL", "later")
	t.Setenv("CLIPPY_CREATE_RATE_LIMIT", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.InDelta(t, 180.0, cfg.Clips.MaxDuration, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.Clips.AnonTTL)
	assert.Equal(t, 10, cfg.Server.CreateRateLimit)
}

func TestMissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestUnknownFileKeyIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDirr: /oops\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	t.Run("max below default", func(t *testing.T) {
		t.Setenv("CLIPPY_MAX_DURATION", "10")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("CLIPPY_LOG_LEVEL", "loud")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("empty data dir", func(t *testing.T) {
		cfg := defaults()
		cfg.DataDir = ""
		require.Error(t, cfg.validate())
	})
}

func TestDerivedPaths(t *testing.T) {
	cfg := defaults()
	cfg.DataDir = "/srv/clippy"
	assert.Equal(t, "/srv/clippy/downloads", cfg.DownloadsDir())
	assert.Equal(t, "/srv/clippy/clips", cfg.ClipsDir())
	assert.Equal(t, "/srv/clippy/registry", cfg.RegistryDir())
	assert.Equal(t, "/srv/clippy/work", cfg.WorkDir())
}

func TestEnsureDirs(t *testing.T) {
	cfg := defaults()
	cfg.DataDir = t.TempDir()
	require.NoError(t, cfg.EnsureDirs())
	for _, dir := range []string{cfg.DownloadsDir(), cfg.ClipsDir(), cfg.RegistryDir(), cfg.WorkDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
