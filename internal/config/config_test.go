package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEtudeEnv(t *testing.T) {
	t.Setenv("ETUDE_DATA_DIR", "")
	t.Setenv("ETUDE_DB", "")
	t.Setenv("ETUDE_HOST", "")
	t.Setenv("ETUDE_PORT", "")
	t.Setenv("ETUDE_SERVER_URL", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "data", cfg.Library.DataDir)
	assert.Equal(t, "http://127.0.0.1:5000", cfg.Client.BaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEtudeEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".etude", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 8123
	cfg.Library.DataDir = "/srv/scores"
	cfg.Logging.DebugMode = true
	cfg.Logging.Categories = map[string]bool{"render": false}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8123, loaded.Server.Port)
	assert.Equal(t, "/srv/scores", loaded.Library.DataDir)
	assert.True(t, loaded.Logging.DebugMode)
	assert.Equal(t, map[string]bool{"render": false}, loaded.Logging.Categories)
	// Untouched sections keep their defaults.
	assert.Equal(t, "30s", loaded.Client.Timeout)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEtudeEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("data dir and db", func(t *testing.T) {
		clearEtudeEnv(t)
		t.Setenv("ETUDE_DATA_DIR", "/music")
		t.Setenv("ETUDE_DB", "/tmp/test.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/music", cfg.Library.DataDir)
		assert.Equal(t, "/tmp/test.db", cfg.Server.DatabasePath)
	})

	t.Run("host and port", func(t *testing.T) {
		clearEtudeEnv(t)
		t.Setenv("ETUDE_HOST", "127.0.0.1")
		t.Setenv("ETUDE_PORT", "9090")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "127.0.0.1:9090", cfg.GetServerAddr())
	})

	t.Run("bad port is ignored", func(t *testing.T) {
		clearEtudeEnv(t)
		t.Setenv("ETUDE_PORT", "not-a-number")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("server url", func(t *testing.T) {
		clearEtudeEnv(t)
		t.Setenv("ETUDE_SERVER_URL", "http://practice-host:5000")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://practice-host:5000", cfg.Client.BaseURL)
	})
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.GetClientTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetWatchDebounce())

	cfg.Client.Timeout = "90s"
	cfg.Library.WatchDebounce = "500ms"
	assert.Equal(t, 90*time.Second, cfg.GetClientTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetWatchDebounce())

	// Unparseable values fall back to defaults.
	cfg.Client.Timeout = "soon"
	cfg.Library.WatchDebounce = ""
	assert.Equal(t, 30*time.Second, cfg.GetClientTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetWatchDebounce())
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Client.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Library.DataDir = ""
	assert.Error(t, cfg.Validate())
}
