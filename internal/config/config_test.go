package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30, cfg.CommandTimeoutSeconds)
	assert.True(t, cfg.WatchRoots)
	assert.False(t, cfg.PruneMissingRoots)
	assert.True(t, cfg.Landlock.BestEffort)
	assert.Empty(t, cfg.AllowedDirectories)
}

func TestLoadOverridesOnlyProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"allowed_directories": ["/srv/project", "~/notes"],
		"log_level": "debug",
		"command_timeout_seconds": 0,
		"landlock": {"enabled": true}
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/project", "~/notes"}, cfg.AllowedDirectories)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.CommandTimeoutSeconds, "non-positive timeout falls back to default")
	assert.True(t, cfg.Landlock.Enabled)
	assert.True(t, cfg.Landlock.BestEffort, "unset nested field keeps its default")
	assert.True(t, cfg.WatchRoots)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.AddAllowedDirectory("/srv/project")
	cfg.AuditDBPath = "/var/lib/pathguard/audit.db"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.AllowedDirectories, loaded.AllowedDirectories)
	assert.Equal(t, cfg.AuditDBPath, loaded.AuditDBPath)
}

func TestAllowedDirectoryEditing(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.AddAllowedDirectory("/a"))
	assert.True(t, cfg.AddAllowedDirectory("/b"))
	assert.False(t, cfg.AddAllowedDirectory("/a"), "duplicate should not be added")
	assert.Equal(t, []string{"/a", "/b"}, cfg.AllowedDirectories)

	assert.True(t, cfg.RemoveAllowedDirectory("/a"))
	assert.False(t, cfg.RemoveAllowedDirectory("/missing"))
	assert.Equal(t, []string{"/b"}, cfg.AllowedDirectories)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PATHGUARD_LOG_LEVEL", "warn")
	t.Setenv("PATHGUARD_LOG_PATH", "/tmp/pathguard-test.log")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/pathguard-test.log", cfg.LogPath)
}

func TestGetConfigPathHonoursXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows layout")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "pathguard", "config.json"), GetConfigPath())
}

func TestUpdateSerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := Update(context.Background(), path, func(c *Config) error {
				c.AddAllowedDirectory(fmt.Sprintf("/srv/%d", i))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.AllowedDirectories, 10)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock is released")
}

func TestUpdateFailureWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	boom := errors.New("boom")

	err := Update(context.Background(), path, func(c *Config) error {
		c.AddAllowedDirectory("/srv")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
