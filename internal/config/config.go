package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/codefionn/pathguard/internal/lockfile"
)

// LandlockConfig controls kernel-level confinement of commands started by
// the terminal tool.
type LandlockConfig struct {
	Enabled bool `json:"enabled"`
	// BestEffort downgrades to the strongest Landlock ABI the kernel offers
	// instead of failing the command when the full ruleset is unsupported.
	BestEffort bool `json:"best_effort"`
	// ReadOnlyPaths are extra paths a confined command may read, on top of
	// the system directories needed to run binaries at all.
	ReadOnlyPaths []string `json:"read_only_paths,omitempty"`
}

// Config represents application configuration
type Config struct {
	AllowedDirectories    []string       `json:"allowed_directories"`
	HomeDir               string         `json:"home_dir,omitempty"` // expansion target for "~", defaults to the user's home
	LogLevel              string         `json:"log_level"`          // debug, info, warn, error, none
	LogPath               string         `json:"log_path,omitempty"`
	CommandTimeoutSeconds int            `json:"command_timeout_seconds"`
	Landlock              LandlockConfig `json:"landlock"`
	WatchRoots            bool           `json:"watch_roots"`
	PruneMissingRoots     bool           `json:"prune_missing_roots"`
	AuditDBPath           string         `json:"audit_db_path,omitempty"` // empty disables the audit log
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "pathguard")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "pathguard")
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, "pathguard")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "pathguard")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "pathguard")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "pathguard")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "pathguard")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "pathguard")
	default:
		return defaultConfigDir()
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		AllowedDirectories:    []string{},
		LogLevel:              "info",
		LogPath:               filepath.Join(defaultStateDir(), "pathguard.log"),
		CommandTimeoutSeconds: 30,
		Landlock: LandlockConfig{
			Enabled:    false,
			BestEffort: true,
		},
		WatchRoots: true,
	}
}

// Load loads configuration from file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.CommandTimeoutSeconds <= 0 {
		config.CommandTimeoutSeconds = 30
	}
	if config.AllowedDirectories == nil {
		config.AllowedDirectories = []string{}
	}

	return config, nil
}

// ApplyEnv lets environment variables override the logging settings.
func (c *Config) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("PATHGUARD_LOG_LEVEL")); level != "" {
		c.LogLevel = level
	}
	if path := strings.TrimSpace(os.Getenv("PATHGUARD_LOG_PATH")); path != "" {
		c.LogPath = path
	}
}

// AddAllowedDirectory appends dir unless it is already listed verbatim.
// Canonical deduplication happens in the sandbox; this only keeps the file tidy.
func (c *Config) AddAllowedDirectory(dir string) bool {
	for _, existing := range c.AllowedDirectories {
		if existing == dir {
			return false
		}
	}
	c.AllowedDirectories = append(c.AllowedDirectories, dir)
	return true
}

// RemoveAllowedDirectory removes dir if listed verbatim.
func (c *Config) RemoveAllowedDirectory(dir string) bool {
	for i, existing := range c.AllowedDirectories {
		if existing == dir {
			c.AllowedDirectories = append(c.AllowedDirectories[:i], c.AllowedDirectories[i+1:]...)
			return true
		}
	}
	return false
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Update loads the file at path, applies fn and saves the result while
// holding a lock next to the file, so concurrent updates are not lost.
// Nothing is written when fn fails.
func Update(ctx context.Context, path string, fn func(*Config) error) error {
	lock := lockfile.For(path)
	if err := lock.Acquire(ctx, 50*time.Millisecond); err != nil {
		return fmt.Errorf("failed to lock config: %w", err)
	}
	defer lock.Release()

	cfg, err := Load(path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return cfg.Save(path)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
