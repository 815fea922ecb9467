package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

const appName = "screentime-monitor"

const (
	minCollectionIntervalSeconds = 1
	maxCollectionIntervalSeconds = 60
	minProbeTimeoutMs            = 50
	maxProbeTimeoutMs            = 5000
	minWallClockJumpSeconds      = 2
	maxWallClockJumpSeconds      = 3600
	minCheckpointSeconds         = 10
	maxCheckpointSeconds         = 86400
	minRetentionDays             = 1
	maxRetentionDays             = 3650
	minCleanupIntervalHours      = 1
	maxCleanupIntervalHours      = 720
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendYAML   = "yaml"
	BackendBolt   = "bolt"
)

var defaultFileNames = map[string]string{
	BackendSQLite: "screentime.db",
	BackendYAML:   "screentime.yaml",
	BackendBolt:   "screentime.bolt",
}

var probeNames = map[string]bool{"auto": true, "upower": true, "sysfs": true, "battery": true}

type Config struct {
	Storage    StorageConfig    `toml:"storage"`
	Collection CollectionConfig `toml:"collection"`
	Tracker    TrackerConfig    `toml:"tracker"`
	Cleanup    CleanupConfig    `toml:"cleanup"`
	UI         UIConfig         `toml:"ui"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
	// Path defaults to a backend-specific file under the XDG data directory.
	Path                      string `toml:"path"`
	CheckpointIntervalSeconds int    `toml:"checkpoint_interval_seconds"`
}

type CollectionConfig struct {
	IntervalSeconds               int    `toml:"interval_seconds"`
	Probe                         string `toml:"probe"`
	ProbeTimeoutMs                int    `toml:"probe_timeout_ms"`
	WallClockJumpThresholdSeconds int    `toml:"wall_clock_jump_threshold_seconds"`
}

type TrackerConfig struct {
	ResetPolicy string `toml:"reset_policy"`
}

type CleanupConfig struct {
	RetentionDays int `toml:"retention_days"`
	IntervalHours int `toml:"interval_hours"`
}

type UIConfig struct {
	Tray bool `toml:"tray"`
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:                   BackendSQLite,
			CheckpointIntervalSeconds: 300,
		},
		Collection: CollectionConfig{
			IntervalSeconds:               1,
			Probe:                         "auto",
			ProbeTimeoutMs:                500,
			WallClockJumpThresholdSeconds: 15,
		},
		Tracker: TrackerConfig{
			ResetPolicy: string(tracker.ResetOnPlugEdge),
		},
		Cleanup: CleanupConfig{
			RetentionDays: 90,
			IntervalHours: 24,
		},
		UI: UIConfig{
			Tray: true,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/screentime-monitor/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "config.toml"), nil
}

// DefaultDataDir returns $XDG_DATA_HOME/screentime-monitor, falling back to
// ~/.local/share/screentime-monitor.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return NormalizeAndValidate(cfg)
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return NormalizeAndValidate(DefaultConfig())
	}
	return cfg, err
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg

	sanitized.Storage.Backend = strings.ToLower(strings.TrimSpace(sanitized.Storage.Backend))
	fileName, ok := defaultFileNames[sanitized.Storage.Backend]
	if !ok {
		return nil, fmt.Errorf("storage.backend must be one of sqlite, yaml, bolt, got %q", cfg.Storage.Backend)
	}
	if strings.TrimSpace(sanitized.Storage.Path) == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
		sanitized.Storage.Path = filepath.Join(dir, fileName)
	}
	var err error
	sanitized.Storage.Path, err = sanitizePath("storage.path", sanitized.Storage.Path)
	if err != nil {
		return nil, err
	}
	if err := validateRange("storage.checkpoint_interval_seconds", sanitized.Storage.CheckpointIntervalSeconds, minCheckpointSeconds, maxCheckpointSeconds); err != nil {
		return nil, err
	}

	if err := validateRange("collection.interval_seconds", sanitized.Collection.IntervalSeconds, minCollectionIntervalSeconds, maxCollectionIntervalSeconds); err != nil {
		return nil, err
	}
	sanitized.Collection.Probe = strings.ToLower(strings.TrimSpace(sanitized.Collection.Probe))
	if sanitized.Collection.Probe == "" {
		sanitized.Collection.Probe = "auto"
	}
	if !probeNames[sanitized.Collection.Probe] {
		return nil, fmt.Errorf("collection.probe must be one of auto, upower, sysfs, battery, got %q", cfg.Collection.Probe)
	}
	if err := validateRange("collection.probe_timeout_ms", sanitized.Collection.ProbeTimeoutMs, minProbeTimeoutMs, maxProbeTimeoutMs); err != nil {
		return nil, err
	}
	if err := validateRange("collection.wall_clock_jump_threshold_seconds", sanitized.Collection.WallClockJumpThresholdSeconds, minWallClockJumpSeconds, maxWallClockJumpSeconds); err != nil {
		return nil, err
	}
	if sanitized.Collection.WallClockJumpThresholdSeconds <= sanitized.Collection.IntervalSeconds {
		return nil, fmt.Errorf("collection.wall_clock_jump_threshold_seconds (%d) must exceed collection.interval_seconds (%d)",
			sanitized.Collection.WallClockJumpThresholdSeconds, sanitized.Collection.IntervalSeconds)
	}

	policy, err := tracker.ParseResetPolicy(strings.TrimSpace(sanitized.Tracker.ResetPolicy))
	if err != nil {
		return nil, fmt.Errorf("tracker.reset_policy: %w", err)
	}
	sanitized.Tracker.ResetPolicy = string(policy)

	if err := validateRange("cleanup.retention_days", sanitized.Cleanup.RetentionDays, minRetentionDays, maxRetentionDays); err != nil {
		return nil, err
	}
	if err := validateRange("cleanup.interval_hours", sanitized.Cleanup.IntervalHours, minCleanupIntervalHours, maxCleanupIntervalHours); err != nil {
		return nil, err
	}

	return &sanitized, nil
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	if err := Encode(&data, sanitized); err != nil {
		return err
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""

	return nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encode config TOML: %w", err)
	}
	return nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}

	return nil
}
