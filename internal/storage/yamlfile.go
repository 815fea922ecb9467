package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// YAMLFile keeps the counters in a small YAML document:
//
//	screenOnTime: 5400
//	totalUptime: 86400
type YAMLFile struct {
	path string
}

// OpenYAML returns a store backed by the file at path. The file is created on first Save.
func OpenYAML(path string) *YAMLFile {
	return &YAMLFile{path: path}
}

func (f *YAMLFile) Load() (tracker.Durations, error) {
	var d tracker.Durations
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return d, fmt.Errorf("read state file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return tracker.Durations{}, fmt.Errorf("parse state yaml: %w", err)
	}
	return d, nil
}

// Save writes to a temp file in the same directory and renames it over the
// old one, so a crash never leaves a truncated document.
func (f *YAMLFile) Save(d tracker.Durations) error {
	serialized, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal state yaml: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmpFile, err := os.CreateTemp(dir, ".screentime-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(serialized); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	tmpPath = ""
	return nil
}

func (f *YAMLFile) Close() error { return nil }
