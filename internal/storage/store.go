// Package storage persists the screen-on counters and the unplugged-session log.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Keys under which the counters are persisted.
const (
	keyScreenOnTime = "screenOnTime"
	keyTotalUptime  = "totalUptime"
)

// Store persists the accumulated durations. Load returns zero durations when
// nothing has been saved yet.
type Store interface {
	Load() (tracker.Durations, error)
	Save(d tracker.Durations) error
	Close() error
}

// SessionStore is implemented by backends that also keep unplugged sessions.
type SessionStore interface {
	InsertSession(s tracker.Session) error
	SessionsInRange(from, to int64) ([]tracker.Session, error)
	DeleteOlderThan(before int64) (int64, error)
}

// Open opens the named backend at path, creating parent directories.
func Open(backend, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	switch backend {
	case "sqlite":
		return OpenSQLite(path)
	case "yaml":
		return OpenYAML(path), nil
	case "bolt":
		return OpenBolt(path)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, backend)
}

// Remove deletes the files of the named backend at path. Missing files are ignored.
func Remove(backend, path string) error {
	suffixes := []string{""}
	switch backend {
	case "sqlite":
		suffixes = []string{"", "-wal", "-shm"}
	case "yaml", "bolt":
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, backend)
	}
	for _, suffix := range suffixes {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
