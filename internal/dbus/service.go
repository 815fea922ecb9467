package dbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

const (
	BusName   = "org.gnome.ScreenTime"
	ObjPath   = "/org/gnome/ScreenTime"
	IfaceName = "org.gnome.ScreenTime"
)

// maxRangeSecs bounds GetSessions queries.
const maxRangeSecs = 365 * 86400

// ErrNameTaken is returned by Export when another daemon owns BusName.
var ErrNameTaken = errors.New("bus name already taken")

const introspectXML = `
<node>
  <interface name="` + IfaceName + `">
    <method name="GetStatus">
      <arg direction="out" type="s" name="json"/>
    </method>
    <method name="GetSessions">
      <arg direction="in" type="x" name="from_epoch"/>
      <arg direction="in" type="x" name="to_epoch"/>
      <arg direction="out" type="s" name="json"/>
    </method>
  </interface>
` + introspect.IntrospectDataString + `
</node>`

// SnapshotSource is the live tracker state.
type SnapshotSource interface {
	Snapshot() tracker.Snapshot
	OpenSession(now time.Time) (tracker.Session, bool)
}

// SessionSource reads the persisted session log.
type SessionSource interface {
	SessionsInRange(from, to int64) ([]tracker.Session, error)
}

// Service exposes the screen time tracker over D-Bus.
type Service struct {
	tracker  SnapshotSource
	sessions SessionSource // nil when the backend keeps no session log
	now      func() time.Time
}

// NewService creates a new D-Bus service. sessions may be nil.
func NewService(t SnapshotSource, sessions SessionSource) *Service {
	return &Service{tracker: t, sessions: sessions, now: time.Now}
}

// Export registers the service on the session bus. It fails with
// ErrNameTaken if another instance is already running.
func (s *Service) Export() (*godbus.Conn, error) {
	conn, err := godbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	if err := conn.Export(s, ObjPath, IfaceName); err != nil {
		return nil, fmt.Errorf("export %s: %w", IfaceName, err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), ObjPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(BusName, godbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, BusName)
	}

	return conn, nil
}

// GetStatus returns the current tracker snapshot as JSON.
func (s *Service) GetStatus() (string, *godbus.Error) {
	data, err := json.Marshal(s.tracker.Snapshot())
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

// GetSessions returns the unplugged sessions overlapping a time range as a
// JSON array, including the session still in progress.
func (s *Service) GetSessions(fromEpoch, toEpoch int64) (string, *godbus.Error) {
	if err := validateRange(fromEpoch, toEpoch); err != nil {
		return "", invalidArgs(err)
	}

	sessions := []tracker.Session{}
	if s.sessions != nil {
		stored, err := s.sessions.SessionsInRange(fromEpoch, toEpoch)
		if err != nil {
			return "", godbus.MakeFailedError(err)
		}
		sessions = append(sessions, stored...)
	}
	if open, ok := s.tracker.OpenSession(s.now()); ok && open.EndTime >= fromEpoch && open.StartTime <= toEpoch {
		sessions = append(sessions, open)
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

func validateRange(from, to int64) error {
	if from < 0 || to < 0 {
		return fmt.Errorf("epochs must be non-negative, got from=%d to=%d", from, to)
	}
	if to < from {
		return fmt.Errorf("to_epoch %d is before from_epoch %d", to, from)
	}
	if to-from > maxRangeSecs {
		return fmt.Errorf("range of %d seconds exceeds %d", to-from, maxRangeSecs)
	}
	return nil
}

func invalidArgs(err error) *godbus.Error {
	return godbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", []any{err.Error()})
}
