package dbus

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/storage"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

type fakeTracker struct {
	snap tracker.Snapshot
	open *tracker.Session
}

func (f *fakeTracker) Snapshot() tracker.Snapshot { return f.snap }

func (f *fakeTracker) OpenSession(now time.Time) (tracker.Session, bool) {
	if f.open == nil {
		return tracker.Session{}, false
	}
	s := *f.open
	s.EndTime = now.Unix()
	return s, true
}

func newTestService(t *testing.T, ft *fakeTracker) (*Service, *storage.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("storage.OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() error = %v", err)
		}
	})

	svc := NewService(ft, db)
	svc.now = func() time.Time { return time.Unix(1000, 0) }
	return svc, db
}

func TestService_InvalidTimeRanges(t *testing.T) {
	svc, _ := newTestService(t, &fakeTracker{})

	tests := []struct {
		name     string
		from, to int64
	}{
		{name: "negative from", from: -1, to: 0},
		{name: "to before from", from: 10, to: 9},
		{name: "range too large", from: 0, to: 86400 * 366},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetSessions(tt.from, tt.to)
			if err == nil {
				t.Fatal("expected D-Bus error, got nil")
			}
			if err.Name != "org.freedesktop.DBus.Error.InvalidArgs" {
				t.Fatalf("error name = %q, want InvalidArgs", err.Name)
			}
		})
	}
}

func TestService_GetStatus(t *testing.T) {
	snap := tracker.Snapshot{
		Power:     tracker.Unplugged,
		Sleep:     tracker.Awake,
		Durations: tracker.Durations{ScreenOnTime: 90, TotalUptime: 120},
		Reading:   tracker.Reading{OnBattery: true},
		LastTick:  time.Unix(500, 0).UTC(),
	}
	svc, _ := newTestService(t, &fakeTracker{snap: snap})

	raw, dbusErr := svc.GetStatus()
	if dbusErr != nil {
		t.Fatalf("GetStatus() error = %v", dbusErr)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		t.Fatalf("unmarshal status JSON: %v", err)
	}
	if string(fields["power"]) != `"unplugged"` {
		t.Fatalf("power = %s, want \"unplugged\"", fields["power"])
	}

	got, err := decodeSnapshot(raw)
	if err != nil {
		t.Fatalf("decodeSnapshot() error = %v", err)
	}
	if got.Durations != snap.Durations || got.Power != snap.Power || !got.LastTick.Equal(snap.LastTick) {
		t.Fatalf("decodeSnapshot() = %+v, want %+v", got, snap)
	}
}

func TestService_GetSessionsIncludesOpenSession(t *testing.T) {
	ft := &fakeTracker{open: &tracker.Session{StartTime: 900, ScreenOnSecs: 60}}
	svc, db := newTestService(t, ft)

	if err := db.InsertSession(tracker.Session{StartTime: 100, EndTime: 200, ScreenOnSecs: 80}); err != nil {
		t.Fatalf("InsertSession() error = %v", err)
	}

	raw, dbusErr := svc.GetSessions(0, 2000)
	if dbusErr != nil {
		t.Fatalf("GetSessions() error = %v", dbusErr)
	}
	var sessions []tracker.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		t.Fatalf("unmarshal sessions JSON: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("GetSessions() = %s, want stored and open session", raw)
	}
	if sessions[1].StartTime != 900 || sessions[1].EndTime != 1000 {
		t.Fatalf("open session = %+v, want 900..1000", sessions[1])
	}

	raw, dbusErr = svc.GetSessions(0, 50)
	if dbusErr != nil {
		t.Fatalf("GetSessions() error = %v", dbusErr)
	}
	if raw != "[]" {
		t.Fatalf("GetSessions(0, 50) = %s, want []", raw)
	}
}

func TestService_WithoutSessionStore(t *testing.T) {
	svc := NewService(&fakeTracker{}, nil)

	raw, dbusErr := svc.GetSessions(0, 100)
	if dbusErr != nil {
		t.Fatalf("GetSessions() error = %v", dbusErr)
	}
	if raw != "[]" {
		t.Fatalf("GetSessions() = %s, want []", raw)
	}
}
