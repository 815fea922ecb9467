package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/config"
	"github.com/cptspacemanspiff/screentime-monitor/internal/storage"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

type memSessions struct {
	mu        sync.Mutex
	inserted  []tracker.Session
	cutoffs   []int64
	insertErr error
}

func (m *memSessions) InsertSession(s tracker.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, s)
	return nil
}

func (m *memSessions) SessionsInRange(from, to int64) ([]tracker.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tracker.Session(nil), m.inserted...), nil
}

func (m *memSessions) DeleteOlderThan(before int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, before)
	return 0, nil
}

var sessionStart = time.Unix(1_700_000_000, 0)

// unplugThenPlug runs a tracker through a 30s unplugged session that ends on
// a plug-in at +40s.
func unplugThenPlug(t *testing.T, subscribeBuffer int) (*tracker.Tracker, <-chan tracker.Event) {
	t.Helper()

	reading := tracker.Reading{OnBattery: true}
	tr := tracker.New(tracker.Options{
		Clock:  fixedClock{sessionStart},
		Probe:  tracker.ProbeFunc(func(context.Context) tracker.Reading { return reading }),
		Logger: discardLogger(),
	})
	events := tr.Subscribe(subscribeBuffer)

	tr.OnTick(sessionStart)
	tr.OnTick(sessionStart.Add(30 * time.Second))
	reading = tracker.Reading{Charging: true}
	tr.OnTick(sessionStart.Add(40 * time.Second))
	return tr, events
}

var wantSession = tracker.Session{
	StartTime:    sessionStart.Unix(),
	EndTime:      sessionStart.Add(40 * time.Second).Unix(),
	ScreenOnSecs: 30,
}

func TestRecordSessions_InsertsEndedSession(t *testing.T) {
	tr, events := unplugThenPlug(t, 16)
	tr.Close()

	store := &memSessions{}
	recordSessions(context.Background(), events, tr, store, discardLogger())

	if len(store.inserted) != 1 || store.inserted[0] != wantSession {
		t.Fatalf("inserted = %+v, want [%+v]", store.inserted, wantSession)
	}
}

func TestRecordSessions_IgnoresOtherEvents(t *testing.T) {
	tr := tracker.New(tracker.Options{
		Clock: fixedClock{sessionStart},
		Probe: tracker.ProbeFunc(func(context.Context) tracker.Reading {
			return tracker.Reading{OnBattery: true}
		}),
		Logger: discardLogger(),
	})
	events := tr.Subscribe(16)
	for i := 0; i < 5; i++ {
		tr.OnTick(sessionStart.Add(time.Duration(i) * time.Second))
	}
	tr.OnSleepBegin()
	tr.OnWake()
	tr.Close()

	store := &memSessions{}
	recordSessions(context.Background(), events, tr, store, discardLogger())

	if len(store.inserted) != 0 {
		t.Fatalf("inserted = %+v, want none", store.inserted)
	}
}

func TestRecordSessions_InsertErrorIsLogged(t *testing.T) {
	tr, events := unplugThenPlug(t, 16)
	tr.Close()

	store := &memSessions{insertErr: errors.New("disk full")}
	recordSessions(context.Background(), events, tr, store, discardLogger())

	if len(store.inserted) != 0 {
		t.Fatalf("inserted = %+v, want none", store.inserted)
	}
}

func TestRecordSessions_CancelRightAfterPlugIn(t *testing.T) {
	tests := []struct {
		name   string
		buffer int
	}{
		{name: "event still buffered", buffer: 16},
		{name: "event dropped on full channel", buffer: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "data.db"))
				if err != nil {
					t.Fatalf("OpenSQLite() error = %v", err)
				}

				tr, events := unplugThenPlug(t, tt.buffer)
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				recordSessions(ctx, events, tr, db, discardLogger())
				shutdown(tr, db, db, sessionStart.Add(time.Minute), discardLogger())

				got, err := db.SessionsInRange(0, sessionStart.Add(time.Hour).Unix())
				if err != nil {
					t.Fatalf("SessionsInRange() error = %v", err)
				}
				if len(got) != 1 || got[0] != wantSession {
					t.Fatalf("run %d: sessions = %+v, want [%+v]", i, got, wantSession)
				}
				db.Close()
			}
		})
	}
}

func TestShutdownFlushesQueuedSessions(t *testing.T) {
	tr, _ := unplugThenPlug(t, 1)

	store := &memSessions{}
	shutdown(tr, &nopStore{}, store, sessionStart.Add(time.Minute), discardLogger())

	if len(store.inserted) != 1 || store.inserted[0] != wantSession {
		t.Fatalf("inserted = %+v, want [%+v]", store.inserted, wantSession)
	}
}

func TestRunCleanup_PrunesAtStartup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memSessions{}
	cfg := config.CleanupConfig{RetentionDays: 90, IntervalHours: 24}

	before := time.Now().Add(-90 * 24 * time.Hour).Unix()
	runCleanup(ctx, store, cfg, discardLogger())
	after := time.Now().Add(-90 * 24 * time.Hour).Unix()

	if len(store.cutoffs) != 1 {
		t.Fatalf("DeleteOlderThan calls = %d, want 1", len(store.cutoffs))
	}
	if c := store.cutoffs[0]; c < before || c > after {
		t.Fatalf("cutoff = %d, want between %d and %d", c, before, after)
	}
}

type nopStore struct{ saved []tracker.Durations }

func (s *nopStore) Load() (tracker.Durations, error) { return tracker.Durations{}, nil }
func (s *nopStore) Save(d tracker.Durations) error {
	s.saved = append(s.saved, d)
	return nil
}
func (s *nopStore) Close() error { return nil }
