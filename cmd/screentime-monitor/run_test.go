package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/config"
	"github.com/cptspacemanspiff/screentime-monitor/internal/storage"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbeTimeout(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Collection.ProbeTimeoutMs = 500
	if got := probeTimeout(cfg, 5*time.Second); got != 500*time.Millisecond {
		t.Fatalf("probeTimeout() = %v, want 500ms", got)
	}
	cfg.Collection.ProbeTimeoutMs = 5000
	if got := probeTimeout(cfg, time.Second); got != 750*time.Millisecond {
		t.Fatalf("probeTimeout() = %v, want capped at 750ms", got)
	}
}

func TestShutdownSavesCountersAndOpenSession(t *testing.T) {
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer db.Close()

	start := time.Unix(1_700_000_000, 0)
	onBattery := tracker.ProbeFunc(func(context.Context) tracker.Reading {
		return tracker.Reading{OnBattery: true}
	})
	tr := tracker.New(tracker.Options{
		Clock:   fixedClock{start},
		Probe:   onBattery,
		Initial: tracker.Durations{ScreenOnTime: 100, TotalUptime: 200},
		Logger:  discardLogger(),
	})
	tr.OnTick(start.Add(30 * time.Second))

	shutdown(tr, db, db, start.Add(60*time.Second), discardLogger())

	got, err := db.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != (tracker.Durations{ScreenOnTime: 130, TotalUptime: 230}) {
		t.Fatalf("Load() = %+v, want 130/230", got)
	}

	sessions, err := db.SessionsInRange(0, start.Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("SessionsInRange() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].EndTime != start.Add(60*time.Second).Unix() {
		t.Fatalf("sessions = %+v, want one open session ending at shutdown", sessions)
	}
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) NewTicker(d time.Duration) tracker.Ticker { return tracker.RealClock{}.NewTicker(d) }
