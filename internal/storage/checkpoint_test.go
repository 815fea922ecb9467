package storage

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

type memStore struct {
	mu    sync.Mutex
	saved []tracker.Durations
	err     error
	entered chan struct{}
	gate    chan struct{}
}

func (m *memStore) Load() (tracker.Durations, error) { return tracker.Durations{}, nil }

func (m *memStore) Save(d tracker.Durations) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, d)
	return m.err
}

func (m *memStore) Close() error { return nil }

func (m *memStore) snapshot() []tracker.Durations {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tracker.Durations(nil), m.saved...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitAck(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("ack not called")
	}
}

func TestCheckpointer_SavesAndAcks(t *testing.T) {
	store := &memStore{}
	c := NewCheckpointer(store, quietLogger())
	defer c.Close()

	acked := make(chan struct{})
	c.Checkpoint(tracker.Durations{ScreenOnTime: 1, TotalUptime: 2}, func() { close(acked) })
	waitAck(t, acked)

	saved := store.snapshot()
	if len(saved) != 1 || saved[0].TotalUptime != 2 {
		t.Fatalf("saved = %+v, want one save with uptime 2", saved)
	}
}

func TestCheckpointer_CoalescesWhileBusy(t *testing.T) {
	store := &memStore{entered: make(chan struct{}, 2), gate: make(chan struct{})}
	c := NewCheckpointer(store, quietLogger())

	c.Checkpoint(tracker.Durations{TotalUptime: 1}, nil)
	waitAck(t, store.entered)

	var mu sync.Mutex
	acks := 0
	ack := func() { mu.Lock(); acks++; mu.Unlock() }
	c.Checkpoint(tracker.Durations{TotalUptime: 2}, ack)
	c.Checkpoint(tracker.Durations{TotalUptime: 3}, ack)

	close(store.gate)
	c.Close()

	saved := store.snapshot()
	if len(saved) != 2 {
		t.Fatalf("saved = %+v, want 2 saves", saved)
	}
	if saved[1].TotalUptime != 3 {
		t.Fatalf("last save uptime = %v, want newest (3)", saved[1].TotalUptime)
	}
	if acks != 2 {
		t.Fatalf("acks = %d, want 2", acks)
	}
}

func TestCheckpointer_AckRunsOnSaveError(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	c := NewCheckpointer(store, quietLogger())
	defer c.Close()

	acked := make(chan struct{})
	c.Checkpoint(tracker.Durations{}, func() { close(acked) })
	waitAck(t, acked)
}

func TestCheckpointer_AfterClose(t *testing.T) {
	store := &memStore{}
	c := NewCheckpointer(store, quietLogger())
	c.Close()
	c.Close()

	called := false
	c.Checkpoint(tracker.Durations{TotalUptime: 9}, func() { called = true })
	if !called {
		t.Fatal("ack not called after Close")
	}
	if n := len(store.snapshot()); n != 0 {
		t.Fatalf("saves after Close = %d, want 0", n)
	}
}
