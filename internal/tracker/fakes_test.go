package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var epoch = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	created chan *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch, created: make(chan *fakeTicker, 4)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// At moves the clock to epoch+secs.
func (c *fakeClock) At(secs float64) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = epoch.Add(time.Duration(secs * float64(time.Second)))
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	ft := &fakeTicker{d: d, ch: make(chan time.Time)}
	c.created <- ft
	return ft
}

type fakeTicker struct {
	d  time.Duration
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeProbe struct {
	mu      sync.Mutex
	reading Reading
}

func (p *fakeProbe) Read(context.Context) Reading {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reading
}

func (p *fakeProbe) Set(r Reading) {
	p.mu.Lock()
	p.reading = r
	p.mu.Unlock()
}

var (
	onBattery = Reading{OnBattery: true, Charging: false}
	charging  = Reading{OnBattery: false, Charging: true}
	pluggedIn = Reading{OnBattery: false, Charging: false}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(t *testing.T, policy ResetPolicy, initial Durations) (*Tracker, *fakeClock, *fakeProbe) {
	t.Helper()

	clock := newFakeClock()
	probe := &fakeProbe{reading: onBattery}
	tr := New(Options{
		Clock:   clock,
		Probe:   probe,
		Policy:  policy,
		Initial: initial,
		Logger:  discardLogger(),
	})
	return tr, clock, probe
}

func tickAt(tr *Tracker, clock *fakeClock, secs float64) {
	tr.OnTick(clock.At(secs))
}
