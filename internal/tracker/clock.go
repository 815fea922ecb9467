package tracker

import "time"

// Clock abstracts time so the tracker and its loop can be driven by tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker abstracts time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock reads the wall clock. The monotonic reading is stripped so that
// Sub measures wall time across suspend.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().Round(0) }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{inner: time.NewTicker(d)}
}

type realTicker struct {
	inner *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.inner.C }
func (t *realTicker) Stop()               { t.inner.Stop() }
