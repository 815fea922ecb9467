package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

var (
	// ErrNoBattery is returned when the host reports no battery.
	ErrNoBattery = errors.New("no battery found")
	// ErrProbeTimeout is returned when a source does not answer within the probe timeout.
	ErrProbeTimeout = errors.New("power probe timed out")
)

// Source reads the raw power status of the host.
type Source interface {
	Name() string
	PowerStatus(ctx context.Context) (tracker.Reading, error)
}

// Chain tries each source in order and returns the first successful reading.
type Chain []Source

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c Chain) PowerStatus(ctx context.Context) (tracker.Reading, error) {
	var errs []error
	for _, s := range c {
		r, err := s.PowerStatus(ctx)
		if err == nil {
			return r, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return tracker.Reading{}, fmt.Errorf("no power sources configured")
	}
	return tracker.Reading{}, errors.Join(errs...)
}

// NewSource builds the source named by the collection.probe setting.
func NewSource(name string, logger *slog.Logger) (Source, error) {
	switch name {
	case "upower":
		return NewUPowerProbe()
	case "sysfs":
		return SysfsProbe{}, nil
	case "battery":
		return BatteryProbe{}, nil
	case "", "auto":
		var chain Chain
		if up, err := NewUPowerProbe(); err == nil {
			chain = append(chain, up)
		} else {
			logger.With("topic", logging.TopicPower).Warn("upower probe unavailable", "err", err)
		}
		return append(chain, SysfsProbe{}, BatteryProbe{}), nil
	}
	return nil, fmt.Errorf("unknown power probe %q", name)
}

// SafeProbe adapts a Source to tracker.Probe: it bounds every read by a
// timeout and substitutes tracker.FailSafe for any failure.
type SafeProbe struct {
	source  Source
	timeout time.Duration
	log     *slog.Logger
}

// NewSafeProbe wraps source. A non-positive timeout defaults to 500ms.
func NewSafeProbe(source Source, timeout time.Duration, logger *slog.Logger) *SafeProbe {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SafeProbe{source: source, timeout: timeout, log: logger.With("topic", logging.TopicPower)}
}

type probeResult struct {
	reading tracker.Reading
	err     error
}

func (p *SafeProbe) Read(ctx context.Context) tracker.Reading {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Buffered so a source that ignores ctx can finish without leaking the goroutine forever.
	ch := make(chan probeResult, 1)
	go func() {
		r, err := p.source.PowerStatus(ctx)
		ch <- probeResult{r, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			p.log.Debug("probe failed, assuming plugged in", "source", p.source.Name(), "err", res.err)
			return tracker.FailSafe
		}
		return res.reading
	case <-ctx.Done():
		p.log.Debug("probe failed, assuming plugged in", "source", p.source.Name(), "err", ErrProbeTimeout)
		return tracker.FailSafe
	}
}
