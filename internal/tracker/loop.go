package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
)

// ErrLoopRunning is returned when Run is called on a loop that is already running.
var ErrLoopRunning = errors.New("tracker loop already running")

// EdgeKind identifies an asynchronous sleep/wake notification.
type EdgeKind int

const (
	EdgeSleepBegin EdgeKind = iota
	EdgeWake
)

func (k EdgeKind) String() string {
	if k == EdgeSleepBegin {
		return "sleep"
	}
	return "wake"
}

// Edge is one sleep/wake notification. Ack, when set, is called once the
// edge has been applied and the resulting state has been persisted.
type Edge struct {
	Kind EdgeKind
	Ack  func()
}

// CheckpointSink persists durations off the loop goroutine. ack may be nil.
type CheckpointSink interface {
	Checkpoint(d Durations, ack func())
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	Interval           time.Duration
	JumpThreshold      time.Duration
	CheckpointInterval time.Duration
}

// Loop is the single consumer that serializes ticks and edges into a Tracker.
type Loop struct {
	tracker *Tracker
	clock   Clock
	sink    CheckpointSink
	cfg     LoopConfig
	log     *slog.Logger
	running atomic.Bool
}

// NewLoop creates a loop driving tracker. sink may be nil.
func NewLoop(tracker *Tracker, clock Clock, sink CheckpointSink, cfg LoopConfig, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{tracker: tracker, clock: clock, sink: sink, cfg: cfg, log: logger.With("topic", logging.TopicSleep)}
}

// Run ticks the tracker and applies edges until ctx is cancelled. A closed
// edges channel is ignored; ticking continues.
func (l *Loop) Run(ctx context.Context, edges <-chan Edge) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	ticker := l.clock.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	var checkpointC <-chan time.Time
	if l.cfg.CheckpointInterval > 0 && l.sink != nil {
		ct := l.clock.NewTicker(l.cfg.CheckpointInterval)
		defer ct.Stop()
		checkpointC = ct.C()
	}

	lastTick := l.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			now := l.clock.Now()
			if gap := now.Sub(lastTick); l.cfg.JumpThreshold > 0 && gap > l.cfg.JumpThreshold {
				// No wake edge covered this gap: treat it as a missed suspend.
				l.log.Info("wall-clock jump detected, discarding gap", "gap_secs", int(gap.Seconds()))
				l.tracker.OnWake()
				now = l.clock.Now()
			}
			lastTick = now
			l.tracker.OnTick(now)
		case edge, ok := <-edges:
			if !ok {
				edges = nil
				continue
			}
			switch edge.Kind {
			case EdgeSleepBegin:
				l.log.Info("sleep edge")
				l.tracker.OnSleepBegin()
			case EdgeWake:
				l.log.Info("wake edge")
				l.tracker.OnWake()
				lastTick = l.clock.Now()
			}
			l.checkpoint(edge.Ack)
		case <-checkpointC:
			l.checkpoint(nil)
		}
	}
}

func (l *Loop) checkpoint(ack func()) {
	if l.sink == nil {
		if ack != nil {
			ack()
		}
		return
	}
	l.sink.Checkpoint(l.tracker.Durations(), ack)
}
