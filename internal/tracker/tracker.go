package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
)

// Probe reports the current power source. Implementations must return
// FailSafe instead of blocking or failing.
type Probe interface {
	Read(ctx context.Context) Reading
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) Reading

func (f ProbeFunc) Read(ctx context.Context) Reading { return f(ctx) }

// EventType identifies a tracker update.
type EventType string

const (
	EventTick        EventType = "tick"
	EventPowerChange EventType = "power_change"
	EventSleep       EventType = "sleep"
	EventWake        EventType = "wake"
	EventSessionEnd  EventType = "session_end"
)

// Event is published to subscribers after every state change.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	Session  *Session
	At       time.Time
}

// Options configures a Tracker.
type Options struct {
	Clock   Clock
	Probe   Probe
	Policy  ResetPolicy
	Initial Durations
	Logger  *slog.Logger
}

// Tracker converts ticks, probe readings and sleep edges into accumulated
// durations. All methods are safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	clock  Clock
	probe  Probe
	policy ResetPolicy

	tickLog  *slog.Logger
	powerLog *slog.Logger

	power          PowerState
	sleep          SleepState
	durations      Durations
	reading        Reading
	lastTick       time.Time
	started        time.Time
	unpluggedSince time.Time
	sessionBase    float64
	ended          []Session

	events []chan Event
}

// New creates a Tracker seeded with previously persisted durations. Until the
// first tick the loaded counters are assumed to belong to an unplugged
// session, so a first classification of ChargingOrPlugged is a plug-in edge.
func New(opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Probe == nil {
		opts.Probe = ProbeFunc(func(context.Context) Reading { return FailSafe })
	}
	if opts.Policy == "" {
		opts.Policy = ResetOnPlugEdge
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	initial := opts.Initial
	if initial.ScreenOnTime < 0 {
		initial.ScreenOnTime = 0
	}
	if initial.TotalUptime < 0 {
		initial.TotalUptime = 0
	}

	now := opts.Clock.Now()
	return &Tracker{
		clock:     opts.Clock,
		probe:     opts.Probe,
		policy:    opts.Policy,
		tickLog:   opts.Logger.With("topic", logging.TopicTick),
		powerLog:  opts.Logger.With("topic", logging.TopicPower),
		power:     Unplugged,
		sleep:     Awake,
		durations: initial,
		reading:   FailSafe,
		lastTick:  now,
		started:   now,
	}
}

// Subscribe registers an observer channel. Sends never block; a full
// channel misses the event.
func (t *Tracker) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	t.mu.Lock()
	t.events = append(t.events, ch)
	t.mu.Unlock()
	return ch
}

// Close closes every subscriber channel.
func (t *Tracker) Close() {
	t.mu.Lock()
	events := t.events
	t.events = nil
	t.mu.Unlock()
	for _, ch := range events {
		close(ch)
	}
}

// OnTick accounts for the time since the previous tick.
func (t *Tracker) OnTick(now time.Time) {
	// The probe is queried outside the lock; only state access is serialized.
	reading := t.probe.Read(context.Background())
	next := Classify(reading)

	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := now.Sub(t.lastTick).Seconds()
	if elapsed < 0 {
		t.tickLog.Warn("clock moved backwards, clamping elapsed", "elapsed_secs", elapsed)
		elapsed = 0
	}
	t.lastTick = now
	t.reading = reading

	prev := t.power
	t.power = next

	var ended *Session
	if prev == Unplugged && next == ChargingOrPlugged && !t.unpluggedSince.IsZero() {
		ended = &Session{
			StartTime:    t.unpluggedSince.Unix(),
			EndTime:      now.Unix(),
			ScreenOnSecs: t.durations.ScreenOnTime - t.sessionBase,
		}
		t.ended = append(t.ended, *ended)
		t.unpluggedSince = time.Time{}
	}

	if t.policy.shouldReset(prev, next) && t.durations.ScreenOnTime != 0 {
		t.powerLog.Info("screen-on time reset", "policy", string(t.policy), "from", prev.String(), "to", next.String(), "screen_on_secs", t.durations.ScreenOnTime)
		t.durations.ScreenOnTime = 0
	}
	if next == Unplugged && t.unpluggedSince.IsZero() {
		t.unpluggedSince = now
		t.sessionBase = t.durations.ScreenOnTime
	}

	t.durations.TotalUptime += elapsed
	if t.sleep == Awake && next == Unplugged {
		t.durations.ScreenOnTime += elapsed
	}

	snap := t.snapshotLocked()
	if prev != next {
		t.powerLog.Info("power state changed", "from", prev.String(), "to", next.String(),
			"on_battery", reading.OnBattery, "charging", reading.Charging)
		t.emitLocked(Event{Type: EventPowerChange, Snapshot: snap, At: now})
	}
	if ended != nil {
		t.emitLocked(Event{Type: EventSessionEnd, Snapshot: snap, Session: ended, At: now})
	}
	t.emitLocked(Event{Type: EventTick, Snapshot: snap, At: now})
}

// OnSleepBegin marks the machine asleep. Repeated calls are no-ops.
func (t *Tracker) OnSleepBegin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sleep == Asleep {
		return
	}
	t.sleep = Asleep
	t.emitLocked(Event{Type: EventSleep, Snapshot: t.snapshotLocked(), At: t.clock.Now()})
}

// OnWake marks the machine awake and restarts the elapsed-time baseline so
// the sleep interval is never credited.
func (t *Tracker) OnWake() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.sleep = Awake
	t.lastTick = now
	t.emitLocked(Event{Type: EventWake, Snapshot: t.snapshotLocked(), At: now})
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Durations returns a copy of the counters.
func (t *Tracker) Durations() Durations {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durations
}

// TakeEndedSessions removes and returns the finished unplugged sessions
// nobody has taken yet. Sessions stay queued here even when a subscriber
// misses the session_end event.
func (t *Tracker) TakeEndedSessions() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	ended := t.ended
	t.ended = nil
	return ended
}

// OpenSession returns the unplugged session in progress, ending at now.
func (t *Tracker) OpenSession(now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.power != Unplugged || t.unpluggedSince.IsZero() {
		return Session{}, false
	}
	return Session{
		StartTime:    t.unpluggedSince.Unix(),
		EndTime:      now.Unix(),
		ScreenOnSecs: t.durations.ScreenOnTime - t.sessionBase,
	}, true
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Power:          t.power,
		Sleep:          t.sleep,
		Durations:      t.durations,
		Reading:        t.reading,
		LastTick:       t.lastTick,
		Started:        t.started,
		UnpluggedSince: t.unpluggedSince,
	}
}

func (t *Tracker) emitLocked(event Event) {
	for _, ch := range t.events {
		select {
		case ch <- event:
		default:
		}
	}
}
