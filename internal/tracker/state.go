package tracker

import (
	"fmt"
	"time"
)

// PowerState is the collapsed power-source classification of a probe reading.
type PowerState int

const (
	ChargingOrPlugged PowerState = iota
	Unplugged
)

func (s PowerState) String() string {
	switch s {
	case Unplugged:
		return "unplugged"
	case ChargingOrPlugged:
		return "charging_or_plugged"
	}
	return fmt.Sprintf("PowerState(%d)", int(s))
}

func (s PowerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PowerState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unplugged":
		*s = Unplugged
	case "charging_or_plugged":
		*s = ChargingOrPlugged
	default:
		return fmt.Errorf("unknown power state %q", text)
	}
	return nil
}

// SleepState reports whether the machine is between a sleep and a wake edge.
type SleepState int

const (
	Awake SleepState = iota
	Asleep
)

func (s SleepState) String() string {
	switch s {
	case Awake:
		return "awake"
	case Asleep:
		return "asleep"
	}
	return fmt.Sprintf("SleepState(%d)", int(s))
}

func (s SleepState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SleepState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "awake":
		*s = Awake
	case "asleep":
		*s = Asleep
	default:
		return fmt.Errorf("unknown sleep state %q", text)
	}
	return nil
}

// Reading is the raw result of a power-source probe.
type Reading struct {
	OnBattery bool `json:"on_battery"`
	Charging  bool `json:"charging"`
}

// FailSafe is the reading used whenever the power source cannot be determined.
// It classifies as ChargingOrPlugged so unplugged time is never overcounted.
var FailSafe = Reading{OnBattery: false, Charging: true}

// Classify collapses a reading into a PowerState.
func Classify(r Reading) PowerState {
	if r.OnBattery && !r.Charging {
		return Unplugged
	}
	return ChargingOrPlugged
}

// Durations holds the persisted counters, in seconds.
type Durations struct {
	ScreenOnTime float64 `json:"screen_on_time" yaml:"screenOnTime"`
	TotalUptime  float64 `json:"total_uptime" yaml:"totalUptime"`
}

// ScreenOn returns ScreenOnTime as a time.Duration.
func (d Durations) ScreenOn() time.Duration {
	return secondsToDuration(d.ScreenOnTime)
}

// Uptime returns TotalUptime as a time.Duration.
func (d Durations) Uptime() time.Duration {
	return secondsToDuration(d.TotalUptime)
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// Session is one contiguous unplugged period.
type Session struct {
	StartTime    int64   `json:"start_time"`
	EndTime      int64   `json:"end_time"`
	ScreenOnSecs float64 `json:"screen_on_secs"`
}

// ScreenOn returns ScreenOnSecs as a time.Duration.
func (s Session) ScreenOn() time.Duration {
	return secondsToDuration(s.ScreenOnSecs)
}

// Snapshot is a read-only copy of the tracker state.
type Snapshot struct {
	Power          PowerState `json:"power"`
	Sleep          SleepState `json:"sleep"`
	Durations      Durations  `json:"durations"`
	Reading        Reading    `json:"reading"`
	LastTick       time.Time  `json:"last_tick"`
	Started        time.Time  `json:"started"`
	UnpluggedSince time.Time  `json:"unplugged_since"`
}
