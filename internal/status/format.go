// Package status renders tracker state as short human-readable strings.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

const (
	TitleCharging = "Charging..."
	TitlePlugged  = "Plugged In"
)

// FormatDuration renders whole hours and minutes, e.g. "1h 30m".
// Partial minutes are truncated and negative durations render as zero.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
}

// Title is the status indicator text for a snapshot.
func Title(s tracker.Snapshot) string {
	switch {
	case s.Power == tracker.Unplugged:
		return "Active: " + FormatDuration(s.Durations.ScreenOn())
	case s.Reading.Charging:
		return TitleCharging
	default:
		return TitlePlugged
	}
}

// ScreenOnLine is the first menu line.
func ScreenOnLine(s tracker.Snapshot) string {
	return "Screen On: " + FormatDuration(s.Durations.ScreenOn())
}

// UptimeLine reports the total observed time.
func UptimeLine(s tracker.Snapshot) string {
	return "Observed: " + FormatDuration(s.Durations.Uptime())
}

// UnpluggedLine reports when the current unplugged session began, or "" if
// the machine is on external power.
func UnpluggedLine(s tracker.Snapshot, loc *time.Location) string {
	if s.Power != tracker.Unplugged || s.UnpluggedSince.IsZero() {
		return ""
	}
	return "Unplugged since " + s.UnpluggedSince.In(loc).Format("15:04")
}

// Report is the multi-line form printed by the status command.
func Report(s tracker.Snapshot, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintln(&b, Title(s))
	fmt.Fprintln(&b, ScreenOnLine(s))
	fmt.Fprintln(&b, UptimeLine(s))
	if line := UnpluggedLine(s, loc); line != "" {
		fmt.Fprintln(&b, line)
	}
	fmt.Fprintf(&b, "State: %s, %s\n", s.Power, s.Sleep)
	return b.String()
}
