package tracker

import "fmt"

// ResetPolicy selects when ScreenOnTime is zeroed.
type ResetPolicy string

const (
	// ResetOnPlugEdge zeroes the counter once, on the Unplugged -> ChargingOrPlugged transition.
	ResetOnPlugEdge ResetPolicy = "plug-edge"
	// ResetWhilePlugged zeroes the counter on every tick classified ChargingOrPlugged.
	ResetWhilePlugged ResetPolicy = "while-plugged"
	// ResetOnUnplugEdge zeroes the counter on the ChargingOrPlugged -> Unplugged transition.
	ResetOnUnplugEdge ResetPolicy = "unplug-edge"
)

// ParseResetPolicy validates a policy name. The empty string selects ResetOnPlugEdge.
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch p := ResetPolicy(s); p {
	case "":
		return ResetOnPlugEdge, nil
	case ResetOnPlugEdge, ResetWhilePlugged, ResetOnUnplugEdge:
		return p, nil
	}
	return "", fmt.Errorf("unknown reset policy %q", s)
}

// shouldReset reports whether the counter is zeroed for a tick moving from prev to next.
func (p ResetPolicy) shouldReset(prev, next PowerState) bool {
	switch p {
	case ResetWhilePlugged:
		return next == ChargingOrPlugged
	case ResetOnUnplugEdge:
		return prev == ChargingOrPlugged && next == Unplugged
	default:
		return prev == Unplugged && next == ChargingOrPlugged
	}
}
