package collector

import (
	"context"
	"fmt"

	"github.com/distatus/battery"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// batteryGetAll is replaced in tests.
var batteryGetAll = battery.GetAll

// BatteryProbe uses the platform battery APIs (sysfs, IOKit, WMI) through
// github.com/distatus/battery. It is the only probe available off Linux.
type BatteryProbe struct{}

func (BatteryProbe) Name() string { return "battery" }

func (BatteryProbe) PowerStatus(ctx context.Context) (tracker.Reading, error) {
	batteries, err := batteryGetAll()
	for _, b := range batteries {
		if b == nil {
			continue
		}
		return readingFromState(b.State.String())
	}
	if err != nil {
		return tracker.Reading{}, fmt.Errorf("read batteries: %w", err)
	}
	return tracker.Reading{}, ErrNoBattery
}

// readingFromState maps a battery state name onto a reading. Only
// "Discharging" and "Empty" mean running on battery; "Idle" and "Full" imply
// external power that is not charging.
func readingFromState(state string) (tracker.Reading, error) {
	switch state {
	case "Charging":
		return tracker.Reading{OnBattery: false, Charging: true}, nil
	case "Discharging", "Empty":
		return tracker.Reading{OnBattery: true, Charging: false}, nil
	case "Full", "Idle", "Not charging":
		return tracker.Reading{OnBattery: false, Charging: false}, nil
	}
	return tracker.Reading{}, fmt.Errorf("ambiguous battery state %q", state)
}
