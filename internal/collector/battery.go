package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// sysfsRoot is replaced in tests.
var sysfsRoot = "/sys"

// SysfsProbe reads power status from /sys/class/power_supply.
type SysfsProbe struct{}

func (SysfsProbe) Name() string { return "sysfs" }

// PowerStatus reads the first BAT* supply and any AC adapter.
func (SysfsProbe) PowerStatus(ctx context.Context) (tracker.Reading, error) {
	matches, err := filepath.Glob(filepath.Join(sysfsRoot, "class/power_supply/BAT*"))
	if err != nil {
		return tracker.Reading{}, fmt.Errorf("glob battery: %w", err)
	}
	if len(matches) == 0 {
		return tracker.Reading{}, ErrNoBattery
	}
	if err := ctx.Err(); err != nil {
		return tracker.Reading{}, err
	}

	data, err := os.ReadFile(filepath.Join(matches[0], "uevent"))
	if err != nil {
		return tracker.Reading{}, fmt.Errorf("read uevent: %w", err)
	}
	props := parseUevent(string(data))
	status := props["POWER_SUPPLY_STATUS"]
	if status == "" {
		return tracker.Reading{}, fmt.Errorf("uevent has no POWER_SUPPLY_STATUS")
	}

	r := tracker.Reading{Charging: status == "Charging"}
	// Some firmware reports "Discharging" at full capacity while on AC power,
	// so the adapter wins when one is present.
	if online, found := acOnline(); found {
		r.OnBattery = !online
	} else {
		r.OnBattery = status == "Discharging"
	}
	return r, nil
}

// acOnline reports whether any mains adapter is online, and whether one was found at all.
func acOnline() (online, found bool) {
	var paths []string
	for _, pattern := range []string{"class/power_supply/AC*/online", "class/power_supply/ADP*/online"} {
		matches, err := filepath.Glob(filepath.Join(sysfsRoot, pattern))
		if err != nil {
			continue
		}
		paths = append(paths, matches...)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		found = true
		if strings.TrimSpace(string(data)) == "1" {
			return true, true
		}
	}
	return false, found
}

func parseUevent(data string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = v
		}
	}
	return props
}
