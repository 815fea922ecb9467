package collector

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

const (
	upowerDest          = "org.freedesktop.UPower"
	upowerPath          = "/org/freedesktop/UPower"
	upowerDisplayDevice = "/org/freedesktop/UPower/devices/DisplayDevice"
	upowerDeviceIface   = "org.freedesktop.UPower.Device"
	propertiesGet       = "org.freedesktop.DBus.Properties.Get"
)

// UPower device states, from the org.freedesktop.UPower.Device State property.
const (
	upowerStateUnknown uint32 = iota
	upowerStateCharging
	upowerStateDischarging
	upowerStateEmpty
	upowerStateFullyCharged
	upowerStatePendingCharge
	upowerStatePendingDischarge
)

// UPowerProbe reads OnBattery and the display device state from UPower on the system bus.
type UPowerProbe struct {
	conn *dbus.Conn
}

// NewUPowerProbe connects to the system bus.
func NewUPowerProbe() (*UPowerProbe, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &UPowerProbe{conn: conn}, nil
}

func (p *UPowerProbe) Name() string { return "upower" }

func (p *UPowerProbe) PowerStatus(ctx context.Context) (tracker.Reading, error) {
	var onBattery dbus.Variant
	err := p.conn.Object(upowerDest, upowerPath).
		CallWithContext(ctx, propertiesGet, 0, upowerDest, "OnBattery").
		Store(&onBattery)
	if err != nil {
		return tracker.Reading{}, fmt.Errorf("get OnBattery: %w", err)
	}
	var state dbus.Variant
	err = p.conn.Object(upowerDest, upowerDisplayDevice).
		CallWithContext(ctx, propertiesGet, 0, upowerDeviceIface, "State").
		Store(&state)
	if err != nil {
		return tracker.Reading{}, fmt.Errorf("get display device State: %w", err)
	}
	return upowerReading(onBattery.Value(), state.Value())
}

func upowerReading(onBattery, state any) (tracker.Reading, error) {
	b, ok := onBattery.(bool)
	if !ok {
		return tracker.Reading{}, fmt.Errorf("OnBattery has type %T, want bool", onBattery)
	}
	s, ok := state.(uint32)
	if !ok {
		return tracker.Reading{}, fmt.Errorf("State has type %T, want uint32", state)
	}
	return tracker.Reading{
		OnBattery: b,
		Charging:  s == upowerStateCharging || s == upowerStatePendingCharge,
	}, nil
}
