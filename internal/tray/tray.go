// Package tray shows the screen-on time in the desktop status area.
package tray

import (
	"context"
	_ "embed"
	"log/slog"
	"time"

	"fyne.io/systray"

	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
	"github.com/cptspacemanspiff/screentime-monitor/internal/status"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

//go:embed icon.png
var icon []byte

// view is everything the indicator displays for one snapshot.
type view struct {
	Title     string
	ScreenOn  string
	Uptime    string
	Unplugged string // empty hides the item
}

func render(s tracker.Snapshot, loc *time.Location) view {
	return view{
		Title:     status.Title(s),
		ScreenOn:  status.ScreenOnLine(s),
		Uptime:    status.UptimeLine(s),
		Unplugged: status.UnpluggedLine(s, loc),
	}
}

// Indicator owns the tray menu.
type Indicator struct {
	log    *slog.Logger
	loc    *time.Location
	onQuit func()

	screenOn  *systray.MenuItem
	uptime    *systray.MenuItem
	unplugged *systray.MenuItem
	quit      *systray.MenuItem
	last      view
}

// New creates an indicator. onQuit runs when the user picks "Quit".
func New(onQuit func(), logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicator{log: logger.With("topic", logging.TopicTray), loc: time.Local, onQuit: onQuit}
}

// Run shows the indicator and blocks until ctx is cancelled. It must be
// called from the main goroutine. initial is rendered before the first
// event arrives.
func (ind *Indicator) Run(ctx context.Context, initial tracker.Snapshot, events <-chan tracker.Event) {
	systray.Run(func() {
		ind.setup(initial)
		go ind.loop(ctx, events)
	}, func() {
		ind.log.Debug("tray exited")
	})
}

func (ind *Indicator) setup(initial tracker.Snapshot) {
	systray.SetIcon(icon)
	systray.SetTooltip("Screen time on battery")

	v := render(initial, ind.loc)
	systray.SetTitle(v.Title)
	ind.screenOn = systray.AddMenuItem(v.ScreenOn, "")
	ind.screenOn.Disable()
	ind.uptime = systray.AddMenuItem(v.Uptime, "")
	ind.uptime.Disable()
	ind.unplugged = systray.AddMenuItem(v.Unplugged, "")
	ind.unplugged.Disable()
	if v.Unplugged == "" {
		ind.unplugged.Hide()
	}
	systray.AddSeparator()
	ind.quit = systray.AddMenuItem("Quit", "Quit screentime-monitor")
	ind.last = v
}

func (ind *Indicator) loop(ctx context.Context, events <-chan tracker.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			ind.apply(render(ev.Snapshot, ind.loc))
		case <-ind.quit.ClickedCh:
			ind.log.Info("quit requested from tray")
			if ind.onQuit != nil {
				ind.onQuit()
			}
		case <-ctx.Done():
			systray.Quit()
			return
		}
	}
}

// apply pushes only the parts of v that changed.
func (ind *Indicator) apply(v view) {
	if v.Title != ind.last.Title {
		systray.SetTitle(v.Title)
	}
	if v.ScreenOn != ind.last.ScreenOn {
		ind.screenOn.SetTitle(v.ScreenOn)
	}
	if v.Uptime != ind.last.Uptime {
		ind.uptime.SetTitle(v.Uptime)
	}
	if v.Unplugged != ind.last.Unplugged {
		if v.Unplugged == "" {
			ind.unplugged.Hide()
		} else {
			ind.unplugged.SetTitle(v.Unplugged)
			ind.unplugged.Show()
		}
	}
	ind.last = v
}
