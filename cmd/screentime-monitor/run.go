package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cptspacemanspiff/screentime-monitor/internal/collector"
	"github.com/cptspacemanspiff/screentime-monitor/internal/config"
	dbussvc "github.com/cptspacemanspiff/screentime-monitor/internal/dbus"
	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
	"github.com/cptspacemanspiff/screentime-monitor/internal/storage"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tray"
)

var noTray bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracker (default)",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		return err
	}

	storageLog := logger.With("topic", logging.TopicStorage)

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		logger.Error("open storage", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path, "err", err)
		return err
	}
	defer store.Close()

	initial, err := store.Load()
	if err != nil {
		storageLog.Warn("load counters failed, starting from zero", "err", err)
		initial = tracker.Durations{}
	}
	logger.Info("loaded counters", "backend", cfg.Storage.Backend,
		"screen_on_secs", initial.ScreenOnTime, "uptime_secs", initial.TotalUptime)

	source, err := collector.NewSource(cfg.Collection.Probe, logger)
	if err != nil {
		return err
	}
	interval := time.Duration(cfg.Collection.IntervalSeconds) * time.Second
	probe := collector.NewSafeProbe(source, probeTimeout(cfg, interval), logger)
	policy, err := tracker.ParseResetPolicy(cfg.Tracker.ResetPolicy)
	if err != nil {
		return err
	}

	clock := tracker.RealClock{}
	tr := tracker.New(tracker.Options{
		Clock:   clock,
		Probe:   probe,
		Policy:  policy,
		Initial: initial,
		Logger:  logger,
	})
	defer tr.Close()

	sessions, _ := store.(storage.SessionStore)

	svc := dbussvc.NewService(tr, sessions)
	conn, err := svc.Export()
	switch {
	case errors.Is(err, dbussvc.ErrNameTaken):
		logger.Error("another screentime-monitor is already running", "name", dbussvc.BusName)
		return err
	case err != nil:
		logger.With("topic", logging.TopicDBus).Warn("D-Bus service unavailable", "err", err)
	default:
		defer conn.Close()
		logger.Info("D-Bus service registered", "name", dbussvc.BusName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var edges <-chan tracker.Edge
	sleepMon, err := collector.NewSleepMonitor(logger)
	if err != nil {
		logger.Warn("sleep monitor unavailable, relying on wall-clock jump detection", "err", err)
	} else {
		edges = sleepMon.Edges()
		defer sleepMon.Close()
	}

	checkpointer := storage.NewCheckpointer(store, logger)
	loop := tracker.NewLoop(tr, clock, checkpointer, tracker.LoopConfig{
		Interval:           interval,
		JumpThreshold:      time.Duration(cfg.Collection.WallClockJumpThresholdSeconds) * time.Second,
		CheckpointInterval: time.Duration(cfg.Storage.CheckpointIntervalSeconds) * time.Second,
	}, logger)

	workers := make(chan struct{})
	workerCount := 0
	if sessions != nil {
		workerCount = 2
		go func() { recordSessions(ctx, tr.Subscribe(16), tr, sessions, storageLog); workers <- struct{}{} }()
		go func() { runCleanup(ctx, sessions, cfg.Cleanup, storageLog); workers <- struct{}{} }()
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx, edges) }()

	logger.Info("screentime-monitor started", "interval", interval, "probe", source.Name(), "reset_policy", policy)

	if cfg.UI.Tray && !noTray {
		indicator := tray.New(stop, logger)
		indicator.Run(ctx, tr.Snapshot(), tr.Subscribe(4))
	} else {
		<-ctx.Done()
	}
	stop()

	logger.Info("shutting down")
	if err := <-loopDone; err != nil {
		logger.Error("tracker loop", "err", err)
	}
	checkpointer.Close()
	for i := 0; i < workerCount; i++ {
		<-workers
	}

	shutdown(tr, store, sessions, time.Now(), storageLog)
	return nil
}

// shutdown records any sessions still queued plus the open one, then performs
// the final synchronous save. Failures are logged only.
func shutdown(tr *tracker.Tracker, store storage.Store, sessions storage.SessionStore, now time.Time, log *slog.Logger) {
	if sessions != nil {
		flushSessions(tr, sessions, log)
		if open, ok := tr.OpenSession(now); ok {
			if err := sessions.InsertSession(open); err != nil {
				log.Warn("record open session", "err", err)
			}
		}
	}
	final := tr.Durations()
	if err := store.Save(final); err != nil {
		log.Error("final save failed", "err", err)
		return
	}
	log.Info("counters saved", "screen_on_secs", final.ScreenOnTime, "uptime_secs", final.TotalUptime)
}

// probeTimeout keeps each probe read well inside one tick.
func probeTimeout(cfg *config.Config, interval time.Duration) time.Duration {
	timeout := time.Duration(cfg.Collection.ProbeTimeoutMs) * time.Millisecond
	if limit := interval * 3 / 4; timeout > limit {
		timeout = limit
	}
	return timeout
}
