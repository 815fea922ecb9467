package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/cptspacemanspiff/screentime-monitor/internal/config"
	"github.com/cptspacemanspiff/screentime-monitor/internal/storage"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// endedSessions is the tracker's queue of finished unplugged sessions.
type endedSessions interface {
	TakeEndedSessions() []tracker.Session
}

// recordSessions persists finished unplugged sessions as they end. Events only
// wake it up; the sessions themselves come from the tracker's queue, so a
// missed event or a cancel right after plug-in loses nothing.
func recordSessions(ctx context.Context, events <-chan tracker.Event, ended endedSessions, sessions storage.SessionStore, log *slog.Logger) {
	for {
		select {
		case _, ok := <-events:
			flushSessions(ended, sessions, log)
			if !ok {
				return
			}
		case <-ctx.Done():
			flushSessions(ended, sessions, log)
			return
		}
	}
}

func flushSessions(ended endedSessions, sessions storage.SessionStore, log *slog.Logger) {
	for _, s := range ended.TakeEndedSessions() {
		if err := sessions.InsertSession(s); err != nil {
			log.Warn("record session", "start", s.StartTime, "err", err)
			continue
		}
		log.Info("session recorded", "start", s.StartTime, "end", s.EndTime, "screen_on_secs", s.ScreenOnSecs)
	}
}

// runCleanup prunes sessions older than the retention window, once at
// startup and then every cleanup interval.
func runCleanup(ctx context.Context, sessions storage.SessionStore, cfg config.CleanupConfig, log *slog.Logger) {
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	prune := func() {
		cutoff := time.Now().Add(-retention).Unix()
		n, err := sessions.DeleteOlderThan(cutoff)
		if err != nil {
			log.Warn("session cleanup failed", "err", err)
			return
		}
		if n > 0 {
			log.Info("pruned old sessions", "deleted", n, "cutoff", cutoff)
		}
	}

	prune()
	ticker := time.NewTicker(time.Duration(cfg.IntervalHours) * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			prune()
		case <-ctx.Done():
			return
		}
	}
}
