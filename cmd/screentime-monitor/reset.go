package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dbussvc "github.com/cptspacemanspiff/screentime-monitor/internal/dbus"
	"github.com/cptspacemanspiff/screentime-monitor/internal/storage"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

var resetAll bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero the persisted counters",
	Long:  "Zeroes the saved screen-on and uptime counters. Refuses while the daemon is running.",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "delete the whole store, including the session log")
}

func runReset(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if running, err := daemonRunning(cmd.Context()); err != nil {
		logger.Debug("could not query session bus, assuming daemon is stopped", "err", err)
	} else if running {
		return errors.New("screentime-monitor is running; quit it before resetting")
	}

	if resetAll {
		if err := storage.Remove(cfg.Storage.Backend, cfg.Storage.Path); err != nil {
			return fmt.Errorf("delete store: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", cfg.Storage.Path)
		return nil
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(tracker.Durations{}); err != nil {
		return fmt.Errorf("save zero counters: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "counters reset")
	return nil
}

func daemonRunning(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	client, err := dbussvc.NewClient()
	if err != nil {
		return false, err
	}
	return client.Running(ctx)
}
