package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dbussvc "github.com/cptspacemanspiff/screentime-monitor/internal/dbus"
	"github.com/cptspacemanspiff/screentime-monitor/internal/status"
)

var (
	statusJSON     bool
	statusSessions int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's counters",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw snapshot as JSON")
	statusCmd.Flags().IntVar(&statusSessions, "sessions", 0, "also list unplugged sessions from the last N days")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	client, err := dbussvc.NewClient()
	if err != nil {
		return err
	}
	snap, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("is screentime-monitor running? %w", err)
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	fmt.Fprint(out, status.Report(snap, time.Local))

	if statusSessions <= 0 {
		return nil
	}
	now := time.Now()
	from := now.AddDate(0, 0, -statusSessions).Unix()
	sessions, err := client.Sessions(ctx, from, now.Unix())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No unplugged sessions.")
		return nil
	}
	fmt.Fprintln(out, "Sessions:")
	for _, s := range sessions {
		start := time.Unix(s.StartTime, 0).Local().Format("2006-01-02 15:04")
		end := time.Unix(s.EndTime, 0).Local().Format("15:04")
		fmt.Fprintf(out, "  %s - %s  screen on %s\n", start, end, status.FormatDuration(s.ScreenOn()))
	}
	return nil
}

