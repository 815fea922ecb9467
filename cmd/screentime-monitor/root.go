package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cptspacemanspiff/screentime-monitor/internal/config"
	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
)

var (
	configPath string
	verbose    bool
	logTopics  string
)

var rootCmd = &cobra.Command{
	Use:   "screentime-monitor",
	Short: "Track screen-on time while running on battery",
	Long: "Runs in the background and accumulates how long the display has been awake\n" +
		"while unplugged, resetting the counter whenever external power is connected.",
	SilenceUsage: true,
	RunE:         runDaemon,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/screentime-monitor/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable all verbose logging (equivalent to --log=all)")
	rootCmd.PersistentFlags().StringVar(&logTopics, "log", "", "comma-separated log topics: tick,power,sleep,storage,dbus,tray (or 'all')")

	// run is also the default action, so both accept its flags.
	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().BoolVar(&noTray, "no-tray", false, "run headless even if ui.tray is enabled")
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(configCmd)
}

func newLogger() *slog.Logger {
	return logging.New(os.Stderr, logging.ParseTopics(logTopics, verbose))
}

// loadConfig reads --config, or the default path where a missing file means defaults.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		return cfg, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return config.NormalizeAndValidate(config.DefaultConfig())
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
