package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mittag-lab/maniplink/internal/config"
)

// Global flag values shared by all commands.
var (
	configPath string
	flagHost   string
	flagPort   int
	flagLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "maniplink",
	Short: "Dual micromanipulator control engine",
	Long:  "maniplink drives a two-manipulator motion platform over its TCP control protocol: jog steps, position reports, and planned trajectory execution.",
}

// loadConfig reads the config file and layers command line overrides on top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if flagHost != "" {
		cfg.Controller.Host = flagHost
	}
	if flagPort != 0 {
		cfg.Controller.Port = flagPort
	}
	if flagLevel != "" {
		cfg.Log.Level = flagLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (overrides ~/.config/maniplink/maniplink.toml)")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "controller host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "controller port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "log-level", "", "log level: debug, info, warn, error")
}

func Execute() error {
	return rootCmd.Execute()
}
