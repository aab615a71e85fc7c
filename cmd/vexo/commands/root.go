// Package commands implements the vexo CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vexolabs/vexo/cmd/vexo/internal/config"
)

var (
	// Global flags
	verbose   bool
	configDir string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vexo",
	Short: "Self-hosted music playback agent for group sessions",
	Long: `vexo - a music playback agent that learns what a room wants to hear.

Every listener gets a taste vector that moves with their votes. When a
track is needed, the listeners' vectors are blended (the person who
asked counts a little extra), candidates are scored by similarity, and
one is drawn. The next track is resolved and buffered ahead of time so
playback never goes silent between songs.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/vexo/
  Linux:   ~/.config/vexo/
  Windows: %AppData%/vexo/

Examples:
  # Initialize configuration, then start the agent for a guild
  vexo config init
  vexo run --guild lounge --listeners alice,bob

  # Record reactions and inspect what they did to the next pick
  vexo vote t123 --listener alice --kind like
  vexo trace --guild lounge --listener alice`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default: OS config dir)")
}

// configLoadErr stores the error from config.Load() for deferred
// reporting, so commands like 'vexo version' still work without one.
var configLoadErr error

func initConfig() {
	var (
		cfg *config.Config
		err error
	)
	if configDir != "" {
		cfg, err = config.LoadFrom(configDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration, or the deferred load
// error.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose reports whether --verbose was set.
func IsVerbose() bool { return verbose }
