package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/justyntemme/explorer/internal/config"
	"github.com/justyntemme/explorer/internal/debug"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	noColor    bool

	cfgManager = config.NewManager()
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explorer",
		Short: "Browse storage volumes and manage the installed-app registry",
		Long: `explorer is a terminal storage browser.

It navigates directories across every mounted storage volume, filters the
current listing or whole subtrees, keeps a multi-selection and marks
package files that belong to installed apps.

Examples:
  # Browse from the configured start directory
  explorer browse

  # Browse from a specific directory
  explorer browse /mnt/sdcard

  # Register an installed app so its package file is marked
  explorer apps add com.example.game ~/Downloads/game.apk --name Game

  # Show detected storage volumes
  explorer drives`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			if err := cfgManager.Load(configPath); err != nil {
				return err
			}
			cfg := cfgManager.Get()
			dev := cfg.Log.Development || verbose
			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			if err := debug.Init(level, dev); err != nil {
				return err
			}
			if err := cfgManager.ParseError(); err != nil {
				fmt.Fprintf(os.Stderr, "%s %s: %v (using defaults)\n",
					color.YellowString("warning:"), cfgManager.Path(), err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/explorer/config.toml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to the console")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		NewBrowseCmd(),
		NewAppsCmd(),
		NewDrivesCmd(),
		NewCompletionCmd(),
	)
	return cmd
}
