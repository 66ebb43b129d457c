package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prettymuchbryce/globwatch/daemon"
	"github.com/prettymuchbryce/globwatch/internal/config"
	"github.com/prettymuchbryce/globwatch/internal/pathutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var watchConfigPath string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch configured glob patterns and run actions on matching changes",
	Long: `Start a long-running process that watches every pattern in the
configuration file and runs its action whenever a matching file is created,
modified, or removed.

Supports graceful shutdown on SIGINT/SIGTERM, config reload via
"globwatch reload", and an optional periodic rescan to pick up directories
created after a glob pattern was registered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var configPath string
		var err error

		if cmd.Flags().Changed("config") {
			configPath = pathutil.ExpandTilde(watchConfigPath)
		} else {
			configPath, err = config.EnsureDefaultConfig(watchConfigPath)
			if err != nil {
				return err
			}
		}

		return daemon.Run(ctx, configPath, afero.NewOsFs(), SetupLogging)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchConfigPath, "config", "c", pathutil.MustDefaultConfigPath(), "path to config file")
	rootCmd.AddCommand(watchCmd)
}
