package cmd

import (
	"fmt"

	"github.com/prettymuchbryce/globwatch/internal/config"
	"github.com/prettymuchbryce/globwatch/internal/pathutil"
	"github.com/spf13/cobra"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a configuration file without starting the watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := pathutil.ExpandTilde(validateConfigPath)

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("%s is invalid: %w", configPath, err)
		}

		fmt.Printf("%s is valid (%d watch patterns)\n", configPath, cfg.CountWatches())
		for _, w := range cfg.Watches {
			fmt.Printf("  %s\n", w.Pattern)
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", pathutil.MustDefaultConfigPath(), "path to config file")
	rootCmd.AddCommand(validateCmd)
}
