//go:build integration

package cmd

import (
	"context"

	"github.com/prettymuchbryce/globwatch/daemon"
	"github.com/spf13/afero"
)

// RunWatch is a test helper that wraps daemon.Run with proper logging setup.
func RunWatch(ctx context.Context, configPath string, fs afero.Fs) error {
	return daemon.Run(ctx, configPath, fs, SetupLogging)
}
