package daemon

import (
	"fmt"
	"log/slog"

	"github.com/prettymuchbryce/globwatch/internal/config"
	"github.com/prettymuchbryce/globwatch/internal/ipc"
)

// HandleReload reloads the configuration file and restarts the watcher with
// the new set of patterns.
func (c *Controller) HandleReload() (ipc.ReloadResult, error) {
	cfg, err := config.LoadWithFs(c.configPath, c.fs)
	if err != nil {
		return ipc.ReloadResult{}, fmt.Errorf("failed to load config: %w", err)
	}

	c.stopRescanCron()
	c.StopWatcher()

	c.mu.Lock()
	c.watches = cfg.Watches
	c.mu.Unlock()

	if err := c.StartWatcher(); err != nil {
		return ipc.ReloadResult{}, fmt.Errorf("failed to restart watcher: %w", err)
	}

	if cfg.Daemon.RescanCron != "" {
		if err := c.startRescanCron(cfg.Daemon.RescanCron); err != nil {
			return ipc.ReloadResult{}, err
		}
	}

	slog.Info("reloaded config", "path", c.configPath, "watches", cfg.CountWatches())

	if cfg.CountWatches() == 0 {
		slog.Warn("no watch patterns found in config", "path", c.configPath)
	}

	return ipc.ReloadResult{ConfigPath: c.configPath, WatchCount: cfg.CountWatches()}, nil
}
