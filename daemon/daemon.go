package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prettymuchbryce/globwatch/internal/config"
	"github.com/prettymuchbryce/globwatch/internal/ipc"
	"github.com/prettymuchbryce/globwatch/internal/state"
	"github.com/prettymuchbryce/globwatch/internal/watcher"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
)

// Controller manages the daemon lifecycle and implements ipc.Handler.
// HandleStatus and HandleReload are called serially by the IPC server; mu
// guards the fields they share with the watch loop goroutine and with the
// rescan cron job, which stops and restarts the watcher on its own goroutine.
type Controller struct {
	configPath string
	fs         afero.Fs
	state      *state.State

	mu      sync.Mutex
	watches []config.WatchEntry
	ids     map[int]string // watch id -> pattern, for the lifetime of one manager

	manager            *watcher.Manager
	stopWatcher        context.CancelFunc
	chanWatcherStopped chan struct{}

	cron      *cron.Cron
	startedAt time.Time
}

// NewController creates a new daemon controller.
func NewController(configPath string, fs afero.Fs, st *state.State, watches []config.WatchEntry) *Controller {
	return &Controller{
		configPath: configPath,
		fs:         fs,
		state:      st,
		watches:    watches,
		startedAt:  time.Now(),
	}
}

// StartWatcher creates a Manager, registers every configured pattern, and
// runs the dispatch loop until StopWatcher is called.
func (c *Controller) StartWatcher() error {
	m, err := watcher.New(c.fs, watcher.WithIdleInterval(0))
	if err != nil {
		return err
	}

	ids := make(map[int]string, len(c.watches))
	for _, w := range c.watches {
		id, err := m.AddWatch(w.Pattern)
		if err != nil {
			slog.Error("failed to register watch", "pattern", w.Pattern, "error", err)
			continue
		}
		ids[id] = w.Pattern
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.manager = m
	c.ids = ids
	c.stopWatcher = cancel
	c.chanWatcherStopped = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.runLoop(ctx, m, ids)
	}()

	return nil
}

// runLoop consumes dispatched events and runs the action bound to whichever
// watch entry produced them. A nil event is an idle sentinel and is ignored.
func (c *Controller) runLoop(ctx context.Context, m *watcher.Manager, ids map[int]string) {
	runID := uuid.NewString()
	for ev := range m.Listen(ctx) {
		if ev == nil {
			continue
		}

		pattern, ok := ids[ev.ID]
		if !ok {
			continue
		}

		entry := c.entryFor(pattern)
		if entry == nil {
			continue
		}

		logger := slog.With("run_id", runID, "pattern", pattern, "path", ev.Path, "kind", ev.Kind)
		if err := entry.Action.Execute(ctx, ev.ID, *ev); err != nil {
			logger.Error("action failed", "error", err)
		}

		if err := c.state.RecordFired(pattern, time.Now()); err != nil {
			logger.Warn("failed to persist watch state", "error", err)
		}
	}
}

func (c *Controller) entryFor(pattern string) *config.WatchEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.watches {
		if c.watches[i].Pattern == pattern {
			return &c.watches[i]
		}
	}
	return nil
}

// StopWatcher stops the current manager and waits for the dispatch loop to
// finish.
func (c *Controller) StopWatcher() {
	c.mu.Lock()
	stop := c.stopWatcher
	done := c.chanWatcherStopped
	c.mu.Unlock()

	if stop == nil {
		return
	}

	stop()
	<-done

	c.mu.Lock()
	c.manager = nil
	c.stopWatcher = nil
	c.chanWatcherStopped = nil
	c.ids = nil
	c.mu.Unlock()
}

// startRescanCron runs a periodic reconcile that restarts the watcher,
// rebuilding the watch graph from scratch to pick up directories created
// after the daemon started watching a glob that didn't match anything yet.
func (c *Controller) startRescanCron(spec string) error {
	sched := cron.New()
	_, err := sched.AddFunc(spec, func() {
		slog.Info("rescan: rebuilding watch graph", "schedule", spec)
		c.StopWatcher()
		if err := c.StartWatcher(); err != nil {
			slog.Error("rescan: failed to restart watcher", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid rescan_cron schedule %q: %w", spec, err)
	}
	sched.Start()
	c.cron = sched
	return nil
}

func (c *Controller) stopRescanCron() {
	if c.cron != nil {
		c.cron.Stop()
		c.cron = nil
	}
}

// Run loads config and runs the daemon until context is cancelled.
func Run(ctx context.Context, configPath string, fs afero.Fs, setupLogging func(string)) error {
	cfg, err := config.LoadWithFs(configPath, fs)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLogging(cfg.Logging.Level)

	// Load persistent state
	st, err := state.Load()
	if err != nil {
		slog.Warn("failed to load state, starting fresh", "error", err)
		st, _ = state.LoadFrom("")
	}

	slog.Info("loaded config", "watches", cfg.CountWatches(), "idle_interval", cfg.Daemon.IdleInterval)

	if cfg.CountWatches() == 0 {
		slog.Warn("no watch patterns found in config", "path", configPath)
	}

	controller := NewController(configPath, fs, st, cfg.Watches)

	if err := controller.StartWatcher(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	if cfg.Daemon.RescanCron != "" {
		if err := controller.startRescanCron(cfg.Daemon.RescanCron); err != nil {
			controller.StopWatcher()
			return err
		}
	}

	// Start IPC server
	ipcServer, err := ipc.NewServer(controller)
	if err != nil {
		controller.stopRescanCron()
		controller.StopWatcher()
		return fmt.Errorf("failed to create IPC server: %w", err)
	}

	// Notify systemd that we're ready (no-op on non-systemd systems)
	daemon.SdNotify(false, daemon.SdNotifyReady)
	slog.Info("daemon ready")

	// Run IPC server (blocks until context cancelled)
	if err := ipcServer.Serve(ctx); err != nil {
		slog.Error("IPC server error", "error", err)
	}

	// Notify systemd that we're stopping (no-op on non-systemd systems)
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	controller.stopRescanCron()
	controller.StopWatcher()

	return nil
}
