package config

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/prettymuchbryce/globwatch/internal/action"
	"github.com/prettymuchbryce/globwatch/internal/pathutil"
)

// WatchEntry binds one glob pattern to the action run for every event it
// yields.
type WatchEntry struct {
	Pattern string      `yaml:"pattern"`
	Action  action.Shell `yaml:"action"`
}

// Config represents the top-level configuration.
type Config struct {
	Watches []WatchEntry  `yaml:"watches"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

// DaemonConfig represents daemon-specific configuration.
type DaemonConfig struct {
	// IdleInterval is parsed and logged at startup. The daemon starts its
	// watcher with idle sentinels disabled, so this value does not change
	// how often Listen yields one.
	IdleInterval time.Duration `yaml:"idle_interval"`
	// RescanCron, if set, is a cron expression on which the daemon
	// reconciles the watch graph against the filesystem as a
	// belt-and-suspenders measure against missed kernel events.
	RescanCron string `yaml:"rescan_cron"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultDaemonConfig returns the default daemon configuration.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		IdleInterval: 1 * time.Second,
	}
}

// DefaultLoggingConfig returns the default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: "warn",
	}
}

// Load reads and parses a configuration file using the real filesystem.
func Load(path string) (*Config, error) {
	return LoadWithFs(path, afero.NewOsFs())
}

// LoadWithFs reads and parses a configuration file using the provided
// filesystem. Note: this fs is only used to read the config file itself; the
// watch manager observes whatever filesystem the caller wires it to
// separately.
func LoadWithFs(path string, afs afero.Fs) (*Config, error) {
	expanded := pathutil.ExpandTilde(path)

	data, err := afero.ReadFile(afs, expanded)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Daemon:  DefaultDaemonConfig(),
		Logging: DefaultLoggingConfig(),
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate rejects a config with no pattern on a watch entry; an empty
// pattern would register against the glob analyzer as a literal empty
// string and never match anything, silently doing nothing.
func (c *Config) validate() error {
	for i, w := range c.Watches {
		if w.Pattern == "" {
			return fmt.Errorf("watch entry %d: pattern must not be empty", i)
		}
	}
	return nil
}
