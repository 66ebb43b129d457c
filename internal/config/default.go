package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prettymuchbryce/globwatch/internal/pathutil"
)

//go:embed config-example.yaml
var defaultConfigContent string

// EnsureDefaultConfig creates the default config file if it doesn't exist.
// Returns the expanded path and any error encountered.
func EnsureDefaultConfig(configPath string) (string, error) {
	expanded := pathutil.ExpandTilde(configPath)

	if _, err := os.Stat(expanded); err == nil {
		return expanded, nil
	}

	dir := filepath.Dir(expanded)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	if err := os.WriteFile(expanded, []byte(defaultConfigContent), 0644); err != nil {
		return "", fmt.Errorf("failed to create default config %s: %w", expanded, err)
	}

	slog.Info("created default config", "path", expanded)
	return expanded, nil
}

// CountWatches returns the number of watch entries in the config.
func (c *Config) CountWatches() int {
	return len(c.Watches)
}

// IsDefaultConfig checks if the file at the given path matches the default
// config.
func IsDefaultConfig(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return string(content) == defaultConfigContent
}
