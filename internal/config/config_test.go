package config

import (
	"bytes"
	"testing"
	"text/template"
	"time"

	"github.com/spf13/afero"

	"github.com/prettymuchbryce/globwatch/internal/testutil"
)

func renderYAML(t *testing.T, tmpl string, data any) string {
	t.Helper()
	var buf bytes.Buffer
	template.Must(template.New("yaml").Parse(tmpl)).Execute(&buf, data)
	return buf.String()
}

func TestLoadWithFs_ValidConfig(t *testing.T) {
	configPath := testutil.Path("/", "config.yaml")
	downloadsGlob := testutil.Path("/", "home", "user", "downloads", "*")

	fs := afero.NewMemMapFs()
	configYAML := renderYAML(t, `
watches:
  - pattern: {{.DownloadsGlob}}
    action: "echo ${path}"
daemon:
  idle_interval: 2s
logging:
  level: debug
`, map[string]string{"DownloadsGlob": downloadsGlob})
	afero.WriteFile(fs, configPath, []byte(configYAML), 0644)

	cfg, err := LoadWithFs(configPath, fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Watches) != 1 {
		t.Fatalf("expected 1 watch, got %d", len(cfg.Watches))
	}
	if cfg.Watches[0].Pattern != downloadsGlob {
		t.Errorf("pattern = %q, want %q", cfg.Watches[0].Pattern, downloadsGlob)
	}
	if cfg.Watches[0].Action.Command != "echo ${path}" {
		t.Errorf("action command = %q", cfg.Watches[0].Action.Command)
	}
	if cfg.Daemon.IdleInterval != 2*time.Second {
		t.Errorf("idle interval = %v, want 2s", cfg.Daemon.IdleInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadWithFs_DefaultValues(t *testing.T) {
	configPath := testutil.Path("/", "config.yaml")
	tmpGlob := testutil.Path("/", "tmp", "*")

	fs := afero.NewMemMapFs()
	configYAML := renderYAML(t, `
watches:
  - pattern: {{.TmpGlob}}
    action: "echo hi"
`, map[string]string{"TmpGlob": tmpGlob})
	afero.WriteFile(fs, configPath, []byte(configYAML), 0644)

	cfg, err := LoadWithFs(configPath, fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Daemon.IdleInterval != 1*time.Second {
		t.Errorf("default idle interval = %v, want 1s", cfg.Daemon.IdleInterval)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("default logging level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadWithFs_FileNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := LoadWithFs(testutil.Path("/", "nonexistent.yaml"), fs)
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadWithFs_InvalidYAML(t *testing.T) {
	configPath := testutil.Path("/", "config.yaml")

	fs := afero.NewMemMapFs()
	invalidYAML := `
watches:
  - pattern: [unclosed
`
	afero.WriteFile(fs, configPath, []byte(invalidYAML), 0644)

	_, err := LoadWithFs(configPath, fs)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadWithFs_EmptyConfig(t *testing.T) {
	configPath := testutil.Path("/", "config.yaml")

	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, configPath, []byte(""), 0644)

	cfg, err := LoadWithFs(configPath, fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Watches) != 0 {
		t.Errorf("expected 0 watches, got %d", len(cfg.Watches))
	}
	if cfg.Daemon.IdleInterval != 1*time.Second {
		t.Errorf("expected default idle interval, got %v", cfg.Daemon.IdleInterval)
	}
}

func TestLoadWithFs_EmptyPatternRejected(t *testing.T) {
	configPath := testutil.Path("/", "config.yaml")

	fs := afero.NewMemMapFs()
	configYAML := `
watches:
  - pattern: ""
    action: "echo hi"
`
	afero.WriteFile(fs, configPath, []byte(configYAML), 0644)

	_, err := LoadWithFs(configPath, fs)
	if err == nil {
		t.Error("expected error for empty pattern")
	}
}

func TestLoadWithFs_MultipleWatches(t *testing.T) {
	configPath := testutil.Path("/", "config.yaml")
	globA := testutil.Path("/", "tmp", "a", "*")
	globB := testutil.Path("/", "tmp", "b", "**")

	fs := afero.NewMemMapFs()
	configYAML := renderYAML(t, `
watches:
  - pattern: {{.GlobA}}
    action: "echo a"
  - pattern: {{.GlobB}}
    action:
      shell: "echo b"
`, map[string]string{"GlobA": globA, "GlobB": globB})
	afero.WriteFile(fs, configPath, []byte(configYAML), 0644)

	cfg, err := LoadWithFs(configPath, fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Watches) != 2 {
		t.Fatalf("expected 2 watches, got %d", len(cfg.Watches))
	}
	if cfg.Watches[1].Action.Command != "echo b" {
		t.Errorf("watch 1 action command = %q", cfg.Watches[1].Action.Command)
	}
}

func TestDefaultDaemonConfig(t *testing.T) {
	cfg := DefaultDaemonConfig()
	if cfg.IdleInterval != 1*time.Second {
		t.Errorf("expected idle interval 1s, got %v", cfg.IdleInterval)
	}
}

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()
	if cfg.Level != "warn" {
		t.Errorf("expected level 'warn', got %q", cfg.Level)
	}
}
