// Package action executes the shell command configured for a watch entry,
// expanding path/name/time variables before invoking it.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"gopkg.in/yaml.v3"

	"github.com/prettymuchbryce/globwatch/internal/utils"
	"github.com/prettymuchbryce/globwatch/internal/watcher"
)

// Shell runs a templated shell command for every event delivered to the
// watch entry it's attached to.
type Shell struct {
	Command utils.Template
}

// Execute expands Command against the event (path, action, kind, plus the
// usual name/ext/strftime substitutions) and runs it through the shell.
func (s *Shell) Execute(ctx context.Context, id int, ev watcher.Event) error {
	expanded := s.Command.
		ExpandTilde().
		ExpandWithNameExt(ev.Path).
		ExpandWithVars(map[string]string{
			"path":   ev.Path,
			"action": ev.Action.String(),
			"kind":   ev.Kind.String(),
		}).
		ExpandWithTime().
		String()

	cmd := exec.CommandContext(ctx, "sh", "-c", expanded)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("action: watch %d command %q: %w", id, expanded, err)
	}
	if len(out) > 0 {
		slog.Debug("action: command output", "watch", id, "output", string(out))
	}
	return nil
}

// UnmarshalYAML supports both "action: notify ${path}" (bare command string)
// and "action: {shell: notify ${path}}".
func (s *Shell) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var cmd string
		if err := node.Decode(&cmd); err != nil {
			return err
		}
		s.Command = utils.Template(cmd)
		return nil
	}

	var m struct {
		Shell string `yaml:"shell"`
	}
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("action must be a string or a {shell: ...} mapping: %w", err)
	}
	if m.Shell == "" {
		return fmt.Errorf("action mapping requires a shell command")
	}
	s.Command = utils.Template(m.Shell)
	return nil
}
