package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prettymuchbryce/globwatch/internal/ipc"
)

// WatchState tracks persistent state for a single watch pattern, keyed by
// the pattern itself since node ids are only stable for the lifetime of one
// daemon run and are reassigned from scratch on every restart.
type WatchState struct {
	LastFiredAt time.Time `json:"last_fired_at"`
	FireCount   int       `json:"fire_count"`
}

// State tracks daemon state that persists across restarts.
type State struct {
	mu      sync.RWMutex
	path    string
	Watches map[string]WatchState `json:"watches"`
}

// Load loads state from the default state file path.
// If the file doesn't exist, returns an empty state.
func Load() (*State, error) {
	path, err := ipc.StatePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads state from the specified path.
// If the file doesn't exist, returns an empty state.
func LoadFrom(path string) (*State, error) {
	s := &State{
		path:    path,
		Watches: make(map[string]WatchState),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		slog.Warn("failed to parse state file, starting fresh", "error", err)
		s.Watches = make(map[string]WatchState)
		return s, nil
	}

	if s.Watches == nil {
		s.Watches = make(map[string]WatchState)
	}

	return s, nil
}

// RecordFired records that pattern produced an event at firedAt and persists
// to disk.
func (s *State) RecordFired(pattern string, firedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.Watches[pattern]
	ws.LastFiredAt = firedAt
	ws.FireCount++
	s.Watches[pattern] = ws

	return s.save()
}

// save persists the state to disk. Must be called with mu held.
func (s *State) save() error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// GetWatchState returns the persisted state for a pattern.
// Returns nil if the pattern has never fired.
func (s *State) GetWatchState(pattern string) *WatchState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.Watches[pattern]
	if !ok {
		return nil
	}
	return &ws
}

// Clear removes all state (useful for testing).
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Watches = make(map[string]WatchState)
}
