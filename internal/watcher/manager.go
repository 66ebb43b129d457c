package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// defaultIdleInterval is how often Listen emits an idle sentinel while no
// kernel event has arrived.
const defaultIdleInterval = 1 * time.Second

// Manager is the external interface: add_watch/remove_watch/listen over a
// live fsnotify.Watcher, exactly the three operations collaborators see.
// Internally it composes a Cache, a Graph and a Dispatcher over that
// fsnotify.Watcher, translating raw kernel events into the glob-aware
// events the Graph's node roles describe.
type Manager struct {
	fsw          *fsnotify.Watcher
	cache        *Cache
	graph        *Graph
	dispatcher   *Dispatcher
	idleInterval time.Duration

	roots []int
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger installs a Logger invoked at most once per raw kernel event
// that yields at least one user event.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		m.dispatcher.logger = logger
	}
}

// WithIdleInterval overrides how often Listen yields an idle sentinel while
// no kernel event has arrived. The zero value disables idle sentinels
// entirely.
func WithIdleInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.idleInterval = d
	}
}

// New builds a Manager backed by a real fsnotify.Watcher. fs is used only
// for existence checks and subdirectory enumeration during registration,
// never for watching.
func New(fs afero.Fs, opts ...Option) (*Manager, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cache := NewCache(fsw)
	graph := NewGraph(fs, cache)

	m := &Manager{
		fsw:          fsw,
		cache:        cache,
		graph:        graph,
		dispatcher:   NewDispatcher(graph, nil),
		idleInterval: defaultIdleInterval,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// AddWatch registers pattern and returns the id to hold for RemoveWatch.
func (m *Manager) AddWatch(pattern string) (int, error) {
	id, err := m.graph.AddWatch(pattern)
	if err != nil {
		return 0, err
	}
	m.roots = append(m.roots, id)
	return id, nil
}

// RemoveWatch deregisters id and everything it alone was scaffolding.
// Unknown ids are no-ops.
func (m *Manager) RemoveWatch(id int) {
	m.graph.RemoveWatch(id)
	for i, r := range m.roots {
		if r == id {
			m.roots = append(m.roots[:i], m.roots[i+1:]...)
			break
		}
	}
}

// WatchCount returns the number of directories currently holding a live
// kernel watch.
func (m *Manager) WatchCount() int {
	return m.graph.WatchCount()
}

// NodeCount returns the total number of graph nodes, including GLOB/PARENT
// placeholders that hold no kernel watch of their own.
func (m *Manager) NodeCount() int {
	return m.graph.NodeCount()
}

// Listen returns a single-use channel of events. A nil entry is an idle
// sentinel, yielded every idleInterval while no raw kernel event has
// arrived; set idleInterval to zero via WithIdleInterval to suppress them.
// Abandoning iteration by cancelling ctx is equivalent to destroying the
// Manager: every registered root is torn down and the underlying kernel
// handle is closed before the channel is closed.
func (m *Manager) Listen(ctx context.Context) <-chan *Event {
	out := make(chan *Event)

	go func() {
		defer close(out)
		defer m.teardown()

		var idle <-chan time.Time
		if m.idleInterval > 0 {
			ticker := time.NewTicker(m.idleInterval)
			defer ticker.Stop()
			idle = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-m.fsw.Events:
				if !ok {
					return
				}
				for _, e := range m.dispatcher.Dispatch(ev) {
					e := e
					select {
					case out <- &e:
					case <-ctx.Done():
						return
					}
				}

			case err, ok := <-m.fsw.Errors:
				if !ok {
					return
				}
				slog.Error("watcher: kernel event source error", "err", err)

			case <-idle:
				select {
				case out <- nil:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// teardown releases every kernel watch reachable from a registered root and
// closes the underlying fsnotify handle.
func (m *Manager) teardown() {
	for _, id := range m.roots {
		m.graph.RemoveWatch(id)
	}
	m.roots = nil

	if err := m.fsw.Close(); err != nil {
		slog.Debug("watcher: error closing kernel event source", "err", err)
	}
}

// Close tears down every watch and the underlying kernel handle without
// going through Listen, for callers that only ever call AddWatch.
func (m *Manager) Close() error {
	for _, id := range m.roots {
		m.graph.RemoveWatch(id)
	}
	m.roots = nil

	return m.fsw.Close()
}
