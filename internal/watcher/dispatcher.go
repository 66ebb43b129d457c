package watcher

import (
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Dispatcher consumes raw kernel events, mutates the Graph to reflect
// directory creation/removal and recursion frontiers, and emits the
// filtered user-facing Events.
type Dispatcher struct {
	graph  *Graph
	logger Logger
}

// NewDispatcher builds a Dispatcher over graph. Entity kind (file vs
// directory) for a newly created path is decided via graph's own
// filesystem abstraction, since fsnotify (unlike the IN_ISDIR-tagging
// kernel primitive this spec assumes) does not carry entity kind on the
// event itself.
func NewDispatcher(graph *Graph, logger Logger) *Dispatcher {
	return &Dispatcher{graph: graph, logger: logger}
}

// mapAction classifies a raw fsnotify operation. CREATE|MOVED_TO -> create,
// DELETE|MOVED_FROM|DELETE_SELF -> remove, MODIFY -> update; anything else
// is discarded.
func mapAction(op fsnotify.Op) (Action, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return ActionCreate, true
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return ActionRemove, true
	case op&fsnotify.Write != 0:
		return ActionUpdate, true
	default:
		return 0, false
	}
}

// Dispatch processes one raw kernel event and returns zero or more
// user-facing events. The external logger hook, if configured, is invoked
// at most once per call, using the first emitted event.
func (d *Dispatcher) Dispatch(ev fsnotify.Event) []Event {
	action, ok := mapAction(ev.Op)
	if !ok {
		slog.Debug("watcher: ignored event", "op", ev.Op.String(), "name", ev.Name)
		return nil
	}

	events := d.dispatch(ev, action)

	if len(events) > 0 && d.logger != nil {
		first := events[0]
		d.logger.OnEvent(first.Action.String(), first.Kind.String(), first.Path)
	}

	return events
}

func (d *Dispatcher) dispatch(ev fsnotify.Event, action Action) []Event {
	// A removal whose Name matches a node's own watched pattern is a
	// self-event: the kernel reports the directory's own deletion on the
	// path of the watch itself, not on its parent's. Every other event
	// (including removals of an entry from within a watched directory) is
	// a child-event, looked up by parent directory.
	if action == ActionRemove {
		if nodes := d.graph.nodesAt(ev.Name); len(nodes) > 0 {
			return d.dispatchSelf(nodes)
		}
	}

	dir := filepath.Dir(ev.Name)
	name := filepath.Base(ev.Name)

	nodes := d.graph.nodesAt(dir)
	if len(nodes) == 0 {
		slog.Debug("watcher: event for unknown directory", "dir", dir)
		return nil
	}

	return d.dispatchChildren(nodes, dir, name, action)
}

// dispatchSelf handles the deletion of a directory that is itself a node's
// watched pattern. Every role has its own fate; none fall through to a
// generic emit.
func (d *Dispatcher) dispatchSelf(nodes []*Node) []Event {
	var events []Event

	for _, n := range nodes {
		switch n.Role {
		case RoleParent:
			d.climbParent(n)
		case RoleChild:
			if e, ok := d.retireChild(n); ok {
				events = append(events, e)
			}
		case RoleFolder:
			if e, ok := d.retireFolder(n); ok {
				events = append(events, e)
			}
		}
	}

	return events
}

// climbParent implements the PARENT self-remove rule: the awaited ancestor
// itself disappeared. A new PARENT is installed one level further up and
// linked as this node's child; the current node's kernel watch is released
// superficially since the kernel already invalidated it. The node itself is
// retained as a structural pass-through, not detached — it never emits,
// so retaining it costs nothing and keeps the id stable if the chain is
// later re-promoted.
func (d *Dispatcher) climbParent(n *Node) {
	if _, err := d.graph.createChild(n, filepath.Dir(n.Pattern), RoleParent, 0); err != nil {
		slog.Warn("watcher: failed to climb parent chain", "dir", n.Pattern, "err", err)
		return
	}
	d.graph.releaseSuperficial(n)
}

// retireChild implements the CHILD self-remove rule: the node is fully
// detached (non-propagating; a CHILD has no standing meaning once its
// directory is gone) and its kernel watch is released superficially. The
// event is emitted against the same glob ancestor the child itself would
// have reported against.
func (d *Dispatcher) retireChild(n *Node) (Event, bool) {
	path := n.Pattern
	d.graph.removeWatch(n.ID, false, true)
	return d.emit(n, ActionRemove, KindFolder, path)
}

// retireFolder implements the FOLDER self-remove rule: the literal root of
// a glob disappeared. A PARENT is installed at its parent directory and
// linked as this node's child; the node itself is retained so a later
// re-creation resurfaces under the same id, resolving the documented open
// question in favour of resurfacing.
func (d *Dispatcher) retireFolder(n *Node) (Event, bool) {
	if _, err := d.graph.createChild(n, filepath.Dir(n.Pattern), RoleParent, 0); err != nil {
		slog.Warn("watcher: failed to install parent placeholder", "dir", n.Pattern, "err", err)
	}
	d.graph.releaseSuperficial(n)

	return d.emit(n, ActionRemove, KindFolder, n.Pattern)
}

// dispatchChildren handles events attached to a directory via a node that
// watches it directly: PARENT promotion on a matching create, CHILD
// spawning on a new subdirectory within recursion budget, or the generic
// fallthrough emit.
func (d *Dispatcher) dispatchChildren(nodes []*Node, dir, name string, action Action) []Event {
	full := filepath.Join(dir, name)

	kind := KindFile
	if action == ActionCreate && d.graph.dirExists(full) {
		kind = KindFolder
	}

	var events []Event

	for _, n := range nodes {
		switch {
		case n.Role == RoleParent:
			if e, ok := d.promoteParent(n, action, full, kind); ok {
				events = append(events, e)
				continue
			}
		case (n.Role == RoleFolder || n.Role == RoleChild) && action == ActionCreate && kind == KindFolder && n.Recursive > 0:
			if e, ok := d.spawnChild(n, name, kind); ok {
				events = append(events, e)
				continue
			}
		}

		if e, ok := d.emit(n, action, kind, full); ok {
			events = append(events, e)
		}
	}

	return events
}

// promoteParent implements the "liveness step": a PARENT's awaited target
// directory has appeared. The PARENT is retired (non-propagating, normal
// release — the kernel never invalidated this watch, we simply no longer
// need it) in favour of acquiring the real kernel watch for the target, and
// the event is emitted as if produced directly by the promoted node.
func (d *Dispatcher) promoteParent(n *Node, action Action, full string, kind Kind) (Event, bool) {
	if action != ActionCreate || !n.hasParent() {
		return Event{}, false
	}

	target, ok := d.graph.Node(n.Parent)
	if !ok || target.Pattern != full {
		return Event{}, false
	}

	d.graph.removeWatch(n.ID, false, false)

	if err := d.graph.acquireFor(target); err != nil {
		slog.Warn("watcher: failed to promote watch", "dir", target.Pattern, "err", err)
		return Event{}, false
	}

	return d.emit(target, action, kind, target.Pattern)
}

// spawnChild implements subdirectory recursion: a CHILD is created for the
// new directory (itself fully registered, so any of ITS OWN pre-existing
// subdirectories are discovered too), and the creation is emitted.
func (d *Dispatcher) spawnChild(n *Node, name string, kind Kind) (Event, bool) {
	path := filepath.Join(n.Pattern, name)

	child, err := d.graph.createChild(n, path, RoleChild, decNodeRecursive(n.Recursive))
	if err != nil {
		slog.Warn("watcher: failed to watch new subdirectory", "dir", path, "err", err)
		return Event{}, false
	}

	return d.emit(n, ActionCreate, kind, child.Pattern)
}

// emit suppresses PARENT-leaf events and, for GLOB ancestors whose original
// pattern is a genuine glob, requires path to match it under shell-style
// semantics before producing a user-visible Event.
func (d *Dispatcher) emit(leaf *Node, action Action, kind Kind, path string) (Event, bool) {
	if leaf.Role == RoleParent {
		return Event{}, false
	}

	ancestor := d.graph.globAncestor(leaf)

	if IsGlob(ancestor.Pattern) {
		matched, err := doublestar.Match(translateAlternation(ancestor.Pattern), path)
		if err != nil || !matched {
			return Event{}, false
		}
	}

	return Event{ID: ancestor.ID, Action: action, Kind: kind, Path: path}, true
}
