package watcher

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

type recordingLogger struct {
	calls int
	last  [3]string
}

func (r *recordingLogger) OnEvent(action, kind, path string) {
	r.calls++
	r.last = [3]string{action, kind, path}
}

func newTestDispatcher(fs afero.Fs, logger Logger) (*Graph, *Dispatcher, *mockKernelWatcher) {
	g, kernel := newTestGraph(fs)
	return g, NewDispatcher(g, logger), kernel
}

func TestDispatcher_StaticDirectory_CreateAndRemoveFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a/b", 0o755)

	g, d, _ := newTestDispatcher(fs, nil)

	id, err := g.AddWatch("/a/b")
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	f, _ := fs.Create("/a/b/x")
	_ = f.Close()

	events := d.Dispatch(fsnotify.Event{Name: "/a/b/x", Op: fsnotify.Create})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	want := Event{ID: id, Action: ActionCreate, Kind: KindFile, Path: "/a/b/x"}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}

	_ = fs.Remove("/a/b/x")
	events = d.Dispatch(fsnotify.Event{Name: "/a/b/x", Op: fsnotify.Remove})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	want = Event{ID: id, Action: ActionRemove, Kind: KindFile, Path: "/a/b/x"}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}
}

func TestDispatcher_GlobWithShallowRecursion_FiltersNonMatchingSubdir(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a", 0o755)

	g, d, _ := newTestDispatcher(fs, nil)

	id, err := g.AddWatch("/a/*/y")
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	_ = fs.MkdirAll("/a/k", 0o755)
	events := d.Dispatch(fsnotify.Event{Name: "/a/k", Op: fsnotify.Create})
	if len(events) != 0 {
		t.Fatalf("creating /a/k should not match /a/*/y, got %d events", len(events))
	}

	f, _ := fs.Create("/a/k/y")
	_ = f.Close()
	events = d.Dispatch(fsnotify.Event{Name: "/a/k/y", Op: fsnotify.Create})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	want := Event{ID: id, Action: ActionCreate, Kind: KindFile, Path: "/a/k/y"}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}
}

func TestDispatcher_NonExistentRoot_ParentPromotesOnCreate(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a", 0o755)

	g, d, kernel := newTestDispatcher(fs, nil)

	id, err := g.AddWatch("/a/b/c")
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	// "/a/b/c" has no wildcard, so the GLOB node downgrades in place to
	// FOLDER and id names that node directly.
	folder, _ := g.Node(id)
	if folder.Role != RoleFolder {
		t.Fatalf("non-glob pattern should downgrade in place, got role %v", folder.Role)
	}
	if len(folder.Children) != 1 {
		t.Fatalf("folder should have exactly one PARENT child awaiting /a/b")
	}
	midParent, _ := g.Node(folder.Children[0])
	if midParent.Pattern != "/a/b" {
		t.Fatalf("expected PARENT at /a/b, got %q", midParent.Pattern)
	}

	_ = fs.MkdirAll("/a/b", 0o755)
	events := d.Dispatch(fsnotify.Event{Name: "/a/b", Op: fsnotify.Create})

	if len(events) != 0 {
		t.Fatalf("promotion of an intermediate directory must not itself emit (still PARENT), got %d", len(events))
	}
	if !kernel.hasAdded("/a/b") {
		t.Fatalf("expected kernel watch acquired on promoted /a/b")
	}

	if len(folder.Children) != 1 {
		t.Fatalf("folder should still have exactly one child after promotion")
	}
	promoted, _ := g.Node(folder.Children[0])
	if promoted.ID != midParent.ID || promoted.Pattern != "/a/b" || !promoted.Watched {
		t.Fatalf("expected the same PARENT node promoted in place at /a/b, got %+v", promoted)
	}

	_ = fs.MkdirAll("/a/b/c", 0o755)
	events = d.Dispatch(fsnotify.Event{Name: "/a/b/c", Op: fsnotify.Create})
	if len(events) != 1 {
		t.Fatalf("final promotion to the real target should emit, got %d events", len(events))
	}
	want := Event{ID: id, Action: ActionCreate, Kind: KindFolder, Path: "/a/b/c"}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}
}

func TestDispatcher_WatchedRoot_DirectoryDeletionAndRecreation(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a/b", 0o755)

	g, d, kernel := newTestDispatcher(fs, nil)

	id, err := g.AddWatch("/a/b")
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	_ = fs.RemoveAll("/a/b")
	events := d.Dispatch(fsnotify.Event{Name: "/a/b", Op: fsnotify.Remove})

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (folder removal)", len(events))
	}
	want := Event{ID: id, Action: ActionRemove, Kind: KindFolder, Path: "/a/b"}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}

	folder, ok := g.Node(id)
	if !ok {
		t.Fatalf("FOLDER node must be retained across self-remove")
	}
	if folder.Watched {
		t.Fatalf("FOLDER's kernel watch should have been released superficially")
	}
	if len(folder.Children) != 1 {
		t.Fatalf("FOLDER should have installed a PARENT awaiting /a")
	}
	if kernel.hasRemoved("/a/b") {
		t.Fatalf("superficial release must not call kernel.Remove")
	}

	// Re-creating /a/b must resurface under the SAME id (TestDispatcher_FolderDeletedAndRecreated_SameID).
	_ = fs.MkdirAll("/a/b", 0o755)
	events = d.Dispatch(fsnotify.Event{Name: "/a/b", Op: fsnotify.Create})

	found := false
	for _, e := range events {
		if e.ID == id && e.Action == ActionCreate && e.Path == "/a/b" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected /a/b recreation to resurface as a create event under the original id %d, got %+v", id, events)
	}
}

func TestDispatcher_FolderDeletedAndRecreated_SameID(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/w/root", 0o755)

	g, d, _ := newTestDispatcher(fs, nil)

	id, err := g.AddWatch("/w/root")
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	_ = fs.RemoveAll("/w/root")
	d.Dispatch(fsnotify.Event{Name: "/w/root", Op: fsnotify.Remove})

	folder, ok := g.Node(id)
	if !ok {
		t.Fatalf("node %d must still exist: FOLDER is retained, not deleted, on self-remove", id)
	}
	if folder.ID != id {
		t.Fatalf("node identity must not change across a self-remove/re-promote cycle")
	}

	_ = fs.MkdirAll("/w/root", 0o755)
	events := d.Dispatch(fsnotify.Event{Name: "/w/root", Op: fsnotify.Create})

	var resurfacedID int
	for _, e := range events {
		resurfacedID = e.ID
	}
	if resurfacedID != id {
		t.Fatalf("re-creation resurfaced under id %d, want original id %d", resurfacedID, id)
	}
}

func TestDispatcher_RecursiveCreation_MultipleLevels(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a", 0o755)

	g, d, _ := newTestDispatcher(fs, nil)

	id, err := g.AddWatch("/a/**/f.js")
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	// Directory creations along the way spawn CHILD nodes so recursion can
	// continue, but neither matches the "/a/**/f.js" glob itself, so
	// neither is surfaced to the user.
	_ = fs.MkdirAll("/a/x", 0o755)
	events := d.Dispatch(fsnotify.Event{Name: "/a/x", Op: fsnotify.Create})
	if len(events) != 0 {
		t.Fatalf("intermediate directory /a/x should not match the glob, got %+v", events)
	}

	_ = fs.MkdirAll("/a/x/y", 0o755)
	events = d.Dispatch(fsnotify.Event{Name: "/a/x/y", Op: fsnotify.Create})
	if len(events) != 0 {
		t.Fatalf("intermediate directory /a/x/y should not match the glob, got %+v", events)
	}

	f, _ := fs.Create("/a/x/y/f.js")
	_ = f.Close()
	events = d.Dispatch(fsnotify.Event{Name: "/a/x/y/f.js", Op: fsnotify.Create})
	if len(events) != 1 {
		t.Fatalf("expected one file-create event, got %+v", events)
	}
	want := Event{ID: id, Action: ActionCreate, Kind: KindFile, Path: "/a/x/y/f.js"}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}
}

func TestDispatcher_LoggerInvokedOncePerRawEvent(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a", 0o755)

	logger := &recordingLogger{}
	g, d, _ := newTestDispatcher(fs, logger)

	if _, err := g.AddWatch("/a/*"); err != nil {
		t.Fatalf("AddWatch 1: %v", err)
	}
	if _, err := g.AddWatch("/a/**"); err != nil {
		t.Fatalf("AddWatch 2: %v", err)
	}

	_ = fs.MkdirAll("/a/sub", 0o755)
	events := d.Dispatch(fsnotify.Event{Name: "/a/sub", Op: fsnotify.Create})

	if len(events) < 2 {
		t.Fatalf("expected both overlapping patterns to emit, got %d events", len(events))
	}
	if logger.calls != 1 {
		t.Fatalf("logger invoked %d times, want exactly 1 per raw event", logger.calls)
	}
}

func TestDispatcher_UnknownDirectoryIsDiscarded(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, d, _ := newTestDispatcher(fs, nil)

	events := d.Dispatch(fsnotify.Event{Name: "/never/watched/x", Op: fsnotify.Create})
	if len(events) != 0 {
		t.Fatalf("got %d events for an unwatched directory, want 0", len(events))
	}
}

func TestDispatcher_ChildSelfRemove_ReattributesToSameGlobAncestor(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a/k", 0o755)

	g, d, kernel := newTestDispatcher(fs, nil)

	id, err := g.AddWatch("/a/**")
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	glob, _ := g.Node(id)
	folder, _ := g.Node(glob.Children[0])
	if len(folder.Children) != 1 {
		t.Fatalf("expected one CHILD discovered for the pre-existing /a/k, got %d", len(folder.Children))
	}
	child, _ := g.Node(folder.Children[0])
	if child.Role != RoleChild || child.Pattern != "/a/k" {
		t.Fatalf("expected CHILD at /a/k, got role=%v pattern=%q", child.Role, child.Pattern)
	}

	_ = fs.RemoveAll("/a/k")
	events := d.Dispatch(fsnotify.Event{Name: "/a/k", Op: fsnotify.Remove})

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	want := Event{ID: id, Action: ActionRemove, Kind: KindFolder, Path: "/a/k"}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}

	if _, ok := g.Node(child.ID); ok {
		t.Fatalf("CHILD node must be fully detached on self-remove, unlike FOLDER/PARENT")
	}
	if kernel.hasRemoved("/a/k") {
		t.Fatalf("CHILD self-remove must release superficially, not call kernel.Remove")
	}
	if len(folder.Children) != 0 {
		t.Fatalf("FOLDER should no longer list the retired CHILD")
	}
}

func TestDispatcher_ChmodIsIgnored(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/a/b", 0o755)

	g, d, _ := newTestDispatcher(fs, nil)
	if _, err := g.AddWatch("/a/b"); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	events := d.Dispatch(fsnotify.Event{Name: "/a/b/x", Op: fsnotify.Chmod})
	if len(events) != 0 {
		t.Fatalf("chmod should be discarded, got %d events", len(events))
	}
}
