package watcher

import (
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Graph is the forest of Watcher nodes realising every registered pattern.
// Nodes are indexed by stable integer id and by the directory path they
// watch; the path index is one-to-many since several patterns may share a
// concrete directory.
type Graph struct {
	fs    afero.Fs
	cache *Cache

	nodes  map[int]*Node
	byPath map[string][]int
	nextID int
}

// NewGraph builds an empty Graph. fs is used only for existence checks and
// subdirectory enumeration, never for watching; cache is the sole authority
// over kernel registration.
func NewGraph(fs afero.Fs, cache *Cache) *Graph {
	return &Graph{
		fs:     fs,
		cache:  cache,
		nodes:  make(map[int]*Node),
		byPath: make(map[string][]int),
	}
}

func (g *Graph) newNode(pattern string, role Role, parent int, recursive int) *Node {
	g.nextID++

	n := &Node{
		ID:        g.nextID,
		Pattern:   pattern,
		Role:      role,
		Parent:    parent,
		Recursive: recursive,
	}

	g.nodes[n.ID] = n
	g.insert(n)

	if parent != 0 {
		if p, ok := g.nodes[parent]; ok {
			p.Children = append(p.Children, n.ID)
		}
	}

	return n
}

func (g *Graph) insert(n *Node) {
	g.byPath[n.Pattern] = append(g.byPath[n.Pattern], n.ID)
}

func (g *Graph) removeFromPathIndex(n *Node) {
	ids := g.byPath[n.Pattern]
	for i, id := range ids {
		if id == n.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	if len(ids) == 0 {
		delete(g.byPath, n.Pattern)
	} else {
		g.byPath[n.Pattern] = ids
	}
}

func (g *Graph) dirExists(path string) bool {
	info, err := g.fs.Stat(path)
	return err == nil && info.IsDir()
}

func (g *Graph) listSubdirs(path string) []string {
	entries, err := afero.ReadDir(g.fs, path)
	if err != nil {
		return nil
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs
}

// acquireFor acquires the kernel watch for n.Pattern and marks n as watched
// on success.
func (g *Graph) acquireFor(n *Node) error {
	if err := g.cache.Acquire(n.Pattern); err != nil {
		return err
	}
	n.Watched = true
	return nil
}

// releaseSuperficial drops n's kernel watch without detaching n from the
// graph, used when a node is retained as a structural pass-through across a
// self-remove transition (PARENT climbing higher, FOLDER awaiting
// re-creation).
func (g *Graph) releaseSuperficial(n *Node) {
	if n.Watched {
		g.cache.Release(n.Pattern, true)
		n.Watched = false
	}
}

// climbToParent handles the race where n's directory was believed to exist
// (or just lost its kernel watch) but registration failed: install a PARENT
// one level up and recurse. The filesystem root always exists, so this
// terminates.
func (g *Graph) climbToParent(n *Node) error {
	parent := g.newNode(filepath.Dir(n.Pattern), RoleParent, n.ID, 0)
	return g.register(parent)
}

// register realises a freshly created node: downgrading a glob-less GLOB to
// FOLDER, climbing to an existing ancestor via PARENT placeholders,
// acquiring the kernel watch once an existing directory is reached, and
// recursing into already-existing subdirectories when the node still has
// recursion budget left.
func (g *Graph) register(n *Node) error {
	if n.Role == RoleGlob {
		if IsGlob(n.Pattern) {
			child := g.newNode(Root(n.Pattern), RoleFolder, n.ID, RecursionDepth(n.Pattern))
			return g.register(child)
		}
		n.Role = RoleFolder
	}

	exists := true

	if n.Role == RoleFolder || n.Role == RoleParent {
		exists = g.dirExists(n.Pattern)

		if !exists {
			parent := g.newNode(filepath.Dir(n.Pattern), RoleParent, n.ID, 0)
			if err := g.register(parent); err != nil {
				return err
			}
		}
	}

	if n.Role == RoleParent && exists {
		if err := g.acquireFor(n); err != nil {
			return g.climbToParent(n)
		}
	}

	if exists && (n.Role == RoleFolder || n.Role == RoleChild) {
		if err := g.acquireFor(n); err != nil {
			return g.climbToParent(n)
		}

		if n.Recursive > 0 {
			for _, name := range g.listSubdirs(n.Pattern) {
				child := g.newNode(filepath.Join(n.Pattern, name), RoleChild, n.ID, decNodeRecursive(n.Recursive))
				if err := g.register(child); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// createChild creates a node under parent and fully registers it (existence
// climb, kernel acquire, recursive subdirectory discovery). Every node the
// dispatcher creates at runtime goes through this, the same registration
// path used for nodes created during initial pattern registration.
func (g *Graph) createChild(parent *Node, path string, role Role, recursive int) (*Node, error) {
	child := g.newNode(path, role, parent.ID, recursive)
	if err := g.register(child); err != nil {
		return nil, err
	}
	return child, nil
}

// AddWatch registers pattern and returns the id the caller should hold: the
// GLOB node's id, or the same id with the node downgraded to FOLDER when
// pattern contains no wildcard.
func (g *Graph) AddWatch(pattern string) (int, error) {
	n := g.newNode(pattern, RoleGlob, 0, 0)
	if err := g.register(n); err != nil {
		return 0, err
	}
	return n.ID, nil
}

// detach removes n from both indexes and unlinks it from its parent's
// children, releasing its kernel watch (if any) through the cache.
func (g *Graph) detach(n *Node, superficial bool) {
	delete(g.nodes, n.ID)
	g.removeFromPathIndex(n)

	if n.hasParent() {
		if p, ok := g.nodes[n.Parent]; ok {
			p.removeChild(n.ID)
		}
	}

	if n.Watched {
		g.cache.Release(n.Pattern, superficial)
		n.Watched = false
	}
}

// removeWatch is the single authority over node lifecycle: detach, then
// optionally propagate to children and, for FOLDER/PARENT nodes, to the
// parent chain that exists only to scaffold this node.
func (g *Graph) removeWatch(id int, propagate bool, superficial bool) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}

	g.detach(n, superficial)

	if !propagate {
		return
	}

	children := append([]int(nil), n.Children...)
	for _, c := range children {
		g.removeWatch(c, true, false)
	}

	if (n.Role == RoleFolder || n.Role == RoleParent) && n.hasParent() {
		g.removeWatch(n.Parent, true, false)
	}
}

// RemoveWatch deregisters id and everything it alone was scaffolding.
// Unknown ids are no-ops.
func (g *Graph) RemoveWatch(id int) {
	g.removeWatch(id, true, false)
}

// Node looks up a node by id.
func (g *Graph) Node(id int) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// nodesAt returns every node currently watching path, in registration
// order.
func (g *Graph) nodesAt(path string) []*Node {
	ids := g.byPath[path]
	if len(ids) == 0 {
		return nil
	}

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// globAncestor walks parent edges up from n until it reaches the owning
// GLOB node (or a node with no parent, during a transient mid-dispatch
// state).
func (g *Graph) globAncestor(n *Node) *Node {
	root := n
	for root.Role != RoleGlob && root.hasParent() {
		p, ok := g.nodes[root.Parent]
		if !ok {
			break
		}
		root = p
	}
	return root
}

// NodeCount reports how many nodes are currently live, for tests and status
// reporting.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// WatchCount reports how many distinct directories currently hold a live
// kernel watch.
func (g *Graph) WatchCount() int {
	return g.cache.DirCount()
}
