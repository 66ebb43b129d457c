package watcher

import (
	"fmt"
	"log/slog"
)

// kernelWatcher is the interface for the kernel directory-watch primitive,
// narrowed to what the cache needs so tests can substitute a mock in place
// of a real fsnotify.Watcher.
type kernelWatcher interface {
	Add(name string) error
	Remove(name string) error
}

// Cache is the reference-counted registry mapping a directory path to a
// kernel watch. It is the only component that talks to the kernel; every
// other part of the watcher reasons purely in terms of logical nodes.
type Cache struct {
	kernel kernelWatcher
	counts map[string]int
}

// NewCache builds a Cache backed by the given kernel primitive.
func NewCache(kernel kernelWatcher) *Cache {
	return &Cache{
		kernel: kernel,
		counts: make(map[string]int),
	}
}

// Acquire increments the reference count for dir. If the count transitions
// from 0 to 1, a kernel watch is registered. Registration failure leaves the
// count untouched and is returned to the caller.
func (c *Cache) Acquire(dir string) error {
	if c.counts[dir] > 0 {
		c.counts[dir]++
		return nil
	}

	if err := c.kernel.Add(dir); err != nil {
		return fmt.Errorf("watcher: register kernel watch for %q: %w", dir, err)
	}

	c.counts[dir] = 1
	return nil
}

// Release decrements the reference count for dir. When it reaches zero, the
// kernel watch is unregistered, unless superficial is set: the kernel has
// already invalidated the watch itself (directory deletion), so only the
// cache's bookkeeping is dropped and no unregister call is made.
func (c *Cache) Release(dir string, superficial bool) {
	count, ok := c.counts[dir]
	if !ok {
		return
	}

	count--
	if count > 0 {
		c.counts[dir] = count
		return
	}

	delete(c.counts, dir)

	if superficial {
		return
	}

	if err := c.kernel.Remove(dir); err != nil {
		slog.Debug("watcher: kernel watch removal failed", "dir", dir, "err", err)
	}
}

// Count returns the current reference count for dir, 0 if untracked.
func (c *Cache) Count(dir string) int {
	return c.counts[dir]
}

// DirCount returns how many distinct directories currently hold a live
// kernel watch.
func (c *Cache) DirCount() int {
	return len(c.counts)
}
