// Package watcher observes a project tree and keeps the graph's discovered
// set in sync: additions and modifications are marked discovered, deletions
// cascade through the file's graph children. The watcher never parses.
package watcher

import (
	"sync"
	"time"
)

// Op is the coalesced change kind.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

// Change is one debounced filesystem change.
type Change struct {
	Path string // absolute
	Op   Op
	At   time.Time
}

// Coalescer debounces raw filesystem events per path and merges bursts into
// a single change. A create followed by a delete within the window cancels
// out entirely; a delete followed by a create becomes a modify.
type Coalescer struct {
	debounce    time.Duration
	deleteGrace time.Duration

	mu      sync.Mutex
	pending map[string]*pendingChange
	out     chan Change
	stopCh  chan struct{}
	stopped bool
}

type pendingChange struct {
	change Change
	timer  *time.Timer
}

// NewCoalescer creates a coalescer. Deletes wait the longer grace period so
// editor save-by-rename sequences resolve to a modify, not a delete.
func NewCoalescer(debounce, deleteGrace time.Duration) *Coalescer {
	return &Coalescer{
		debounce:    debounce,
		deleteGrace: deleteGrace,
		pending:     make(map[string]*pendingChange),
		out:         make(chan Change, 1024),
		stopCh:      make(chan struct{}),
	}
}

// Add feeds one raw change into the coalescer.
func (c *Coalescer) Add(change Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	path := change.Path
	if pe, ok := c.pending[path]; ok {
		pe.timer.Stop()

		// A file created and deleted inside one window never existed as far
		// as the graph is concerned.
		if pe.change.Op == OpCreate && change.Op == OpDelete {
			delete(c.pending, path)
			return
		}

		pe.change = mergeChanges(pe.change, change)
		pe.timer = time.AfterFunc(c.delay(pe.change.Op), func() { c.emit(path) })
		return
	}

	pe := &pendingChange{change: change}
	pe.timer = time.AfterFunc(c.delay(change.Op), func() { c.emit(path) })
	c.pending[path] = pe
}

// Changes returns the debounced change stream.
func (c *Coalescer) Changes() <-chan Change {
	return c.out
}

// Stop cancels pending timers and closes the stream.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	for path, pe := range c.pending {
		pe.timer.Stop()
		delete(c.pending, path)
	}
	c.mu.Unlock()

	close(c.stopCh)
	close(c.out)
}

func (c *Coalescer) emit(path string) {
	c.mu.Lock()
	pe, ok := c.pending[path]
	if !ok {
		c.mu.Unlock()
		return
	}
	change := pe.change
	delete(c.pending, path)
	c.mu.Unlock()

	select {
	case c.out <- change:
	case <-c.stopCh:
	}
}

func (c *Coalescer) delay(op Op) time.Duration {
	if op == OpDelete {
		return c.deleteGrace
	}
	return c.debounce
}

// Pending returns the number of paths awaiting their debounce window.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// mergeChanges folds a new change into the pending one for the same path.
func mergeChanges(old, next Change) Change {
	switch {
	case old.Op == OpCreate && next.Op == OpModify:
		// Still a create: the graph has never seen the file.
		return Change{Path: next.Path, Op: OpCreate, At: next.At}
	case old.Op == OpDelete && next.Op == OpCreate:
		// Replaced in place, e.g. save-by-rename.
		return Change{Path: next.Path, Op: OpModify, At: next.At}
	case old.Op == OpModify && next.Op == OpDelete:
		return Change{Path: next.Path, Op: OpDelete, At: next.At}
	default:
		return next
	}
}
