package watch

import (
	"sort"
	"sync"
	"time"
)

// Op identifies the kind of coalesced change seen on a definition file.
type Op int

const (
	// OpAdded indicates a definition file appeared.
	OpAdded Op = iota
	// OpChanged indicates an existing definition file was rewritten.
	OpChanged
	// OpRemoved indicates a definition file went away.
	OpRemoved
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpAdded:
		return "added"
	case OpChanged:
		return "changed"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one settled change to a single definition file.
type Event struct {
	// Path is the path of the definition file that changed.
	Path string
	// Op is the coalesced operation.
	Op Op
}

// rawOp is what the filesystem reported before coalescing.
type rawOp int

const (
	rawCreate rawOp = iota
	rawWrite
	rawRemove
)

// coalescer folds bursts of raw notifications into one pending change per
// path. A change is emitted only after its path has stayed quiet for the
// full window; every new notification restarts that clock. A remove always
// supersedes earlier writes, and a file created and then written within one
// window surfaces as a single add.
type coalescer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingChange
}

type pendingChange struct {
	op   Op
	last time.Time
}

func newCoalescer(window time.Duration) *coalescer {
	return &coalescer{
		window:  window,
		pending: make(map[string]*pendingChange),
	}
}

// Observe folds one raw notification into the pending state for path.
func (c *coalescer) Observe(path string, raw rawOp, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[path]
	if !ok {
		c.pending[path] = &pendingChange{op: initialOp(raw), last: now}
		return
	}

	switch {
	case raw == rawRemove:
		p.op = OpRemoved
	case p.op == OpRemoved:
		// Removed and recreated within one window: the file exists again
		// with new content.
		p.op = OpChanged
	}
	// A write after a create stays an add; a write after a write stays a
	// change. Either way the quiet clock restarts.
	p.last = now
}

func initialOp(raw rawOp) Op {
	switch raw {
	case rawCreate:
		return OpAdded
	case rawRemove:
		return OpRemoved
	default:
		return OpChanged
	}
}

// Due removes and returns the changes whose paths have been quiet for at
// least the window, ordered by path.
func (c *coalescer) Due(now time.Time) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []Event
	for path, p := range c.pending {
		if now.Sub(p.last) >= c.window {
			due = append(due, Event{Path: path, Op: p.op})
			delete(c.pending, path)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Path < due[j].Path })
	return due
}

// Len reports how many paths have pending changes.
func (c *coalescer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
