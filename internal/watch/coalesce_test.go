package watch

import (
	"testing"
	"time"
)

const testWindow = 100 * time.Millisecond

// TestCoalesceRapidWrites verifies that a burst of writes to one path
// settles into exactly one changed event, and only after the window of
// quiet has elapsed.
func TestCoalesceRapidWrites(t *testing.T) {
	c := newCoalescer(testWindow)
	t0 := time.Now()

	for i := 0; i < 5; i++ {
		c.Observe("/items/a-0001/item.json", rawWrite, t0.Add(time.Duration(i)*10*time.Millisecond))
	}

	// Last write at t0+40ms; nothing is due before t0+140ms.
	if due := c.Due(t0.Add(139 * time.Millisecond)); len(due) != 0 {
		t.Fatalf("Due() fired early: %v", due)
	}

	due := c.Due(t0.Add(141 * time.Millisecond))
	if len(due) != 1 {
		t.Fatalf("Due() returned %d events, want 1", len(due))
	}
	if due[0].Op != OpChanged {
		t.Errorf("op = %s, want %s", due[0].Op, OpChanged)
	}
	if due[0].Path != "/items/a-0001/item.json" {
		t.Errorf("path = %q", due[0].Path)
	}
	if c.Len() != 0 {
		t.Errorf("coalescer still holds %d pending changes", c.Len())
	}
}

// TestCoalesceCreateThenWrites verifies that a create followed by writes
// within the window surfaces as a single add.
func TestCoalesceCreateThenWrites(t *testing.T) {
	c := newCoalescer(testWindow)
	t0 := time.Now()

	c.Observe("/items/a-0001/item.json", rawCreate, t0)
	c.Observe("/items/a-0001/item.json", rawWrite, t0.Add(10*time.Millisecond))
	c.Observe("/items/a-0001/item.json", rawWrite, t0.Add(20*time.Millisecond))

	due := c.Due(t0.Add(200 * time.Millisecond))
	if len(due) != 1 {
		t.Fatalf("Due() returned %d events, want 1", len(due))
	}
	if due[0].Op != OpAdded {
		t.Errorf("op = %s, want %s", due[0].Op, OpAdded)
	}
}

// TestCoalesceRemoveWins verifies that a remove arriving during the window
// supersedes earlier creates and writes.
func TestCoalesceRemoveWins(t *testing.T) {
	c := newCoalescer(testWindow)
	t0 := time.Now()

	c.Observe("/items/a-0001/item.json", rawWrite, t0)
	c.Observe("/items/a-0001/item.json", rawRemove, t0.Add(10*time.Millisecond))

	due := c.Due(t0.Add(200 * time.Millisecond))
	if len(due) != 1 || due[0].Op != OpRemoved {
		t.Fatalf("write+remove = %v, want one removed event", due)
	}

	c.Observe("/items/a-0002/item.json", rawCreate, t0)
	c.Observe("/items/a-0002/item.json", rawRemove, t0.Add(10*time.Millisecond))

	due = c.Due(t0.Add(200 * time.Millisecond))
	if len(due) != 1 || due[0].Op != OpRemoved {
		t.Fatalf("create+remove = %v, want one removed event", due)
	}
}

// TestCoalesceRecreate verifies that remove followed by create within one
// window folds to changed: the file exists again with new content.
func TestCoalesceRecreate(t *testing.T) {
	c := newCoalescer(testWindow)
	t0 := time.Now()

	c.Observe("/items/a-0001/item.json", rawRemove, t0)
	c.Observe("/items/a-0001/item.json", rawCreate, t0.Add(10*time.Millisecond))

	due := c.Due(t0.Add(200 * time.Millisecond))
	if len(due) != 1 || due[0].Op != OpChanged {
		t.Fatalf("remove+create = %v, want one changed event", due)
	}
}

// TestCoalesceWindowRestarts verifies that each new notification restarts
// the quiet clock rather than measuring from the first notification.
func TestCoalesceWindowRestarts(t *testing.T) {
	c := newCoalescer(testWindow)
	t0 := time.Now()

	c.Observe("/items/a-0001/item.json", rawWrite, t0)
	c.Observe("/items/a-0001/item.json", rawWrite, t0.Add(90*time.Millisecond))

	// 150ms after the first write but only 60ms after the second.
	if due := c.Due(t0.Add(150 * time.Millisecond)); len(due) != 0 {
		t.Fatalf("Due() fired before the window restarted: %v", due)
	}

	if due := c.Due(t0.Add(191 * time.Millisecond)); len(due) != 1 {
		t.Fatalf("Due() returned %d events, want 1", len(due))
	}
}

// TestCoalesceIndependentPaths verifies per-path windows and path-ordered
// output.
func TestCoalesceIndependentPaths(t *testing.T) {
	c := newCoalescer(testWindow)
	t0 := time.Now()

	c.Observe("/items/b-0001/item.json", rawWrite, t0)
	c.Observe("/items/a-0001/item.json", rawCreate, t0)
	c.Observe("/items/c-0001/item.json", rawWrite, t0.Add(80*time.Millisecond))

	due := c.Due(t0.Add(120 * time.Millisecond))
	if len(due) != 2 {
		t.Fatalf("Due() returned %d events, want 2", len(due))
	}
	if due[0].Path != "/items/a-0001/item.json" || due[1].Path != "/items/b-0001/item.json" {
		t.Errorf("events out of path order: %v", due)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 still pending", c.Len())
	}

	due = c.Due(t0.Add(200 * time.Millisecond))
	if len(due) != 1 || due[0].Path != "/items/c-0001/item.json" {
		t.Errorf("late path = %v", due)
	}
}
