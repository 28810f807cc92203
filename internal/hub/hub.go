// Package hub owns the published snapshot and keeps it current.
//
// The hub rebuilds the whole index from disk whenever the watcher reports
// settled changes, then swaps the published snapshot pointer in one step.
// Readers always see a complete snapshot: either the previous one or the
// new one, never a half-built state. When a rebuild fails the previous
// snapshot stays published and no notification goes out.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trellisdev/trellis/internal/index"
	"github.com/trellisdev/trellis/internal/item"
	"github.com/trellisdev/trellis/internal/watch"
)

// Notice describes a completed rebuild to subscribers.
type Notice struct {
	// Items is the number of items in the new snapshot.
	Items int
	// Roots is the number of top-level items.
	Roots int
	// BuiltAt is when the snapshot was assembled.
	BuiltAt time.Time
}

// Hub owns the published snapshot and fans rebuild notices out to
// subscribers.
type Hub struct {
	root   string
	logger *slog.Logger

	mu   sync.RWMutex
	snap *index.Snapshot

	subsMu sync.RWMutex
	subs   map[chan Notice]struct{}
}

// New creates a hub over the item tree rooted at root. The hub starts with
// an empty snapshot; call Rebuild to load the tree.
func New(root string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		root:   root,
		logger: logger,
		snap:   index.Build(nil, logger),
		subs:   make(map[chan Notice]struct{}),
	}
}

// Snapshot returns the currently published snapshot. It never blocks on a
// rebuild in flight.
func (h *Hub) Snapshot() *index.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Rebuild rescans the tree, links a fresh snapshot, publishes it, and
// notifies subscribers. On failure the previously published snapshot is
// retained and no notice goes out.
//
// Concurrent rebuilds are not serialized: each publishes whole, and the
// last to finish wins. Callers bound the work through ctx.
func (h *Hub) Rebuild(ctx context.Context) (*index.Snapshot, error) {
	started := time.Now()

	paths, err := item.Scan(ctx, h.root, h.logger)
	if err != nil {
		h.logger.Error("rebuild failed, keeping previous snapshot", "error", err)
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	items := item.ReadAll(ctx, paths, h.logger)
	if err := ctx.Err(); err != nil {
		h.logger.Error("rebuild cancelled, keeping previous snapshot", "error", err)
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	snap := index.Build(items, h.logger)

	h.mu.Lock()
	h.snap = snap
	h.mu.Unlock()

	h.logger.Info("index rebuilt",
		"items", snap.Len(),
		"roots", len(snap.Roots()),
		"elapsed", time.Since(started).Round(time.Millisecond))

	h.notify(Notice{Items: snap.Len(), Roots: len(snap.Roots()), BuiltAt: snap.BuiltAt()})
	return snap, nil
}

// Subscribe registers for rebuild notices. The returned cancel function
// unregisters and closes the channel. Delivery is at most once per
// rebuild: a subscriber that cannot keep up misses notices rather than
// slowing anyone down.
func (h *Hub) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 8)

	h.subsMu.Lock()
	h.subs[ch] = struct{}{}
	h.subsMu.Unlock()

	cancel := func() {
		h.subsMu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.subsMu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) notify(n Notice) {
	h.subsMu.RLock()
	defer h.subsMu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.logger.Warn("subscriber lagging, dropping notice")
		}
	}
}

// Run consumes settled change events and rebuilds once per batch. Events
// already queued behind the first are drained before rebuilding so one
// bulk edit triggers one rebuild. Run returns when ctx is cancelled or the
// events channel closes.
func (h *Hub) Run(ctx context.Context, events <-chan watch.Event) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			batch := 1
			for drained := false; !drained; {
				select {
				case _, ok := <-events:
					if !ok {
						drained = true
						break
					}
					batch++
				default:
					drained = true
				}
			}
			h.logger.Debug("change batch settled", "first", ev.Path, "size", batch)
			if _, err := h.Rebuild(ctx); err != nil && ctx.Err() != nil {
				return
			}
		}
	}
}
