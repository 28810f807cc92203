package index

import (
	"log/slog"
	"sort"
	"time"

	"github.com/trellisdev/trellis/internal/item"
)

// Build links a flat batch of items into a Snapshot. The batch becomes
// owned by the snapshot: child links are written into the items, and
// nothing may mutate them afterwards.
//
// The build runs in three phases. First the batch is indexed by id; when
// two items claim the same id the later one wins and a warning is logged.
// Second, every item is linked to its parent; an item whose derived parent
// is not in the batch is kept as an additional root with a warning, never
// dropped. Third, all sibling lists and the root list are sorted ascending
// by id so identical inputs always produce identical output order.
func Build(items []*item.WorkItem, logger *slog.Logger) *Snapshot {
	byID := make(map[string]*item.WorkItem, len(items))
	for _, it := range items {
		if prev, ok := byID[it.ID]; ok {
			logger.Warn("duplicate item id, keeping the later copy",
				"id", it.ID, "kept", it.Dir, "dropped", prev.Dir)
		}
		it.ChildIDs = nil
		byID[it.ID] = it
	}

	var roots []string
	for id, it := range byID {
		if it.ParentID == "" {
			roots = append(roots, id)
			continue
		}
		parent, ok := byID[it.ParentID]
		if !ok {
			logger.Warn("orphaned item, keeping as root",
				"id", id, "missing_parent", it.ParentID)
			roots = append(roots, id)
			continue
		}
		parent.ChildIDs = append(parent.ChildIDs, id)
	}

	for _, it := range byID {
		sort.Strings(it.ChildIDs)
	}
	sort.Strings(roots)

	return &Snapshot{
		items: byID,
		roots: roots,
		built: time.Now(),
	}
}
