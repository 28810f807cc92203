// Package index links flat batches of work items into immutable snapshots
// of the hierarchy and answers queries against them.
//
// A Snapshot is built in one shot and never modified after publication;
// concurrent readers share it freely while the next rebuild assembles its
// replacement off to the side. Links are held as ids resolved through the
// snapshot's id index, so the item batch plus the index is the whole graph.
package index

import (
	"sort"
	"strings"
	"time"

	"github.com/trellisdev/trellis/internal/item"
)

// Snapshot is one fully linked view of the work-item hierarchy. It is
// read-only once built; rebuilds produce a fresh Snapshot.
type Snapshot struct {
	items map[string]*item.WorkItem
	roots []string
	built time.Time
}

// Item looks up a work item by id.
func (s *Snapshot) Item(id string) (*item.WorkItem, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Len returns the number of items in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// BuiltAt returns when this snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time {
	return s.built
}

// Roots returns the top-level items, ascending by id. Orphans whose parent
// could not be resolved are included here.
func (s *Snapshot) Roots() []*item.WorkItem {
	return s.resolve(s.roots)
}

// Items returns every item, ascending by id.
func (s *Snapshot) Items() []*item.WorkItem {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return s.resolve(ids)
}

// Children returns the direct children of id, ascending by id.
func (s *Snapshot) Children(id string) []*item.WorkItem {
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	return s.resolve(it.ChildIDs)
}

// Ancestors returns the resolved parent chain of id, nearest first. The
// chain stops at the first parent missing from the snapshot, so an orphan
// has no ancestors even though its id names one.
func (s *Snapshot) Ancestors(id string) []*item.WorkItem {
	var chain []*item.WorkItem
	it, ok := s.items[id]
	for ok {
		it, ok = s.items[it.ParentID]
		if ok {
			chain = append(chain, it)
		}
	}
	return chain
}

// RootAncestor returns the topmost resolvable ancestor of id, or the item
// itself when it has none. Returns nil for an unknown id.
func (s *Snapshot) RootAncestor(id string) *item.WorkItem {
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	if chain := s.Ancestors(id); len(chain) > 0 {
		return chain[len(chain)-1]
	}
	return it
}

// Descendants returns every item below id, depth first with siblings
// ascending by id. The item itself is not included.
func (s *Snapshot) Descendants(id string) []*item.WorkItem {
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	var out []*item.WorkItem
	var walk func(*item.WorkItem)
	walk = func(node *item.WorkItem) {
		for _, childID := range node.ChildIDs {
			child, ok := s.items[childID]
			if !ok {
				continue
			}
			out = append(out, child)
			walk(child)
		}
	}
	walk(it)
	return out
}

// Progress reports completed versus total work under id. It counts every
// strict descendant, with done meaning status done exactly; an item with no
// children counts itself. Returns zeros for an unknown id.
func (s *Snapshot) Progress(id string) (done, total int) {
	it, ok := s.items[id]
	if !ok {
		return 0, 0
	}
	nodes := s.Descendants(id)
	if len(nodes) == 0 {
		nodes = []*item.WorkItem{it}
	}
	for _, n := range nodes {
		total++
		if n.Status == item.StatusDone {
			done++
		}
	}
	return done, total
}

// Filter selects items for listing queries. Zero-valued fields match
// everything.
type Filter struct {
	// Types keeps items whose derived type is in the set.
	Types []item.ItemType
	// Statuses keeps items whose workflow status is in the set.
	Statuses []item.Status
	// Search keeps items whose id, name, or description contains the text,
	// case-insensitively.
	Search string
	// Since keeps items updated at or after the given instant.
	Since time.Time
}

// Select returns the items matching f, ascending by id.
func (s *Snapshot) Select(f Filter) []*item.WorkItem {
	var out []*item.WorkItem
	for _, it := range s.Items() {
		if f.matches(it) {
			out = append(out, it)
		}
	}
	return out
}

func (f Filter) matches(it *item.WorkItem) bool {
	if len(f.Types) > 0 && !containsType(f.Types, it.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, it.Status) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(it.ID), needle) &&
			!strings.Contains(strings.ToLower(it.Name), needle) &&
			!strings.Contains(strings.ToLower(it.Description), needle) {
			return false
		}
	}
	if !f.Since.IsZero() && it.Updated.Before(f.Since) {
		return false
	}
	return true
}

func containsType(set []item.ItemType, t item.ItemType) bool {
	for _, v := range set {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(set []item.Status, st item.Status) bool {
	for _, v := range set {
		if v == st {
			return true
		}
	}
	return false
}

func (s *Snapshot) resolve(ids []string) []*item.WorkItem {
	out := make([]*item.WorkItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out
}
