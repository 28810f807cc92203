package server

import (
	"sort"
	"time"

	"github.com/trellisdev/trellis/internal/index"
	"github.com/trellisdev/trellis/internal/item"
)

// ItemRef is a compact pointer to another work item.
type ItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChildRef summarizes a direct child. Children are never expanded
// recursively in list or detail views; clients follow the id.
type ChildRef struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Type   item.ItemType `json:"type"`
	Status item.Status   `json:"status"`
}

// Progress counts completed descendants under an item.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Entry is the wire shape of one work item: the definition fields plus
// the resolved structure around it. Doc and Context are attached only by
// the single-item detail endpoint.
type Entry struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         item.ItemType  `json:"type"`
	Status       item.Status    `json:"status"`
	Column       item.Column    `json:"column"`
	Description  string         `json:"description,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Created      time.Time      `json:"created"`
	Updated      time.Time      `json:"updated"`
	Parent       *ItemRef       `json:"parent,omitempty"`
	Epic         *ItemRef       `json:"epic,omitempty"`
	Children     []ChildRef     `json:"children"`
	Progress     Progress       `json:"progress"`
	Doc          string         `json:"doc,omitempty"`
	Context      string         `json:"context,omitempty"`
}

// ListResponse wraps the flattened item list.
type ListResponse struct {
	Items []Entry `json:"items"`
	Total int     `json:"total"`
}

// ColumnGroup is one board column with its items. Empty columns stay in
// the response so the board renders a stable layout.
type ColumnGroup struct {
	Column item.Column `json:"column"`
	Items  []Entry     `json:"items"`
}

// Group is one epic or type bucket, sub-bucketed by column.
type Group struct {
	Key     string        `json:"key"`
	Epic    *ItemRef      `json:"epic,omitempty"`
	Columns []ColumnGroup `json:"columns"`
}

// GroupedResponse is the board view of the index. Status grouping fills
// Columns; epic and type grouping fill Groups.
type GroupedResponse struct {
	GroupBy string        `json:"groupBy"`
	Columns []ColumnGroup `json:"columns,omitempty"`
	Groups  []Group       `json:"groups,omitempty"`
}

// newEntry resolves one work item against its snapshot: parent and child
// names, the owning top-level ancestor, and descendant progress. An
// orphan's parent does not resolve and is simply omitted.
func newEntry(snap *index.Snapshot, it *item.WorkItem) Entry {
	e := Entry{
		ID:           it.ID,
		Name:         it.Name,
		Type:         it.Type,
		Status:       it.Status,
		Column:       it.Status.Column(),
		Description:  it.Description,
		Dependencies: it.Dependencies,
		Metadata:     it.Metadata,
		Created:      it.Created,
		Updated:      it.Updated,
		Children:     make([]ChildRef, 0, len(it.ChildIDs)),
		Doc:          it.Doc,
		Context:      it.Context,
	}

	if parent, ok := snap.Item(it.ParentID); ok {
		e.Parent = &ItemRef{ID: parent.ID, Name: parent.Name}
	}
	if root := snap.RootAncestor(it.ID); root != nil && root.ID != it.ID {
		e.Epic = &ItemRef{ID: root.ID, Name: root.Name}
	}
	for _, child := range snap.Children(it.ID) {
		e.Children = append(e.Children, ChildRef{
			ID:     child.ID,
			Name:   child.Name,
			Type:   child.Type,
			Status: child.Status,
		})
	}
	e.Progress.Done, e.Progress.Total = snap.Progress(it.ID)

	return e
}

func newEntries(snap *index.Snapshot, items []*item.WorkItem) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, newEntry(snap, it))
	}
	return entries
}

// groupByStatus buckets every item into its board column.
func groupByStatus(snap *index.Snapshot) GroupedResponse {
	return GroupedResponse{
		GroupBy: "status",
		Columns: columnBuckets(snap, snap.Items()),
	}
}

// groupByEpic buckets items under their top-level ancestor, sub-bucketed
// by column. Orphan roots bucket under themselves like any other root.
func groupByEpic(snap *index.Snapshot) GroupedResponse {
	byEpic := make(map[string][]*item.WorkItem)
	for _, it := range snap.Items() {
		root := snap.RootAncestor(it.ID)
		if root == nil {
			continue
		}
		byEpic[root.ID] = append(byEpic[root.ID], it)
	}

	keys := make([]string, 0, len(byEpic))
	for id := range byEpic {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	resp := GroupedResponse{GroupBy: "epic", Groups: []Group{}}
	for _, id := range keys {
		root, _ := snap.Item(id)
		resp.Groups = append(resp.Groups, Group{
			Key:     id,
			Epic:    &ItemRef{ID: root.ID, Name: root.Name},
			Columns: columnBuckets(snap, byEpic[id]),
		})
	}
	return resp
}

// groupByType buckets items by their depth-derived type in display order,
// sub-bucketed by column. Empty type buckets are dropped.
func groupByType(snap *index.Snapshot) GroupedResponse {
	byType := make(map[item.ItemType][]*item.WorkItem)
	for _, it := range snap.Items() {
		byType[it.Type] = append(byType[it.Type], it)
	}

	resp := GroupedResponse{GroupBy: "type", Groups: []Group{}}
	for _, t := range item.Types() {
		items := byType[t]
		if len(items) == 0 {
			continue
		}
		resp.Groups = append(resp.Groups, Group{
			Key:     string(t),
			Columns: columnBuckets(snap, items),
		})
	}
	return resp
}

func columnBuckets(snap *index.Snapshot, items []*item.WorkItem) []ColumnGroup {
	byColumn := make(map[item.Column][]Entry)
	for _, it := range items {
		col := it.Status.Column()
		byColumn[col] = append(byColumn[col], newEntry(snap, it))
	}

	groups := make([]ColumnGroup, 0, len(item.Columns()))
	for _, col := range item.Columns() {
		entries := byColumn[col]
		if entries == nil {
			entries = []Entry{}
		}
		groups = append(groups, ColumnGroup{Column: col, Items: entries})
	}
	return groups
}
