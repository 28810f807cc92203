package item

import (
	"fmt"
	"time"
)

// Well-known file names inside an item directory.
const (
	DefinitionFile = "item.json"
	DocFile        = "doc.md"
	ContextFile    = "context.md"
)

// Status is the workflow state stored in an item-definition file. Statuses
// are written by external tools; this package reads them and passes
// unrecognized values through unchanged.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in-progress"
	StatusGenerating Status = "generating"
	StatusGenerated  Status = "generated"
	StatusInReview   Status = "in-review"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
	StatusSuperseded Status = "superseded"
)

// Column is a board bucket for grouped display.
type Column string

const (
	ColumnBacklog    Column = "backlog"
	ColumnReady      Column = "ready"
	ColumnInProgress Column = "in-progress"
	ColumnReview     Column = "review"
	ColumnDone       Column = "done"
)

// Columns lists the board columns in display order.
func Columns() []Column {
	return []Column{ColumnBacklog, ColumnReady, ColumnInProgress, ColumnReview, ColumnDone}
}

// Column folds a workflow status into its board column. Statuses this
// package does not recognize land in backlog.
func (s Status) Column() Column {
	switch s {
	case StatusPlanned:
		return ColumnBacklog
	case StatusReady:
		return ColumnReady
	case StatusInProgress, StatusGenerating:
		return ColumnInProgress
	case StatusGenerated, StatusInReview:
		return ColumnReview
	case StatusDone, StatusCancelled, StatusSuperseded:
		return ColumnDone
	default:
		return ColumnBacklog
	}
}

// File is the on-disk shape of an item-definition file. The item id is not
// stored here; it comes from the name of the directory holding the file.
type File struct {
	Name         string         `json:"name" jsonschema:"description=Human-readable item name"`
	Status       string         `json:"status" jsonschema:"description=Workflow status (planned, ready, in-progress, generating, generated, in-review, done, cancelled, superseded)"`
	Dependencies []string       `json:"dependencies,omitempty" jsonschema:"description=Ordered ids of items this item depends on; dangling references are allowed"`
	Description  string         `json:"description,omitempty" jsonschema:"description=Free-form summary"`
	Metadata     map[string]any `json:"metadata,omitempty" jsonschema:"description=Opaque pass-through fields for external tools"`
	Created      time.Time      `json:"created" jsonschema:"description=Creation timestamp"`
	Updated      time.Time      `json:"updated" jsonschema:"description=Last modification timestamp"`
}

// Validate checks the fields a definition file must carry.
func (f *File) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// SetDefaults fills optional fields so downstream code sees consistent
// values regardless of what the writer omitted.
func (f *File) SetDefaults() {
	if f.Status == "" {
		f.Status = string(StatusPlanned)
	}
}

// ToItem converts the file contents into a WorkItem rooted at the given id.
// Type and parent id are derived from the id, dir records where the item
// was loaded from.
func (f *File) ToItem(id, dir string) *WorkItem {
	return &WorkItem{
		ID:           id,
		Name:         f.Name,
		Type:         TypeOf(id),
		Status:       Status(f.Status),
		Dependencies: f.Dependencies,
		Description:  f.Description,
		Metadata:     f.Metadata,
		Created:      f.Created,
		Updated:      f.Updated,
		ParentID:     ParentID(id),
		Dir:          dir,
	}
}

// WorkItem is one node of the hierarchy: the definition file contents plus
// the structure derived from its id. Links are held as ids, not pointers,
// so a batch of items plus the id index is the whole graph.
type WorkItem struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         ItemType       `json:"type"`
	Status       Status         `json:"status"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Description  string         `json:"description,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Created      time.Time      `json:"created"`
	Updated      time.Time      `json:"updated"`

	// ParentID is derived from the id. It names the parent even when that
	// parent is missing from the tree; resolution happens at link time.
	ParentID string `json:"parent_id,omitempty"`
	// ChildIDs is populated when a batch is linked, ascending by id.
	ChildIDs []string `json:"child_ids,omitempty"`

	// Doc and Context hold companion file contents, attached only on
	// full-detail loads.
	Doc     string `json:"doc,omitempty"`
	Context string `json:"context,omitempty"`

	// Dir is the directory the item was loaded from.
	Dir string `json:"-"`
}
