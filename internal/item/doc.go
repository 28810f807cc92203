// Package item defines the on-disk schema and in-memory model for work items.
//
// # Overview
//
// A work item lives in its own directory; the directory name is the item id.
// The directory holds a single fixed-name definition file plus optional
// long-form companions:
//
//	a-0001/
//	  item.json     definition (name, status, dependencies, ...)
//	  doc.md        optional documentation
//	  context.md    optional inherited context
//
// The id is never stored inside the file. It is derived from the directory
// name, and the id alone encodes the item's place in the hierarchy.
//
// # Id Grammar
//
// Ids are hyphen-separated: a project prefix followed by ordinal segments.
// The number of segments determines the level:
//
//	a-0001                epic
//	a-0001-0002           feature
//	a-0001-0002-0003      task
//	a-0001-0002-0003-0004 subtask
//
// Anything else (including a bare prefix) is TypeUnknown. The parent id is
// the id with its last segment removed; top-level items have no parent.
// TypeOf and ParentID are pure functions of the id string and never fail.
//
// Physical nesting of item directories is allowed but carries no meaning:
// hierarchy comes from ids only.
//
// # Reading
//
// ReadFile parses one definition file strictly: unparseable content is an
// error for the caller to log, never a panic. ReadAll reads a batch
// concurrently and drops files that fail, so one corrupt item costs exactly
// that item and nothing else.
//
// # Statuses and Columns
//
// Status is a workflow value written by external tools and passed through
// verbatim. Column folds the nine workflow statuses into the five board
// columns used for grouped display:
//
//	planned                    -> backlog
//	ready                      -> ready
//	in-progress, generating    -> in-progress
//	generated, in-review       -> review
//	done, cancelled, superseded -> done
//
// Unrecognized statuses land in backlog.
package item
