package item

import "strings"

// ItemType is the hierarchy level encoded in a work-item id. It is always
// derived from the id shape and never stored, so type and depth cannot drift.
type ItemType string

const (
	TypeEpic    ItemType = "epic"
	TypeFeature ItemType = "feature"
	TypeTask    ItemType = "task"
	TypeSubtask ItemType = "subtask"
	TypeUnknown ItemType = "unknown"
)

// Types lists the known hierarchy levels in display order.
func Types() []ItemType {
	return []ItemType{TypeEpic, TypeFeature, TypeTask, TypeSubtask, TypeUnknown}
}

// Depth returns the number of ordinal segments in id beyond the project
// prefix. A bare prefix or an empty string has depth zero.
func Depth(id string) int {
	if id == "" {
		return 0
	}
	return strings.Count(id, "-")
}

// TypeOf derives the hierarchy level from the id alone.
func TypeOf(id string) ItemType {
	switch Depth(id) {
	case 1:
		return TypeEpic
	case 2:
		return TypeFeature
	case 3:
		return TypeTask
	case 4:
		return TypeSubtask
	default:
		return TypeUnknown
	}
}

// ParentID returns the id one level up the hierarchy, or "" when the item
// is top-level or the id has no segments to strip.
func ParentID(id string) string {
	tokens := strings.Split(id, "-")
	if len(tokens) <= 2 {
		return ""
	}
	return strings.Join(tokens[:len(tokens)-1], "-")
}
