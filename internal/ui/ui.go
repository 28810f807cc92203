// Package ui holds the terminal styling for CLI output.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/trellisdev/trellis/internal/item"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	typeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
)

func init() {
	if termenv.EnvNoColor() {
		Disable()
	}
}

// Disable strips colors from all subsequent rendering.
func Disable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// Accent renders headings and ids.
func Accent(s string) string { return accentStyle.Render(s) }

// Dim renders secondary detail.
func Dim(s string) string { return dimStyle.Render(s) }

// Fail renders error text.
func Fail(s string) string { return failStyle.Render(s) }

// Type renders a work-item type label.
func Type(t item.ItemType) string { return typeStyle.Render(string(t)) }

// Status renders a workflow status colored by its board column.
func Status(st item.Status) string {
	switch st.Column() {
	case item.ColumnDone:
		return doneStyle.Render(string(st))
	case item.ColumnInProgress, item.ColumnReview:
		return activeStyle.Render(string(st))
	case item.ColumnReady:
		return accentStyle.Render(string(st))
	default:
		return dimStyle.Render(string(st))
	}
}

// Progress renders a done/total descendant count. Items with nothing
// underneath render dim, finished subtrees render green.
func Progress(done, total int) string {
	s := fmt.Sprintf("%d/%d", done, total)
	switch {
	case total == 0:
		return dimStyle.Render(s)
	case done == total:
		return doneStyle.Render(s)
	default:
		return activeStyle.Render(s)
	}
}
