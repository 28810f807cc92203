package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/trellisdev/trellis/internal/hub"
	"github.com/trellisdev/trellis/internal/index"
	"github.com/trellisdev/trellis/internal/item"
	"github.com/trellisdev/trellis/internal/ui"
)

var treeCmd = &cobra.Command{
	Use:   "tree [id]",
	Short: "Print the work-item hierarchy",
	Long: `Print the work-item tree, one branch per top-level item. With an id
argument only that item's subtree is printed.

Examples:
  trellis tree
  trellis tree a-0001
  trellis tree --root ./items`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	h := hub.New(cfg.Root, logger)
	snap, err := h.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", cfg.Root, err)
	}

	roots := snap.Roots()
	if len(args) == 1 {
		it, ok := snap.Item(args[0])
		if !ok {
			return fmt.Errorf("no work item with id %s", args[0])
		}
		roots = []*item.WorkItem{it}
	}

	out := cmd.OutOrStdout()
	if len(roots) == 0 {
		fmt.Fprintln(out, "No work items found.")
		return nil
	}
	for i, root := range roots {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, itemLine(snap, root))
		writeBranch(out, snap, root, "")
	}
	return nil
}

func writeBranch(out io.Writer, snap *index.Snapshot, it *item.WorkItem, prefix string) {
	children := snap.Children(it.ID)
	for i, child := range children {
		glyph, next := "├── ", prefix+"│   "
		if i == len(children)-1 {
			glyph, next = "└── ", prefix+"    "
		}
		fmt.Fprintf(out, "%s%s%s\n", prefix, glyph, itemLine(snap, child))
		writeBranch(out, snap, child, next)
	}
}

func itemLine(snap *index.Snapshot, it *item.WorkItem) string {
	line := fmt.Sprintf("%s %s %s", ui.Dim(it.ID), it.Name, ui.Status(it.Status))
	if done, total := snap.Progress(it.ID); total > 0 {
		line += " " + ui.Progress(done, total)
	}
	return line
}
