package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/trellisdev/trellis/internal/hub"
	"github.com/trellisdev/trellis/internal/index"
	"github.com/trellisdev/trellis/internal/item"
	"github.com/trellisdev/trellis/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items from the tree",
	Long: `Scan the item root once and print the matching work items, ascending
by id. Type and status filters accept comma-separated values, and --since
accepts absolute dates as well as natural language.

Examples:
  trellis list
  trellis list --type epic,feature --status in-progress
  trellis list --search login --since "2 days ago"
  trellis list --since 2026-08-01 --json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringP("type", "t", "", "Filter by item type (epic, feature, task, subtask)")
	listCmd.Flags().StringP("status", "s", "", "Filter by workflow status")
	listCmd.Flags().String("search", "", "Filter by substring of id, name, or description")
	listCmd.Flags().String("since", "", "Only items updated at or after this time")
	listCmd.Flags().Bool("json", false, "Print items as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	var filter index.Filter
	for _, v := range csvValues(cmd, "type") {
		filter.Types = append(filter.Types, item.ItemType(v))
	}
	for _, v := range csvValues(cmd, "status") {
		filter.Statuses = append(filter.Statuses, item.Status(v))
	}
	filter.Search, _ = cmd.Flags().GetString("search")
	if v, _ := cmd.Flags().GetString("since"); v != "" {
		ts, err := parseSince(v)
		if err != nil {
			return err
		}
		filter.Since = ts
	}

	items := snap.Select(filter)
	if items == nil {
		items = []*item.WorkItem{}
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal items: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No work items found.")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(out, "%s %s %s %s\n",
			cell(ui.Dim(it.ID), it.ID, 26),
			cell(ui.Type(it.Type), string(it.Type), 8),
			cell(ui.Status(it.Status), string(it.Status), 12),
			it.Name)
	}
	fmt.Fprintf(out, "\n%s\n", ui.Dim(fmt.Sprintf("%d items", len(items))))
	return nil
}

// csvValues splits a comma-separated flag into trimmed, non-empty values.
func csvValues(cmd *cobra.Command, name string) []string {
	raw, _ := cmd.Flags().GetString(name)
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// cell right-pads a colored value to width using the plain text length,
// since ANSI escapes make Printf width counts wrong.
func cell(colored, plain string, width int) string {
	if n := width - len(plain); n > 0 {
		return colored + strings.Repeat(" ", n)
	}
	return colored
}

// parseSince accepts RFC 3339 timestamps and plain dates before falling
// back to natural-language parsing ("2 days ago", "last monday").
func parseSince(text string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time expression %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized time expression %q", text)
	}
	return r.Time, nil
}
