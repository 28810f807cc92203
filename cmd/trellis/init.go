package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trellisdev/trellis/internal/config"
	"github.com/trellisdev/trellis/internal/item"
	"github.com/trellisdev/trellis/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up a config file and optional first epic",
	Long: `Interactively write a ` + config.FileName + ` in the current directory,
and optionally scaffold a first epic directory so the tree has something
to serve right away.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing "+config.FileName)
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(config.FileName); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.FileName)
	}

	var (
		root     = "."
		addr     = ":8080"
		logLevel = "info"
		makeEpic = true
		prefix   = "a"
		epicName string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Item root").
				Description("Directory scanned for work items").
				Value(&root),
			huh.NewInput().
				Title("Listen address").
				Description("Address the serve command binds to").
				Value(&addr),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&logLevel),
			huh.NewConfirm().
				Title("Create a first epic?").
				Value(&makeEpic),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Epic id prefix").
				Description("First id segment; the epic becomes <prefix>-0001").
				Validate(func(s string) error {
					if s == "" || strings.Contains(s, "-") {
						return fmt.Errorf("prefix must be non-empty and contain no hyphen")
					}
					return nil
				}).
				Value(&prefix),
			huh.NewInput().
				Title("Epic name").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}).
				Value(&epicName),
		).WithHideFunc(func() bool { return !makeEpic }),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	settings := struct {
		Root     string `yaml:"root"`
		Addr     string `yaml:"addr"`
		LogLevel string `yaml:"log-level"`
	}{root, addr, logLevel}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(config.FileName, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", ui.Accent(config.FileName))

	if makeEpic {
		id := prefix + "-0001"
		if err := writeEpic(root, id, strings.TrimSpace(epicName)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created epic %s\n", ui.Accent(id))
	}

	fmt.Fprintf(out, "\nRun %s to start serving.\n", ui.Accent("trellis serve"))
	return nil
}

// writeEpic scaffolds an item directory with a minimal definition file.
func writeEpic(root, id, name string) error {
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	now := time.Now().UTC()
	def := item.File{
		Name:    name,
		Status:  string(item.StatusPlanned),
		Created: now,
		Updated: now,
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	path := filepath.Join(dir, item.DefinitionFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
