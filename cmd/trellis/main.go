// Package main provides the trellis CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/trellisdev/trellis/internal/config"
	"github.com/trellisdev/trellis/internal/logging"
	"github.com/trellisdev/trellis/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "trellis",
	Short: "Live index over a directory tree of work items",
	Long: `Trellis watches a directory tree of work-item definition files and serves
a live hierarchical index over HTTP and WebSocket.

Work items are plain directories: the directory name is the item id, the
item.json inside is the definition, and optional doc.md and context.md
siblings carry long-form text. Ids are hyphen-segmented and the segment
count encodes the level (a-0001 is an epic, a-0001-0001 a feature, and so
on down to subtasks). Trellis never writes item files, it only reads them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.FileName+" in the working directory)")
	rootCmd.PersistentFlags().String("root", ".", "Directory scanned for work items")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to a rotated file instead of stderr")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

// loadConfig resolves the command's flags against environment variables
// and the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.NoColor {
		ui.Disable()
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		NoColor: cfg.NoColor,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
