package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		version, goVersion, revision, dirty := buildInfo()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "trellis %s\n", version)
		fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		fmt.Fprintf(out, "  Revision:   %s\n", revision)
		if dirty {
			fmt.Fprintf(out, "  Modified:   true\n")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func buildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
