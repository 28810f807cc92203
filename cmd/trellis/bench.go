package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/trellisdev/trellis/internal/bench"
	"github.com/trellisdev/trellis/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load-test a running trellis server",
	Long: `Fan concurrent clients out against a running server: each client
hammers the list endpoint, then every client opens a WebSocket and waits
for the initial state message.

Examples:
  trellis bench --url http://localhost:8080
  trellis bench --url http://localhost:8080 --clients 50 --requests 200
  trellis bench --url http://localhost:8080 --json`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().String("url", "http://localhost:8080", "Base URL of the server under test")
	benchCmd.Flags().Int("clients", 10, "Number of concurrent clients")
	benchCmd.Flags().Int("requests", 50, "List requests per client")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	url, _ := cmd.Flags().GetString("url")
	clients, _ := cmd.Flags().GetInt("clients")
	requests, _ := cmd.Flags().GetInt("requests")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if clients <= 0 {
		return fmt.Errorf("--clients must be positive")
	}
	if requests <= 0 {
		return fmt.Errorf("--requests must be positive")
	}

	result, err := bench.Run(cmd.Context(), bench.Options{
		BaseURL:  url,
		Clients:  clients,
		Requests: requests,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Configuration: %d clients, %d list requests each\n\n", clients, requests)
	printStats(out, "List Requests", result.List)
	fmt.Fprintln(out)
	printStats(out, "WebSocket Connect", result.Connect)
	fmt.Fprintf(out, "\nTotal elapsed: %v\n", result.Elapsed)
	return nil
}

func printStats(out io.Writer, title string, s bench.LatencyStats) {
	fmt.Fprintf(out, "%s:\n", ui.Accent(title))
	fmt.Fprintf(out, "  Total:        %d\n", s.Total)
	if s.Errors > 0 {
		fmt.Fprintf(out, "  Errors:       %s\n", ui.Fail(fmt.Sprintf("%d", s.Errors)))
	} else {
		fmt.Fprintf(out, "  Errors:       %d\n", s.Errors)
	}
	fmt.Fprintf(out, "  Min:          %v\n", s.Min)
	fmt.Fprintf(out, "  P50 (Median): %v\n", s.P50)
	fmt.Fprintf(out, "  Mean:         %v\n", s.Mean)
	fmt.Fprintf(out, "  P95:          %v\n", s.P95)
	fmt.Fprintf(out, "  P99:          %v\n", s.P99)
	fmt.Fprintf(out, "  Max:          %v\n", s.Max)
}
