// Package bench drives load against a running trellis server to size
// snapshot query latency and WebSocket connect fan-in under concurrency.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/trellisdev/trellis/internal/server"
)

// Options configure a bench run.
type Options struct {
	// BaseURL of a running server, e.g. http://127.0.0.1:8080.
	BaseURL string

	// Clients is the number of concurrent clients (default 10).
	Clients int

	// Requests is the number of list queries per client (default 50).
	Requests int

	// Logger for run progress (default slog.Default()).
	Logger *slog.Logger
}

// LatencyStats captures latency metrics for one phase.
type LatencyStats struct {
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Total  int
	Errors int
}

// Result aggregates a full bench run.
type Result struct {
	// List is GET /work-items latency under concurrency.
	List LatencyStats

	// Connect is WebSocket dial-to-init latency.
	Connect LatencyStats

	Elapsed time.Duration
}

// Run executes the list phase and the connect phase against the target
// server.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.Clients <= 0 {
		opts.Clients = 10
	}
	if opts.Requests <= 0 {
		opts.Requests = 50
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	start := time.Now()

	opts.Logger.Info("running list phase", "clients", opts.Clients, "requests", opts.Requests)
	list, err := runListPhase(ctx, opts)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("running connect phase", "clients", opts.Clients)
	connect, err := runConnectPhase(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Result{List: *list, Connect: *connect, Elapsed: time.Since(start)}, nil
}

// runListPhase fans out concurrent clients, each hammering the list
// endpoint and recording per-request latency.
func runListPhase(ctx context.Context, opts Options) (*LatencyStats, error) {
	var mu sync.Mutex
	var durations []time.Duration
	errCount := 0

	client := &http.Client{Timeout: 10 * time.Second}
	url := opts.BaseURL + "/work-items"

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Clients; i++ {
		g.Go(func() error {
			local := make([]time.Duration, 0, opts.Requests)
			failures := 0

			for j := 0; j < opts.Requests; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
				if err != nil {
					return err
				}

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					failures++
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()

				if resp.StatusCode != http.StatusOK {
					failures++
					continue
				}
				local = append(local, time.Since(start))
			}

			mu.Lock()
			durations = append(durations, local...)
			errCount += failures
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(durations) == 0 {
		return nil, fmt.Errorf("no successful list requests completed")
	}
	stats := computeLatencyStats(durations)
	stats.Errors = errCount
	return stats, nil
}

// runConnectPhase dials one WebSocket per client and measures the time
// until the init frame arrives.
func runConnectPhase(ctx context.Context, opts Options) (*LatencyStats, error) {
	wsURL := strings.Replace(opts.BaseURL, "http", "ws", 1) + "/ws"

	var mu sync.Mutex
	var durations []time.Duration
	errCount := 0

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Clients; i++ {
		g.Go(func() error {
			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			start := time.Now()
			conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
			if err != nil {
				mu.Lock()
				errCount++
				mu.Unlock()
				return nil
			}
			defer conn.Close(websocket.StatusNormalClosure, "")

			for {
				_, data, err := conn.Read(dialCtx)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					return nil
				}
				var msg server.Message
				if json.Unmarshal(data, &msg) == nil && msg.Type == server.MessageInit {
					break
				}
			}

			mu.Lock()
			durations = append(durations, time.Since(start))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(durations) == 0 {
		return nil, fmt.Errorf("no WebSocket clients reached init")
	}
	stats := computeLatencyStats(durations)
	stats.Errors = errCount
	return stats, nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Total: len(sorted),
	}
}
