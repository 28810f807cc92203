package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trellisdev/trellis/internal/hub"
	"github.com/trellisdev/trellis/internal/server"
	"github.com/trellisdev/trellis/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live work-item index over HTTP and WebSocket",
	Long: `Scan the item tree, serve the index over HTTP, and keep it fresh by
watching the tree for changes. Connected WebSocket clients are nudged to
refetch whenever a rebuild lands.

Endpoints:
  GET  /work-items           list items, filterable by type, status, search
  GET  /work-items/grouped   board view grouped by status, epic, or type
  GET  /work-items/{id}      single item with long-form fields attached
  GET  /work-items/{id}/doc  rendered doc.md companion
  GET  /health               index and client counters
  POST /rebuild              force a rescan
  WS   /ws                   change notifications

Examples:
  trellis serve
  trellis serve --root ./items --addr :9090
  trellis serve --debounce 250ms --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("debounce", 100*time.Millisecond, "Quiet window before a file change triggers a rebuild")
	serveCmd.Flags().Duration("ping-interval", 30*time.Second, "WebSocket keepalive interval")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.New(cfg.Root, logger)
	snap, err := h.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("initial scan of %s failed: %w", cfg.Root, err)
	}
	logger.Info("initial scan complete", "root", cfg.Root, "items", snap.Len(), "roots", len(snap.Roots()))

	w, err := watch.New(cfg.Root, &watch.Config{Window: cfg.Debounce, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		// A vanished root is survivable: the index stays at its last
		// snapshot and /rebuild still works.
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		logger.Warn("item root not watchable, live updates disabled", "root", cfg.Root, "error", err)
	} else {
		go h.Run(ctx, w.Events())
	}

	s := server.New(h, &server.Config{
		Addr:         cfg.Addr,
		PingInterval: cfg.PingInterval,
		Logger:       logger,
	})
	if err := s.Start(); err != nil {
		if w.IsRunning() {
			w.Stop()
		}
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("serving work items", "addr", s.Addr(), "watching", w.IsRunning())

	<-ctx.Done()
	logger.Info("shutting down")

	if err := w.Stop(); err != nil {
		logger.Warn("watcher shutdown failed", "error", err)
	}
	if err := s.Stop(); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
