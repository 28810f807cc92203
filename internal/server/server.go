// Package server exposes the hub's published snapshot over HTTP and a
// real-time WebSocket channel.
//
// The request/response side serves list, board, and detail views plus the
// rendered companion documents. The WebSocket side tells connected clients
// when the snapshot changed; clients re-fetch over HTTP, the channel never
// replays state.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/trellisdev/trellis/internal/hub"
)

const (
	writeTimeout        = 5 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address (default ":8080").
	Addr string

	// PingInterval is how often connected clients are probed. A client
	// that misses two probes in a row is pruned (default 30s).
	PingInterval time.Duration

	// Renderer formats companion documents (default passthrough).
	Renderer Renderer

	// Logger for server activity (default slog.Default()).
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		PingInterval: defaultPingInterval,
		Renderer:     PassthroughRenderer{},
		Logger:       slog.Default(),
	}
}

// Server serves a hub's snapshots to HTTP and WebSocket clients.
type Server struct {
	hub  *hub.Hub
	addr string

	listener net.Listener
	server   *http.Server

	renderer     Renderer
	pingInterval time.Duration

	// WebSocket client registry, value is last time the client was seen
	// answering.
	clients   map[*websocket.Conn]time.Time
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// New creates a server over the given hub.
func New(h *hub.Hub, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaultPingInterval
	}
	if config.Renderer == nil {
		config.Renderer = PassthroughRenderer{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		hub:          h,
		addr:         config.Addr,
		renderer:     config.Renderer,
		pingInterval: config.PingInterval,
		clients:      make(map[*websocket.Conn]time.Time),
		broadcast:    make(chan Message, 100),
		ctx:          ctx,
		cancel:       cancel,
		logger:       config.Logger,
	}
}

// Handler returns the HTTP routing table. Exported so tests can drive the
// mux without a live listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /work-items", s.handleList)
	mux.HandleFunc("GET /work-items/grouped", s.handleGrouped)
	mux.HandleFunc("GET /work-items/{id}", s.handleItem)
	mux.HandleFunc("GET /work-items/{id}/doc", s.handleDoc)
	mux.HandleFunc("GET /work-items/{id}/context", s.handleContext)
	mux.HandleFunc("GET /schema/item", s.handleSchema)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /rebuild", s.handleRebuild)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

// Start begins serving HTTP and WebSocket traffic.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(3)
	go s.broadcastLoop()
	go s.notifyLoop()
	go s.pingLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server. Stopping a server that never
// started is a no-op.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}

	s.logger.Info("stopping server")

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	s.logger.Info("server stopped")
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
