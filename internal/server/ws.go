package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of a real-time channel message.
type MessageType string

const (
	// MessageInit is sent once on connect and carries current snapshot
	// counts.
	MessageInit MessageType = "init"

	// MessageUpdate is sent after each successful rebuild. It signals
	// "something changed, re-fetch"; it never carries item bodies.
	MessageUpdate MessageType = "update"

	// MessagePing is the periodic liveness probe.
	MessagePing MessageType = "ping"

	// MessagePong is the client's reply to a ping.
	MessagePong MessageType = "pong"
)

// Message is the wire envelope of the real-time channel.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// UpdateData accompanies init and update messages.
type UpdateData struct {
	Items   int       `json:"items"`
	Roots   int       `json:"roots"`
	BuiltAt time.Time `json:"builtAt"`
}

// Broadcast queues a message for all connected clients. Delivery is
// at-most-once; nothing is queued for clients that are not connected.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("broadcast channel full, dropping message")
	}
}

// handleWebSocket upgrades HTTP connections and registers the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = time.Now()
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("client connected", "clients", count)

	snap := s.hub.Snapshot()
	init := Message{Type: MessageInit, Timestamp: time.Now()}
	if data, err := json.Marshal(UpdateData{
		Items:   snap.Len(),
		Roots:   len(snap.Roots()),
		BuiltAt: snap.BuiltAt(),
	}); err == nil {
		init.Data = data
	}
	s.send(conn, init)

	go s.readLoop(conn)
}

// readLoop drains client messages until the connection drops. Pong
// replies mark the client alive; everything else is ignored.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessagePong {
			s.touch(conn)
		}
	}
}

// send writes one message to one client with a bounded timeout. A failed
// write drops the client.
func (s *Server) send(conn *websocket.Conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	err = conn.Write(ctx, websocket.MessageText, data)
	cancel()

	if err != nil {
		s.removeClient(conn)
	}
}

// broadcastLoop fans queued messages out to every connected client.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			// Collect under the read lock, write outside it so one slow
			// client cannot block registration.
			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				s.send(conn, msg)
			}
		}
	}
}

// notifyLoop turns hub rebuild notices into update broadcasts.
func (s *Server) notifyLoop() {
	defer s.wg.Done()

	notices, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-s.ctx.Done():
			return

		case n, ok := <-notices:
			if !ok {
				return
			}
			data, err := json.Marshal(UpdateData{Items: n.Items, Roots: n.Roots, BuiltAt: n.BuiltAt})
			if err != nil {
				s.logger.Error("failed to marshal update data", "error", err)
				continue
			}
			s.Broadcast(Message{Type: MessageUpdate, Timestamp: time.Now(), Data: data})
		}
	}
}

// pingLoop probes clients on a fixed interval and prunes the ones that
// stopped answering.
func (s *Server) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.pruneStale()
			s.Broadcast(Message{Type: MessagePing, Timestamp: time.Now()})
		}
	}
}

// pruneStale drops clients that have not answered a ping for two whole
// intervals.
func (s *Server) pruneStale() {
	deadline := time.Now().Add(-2 * s.pingInterval)

	s.clientsMu.RLock()
	var stale []*websocket.Conn
	for conn, lastSeen := range s.clients {
		if lastSeen.Before(deadline) {
			stale = append(stale, conn)
		}
	}
	s.clientsMu.RUnlock()

	for _, conn := range stale {
		s.logger.Info("pruning unresponsive client")
		s.removeClient(conn)
	}
}

// touch marks a client alive.
func (s *Server) touch(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; ok {
		s.clients[conn] = time.Now()
	}
	s.clientsMu.Unlock()
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("client disconnected", "clients", count)
}
