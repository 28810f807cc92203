package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/trellisdev/trellis/internal/index"
	"github.com/trellisdev/trellis/internal/item"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// handleList serves the flattened item list. Listing never fails: filters
// that match nothing return an empty list, not an error.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := index.Filter{Search: q.Get("search")}
	for _, v := range splitCSV(q.Get("type")) {
		filter.Types = append(filter.Types, item.ItemType(v))
	}
	for _, v := range splitCSV(q.Get("status")) {
		filter.Statuses = append(filter.Statuses, item.Status(v))
	}

	snap := s.hub.Snapshot()
	entries := newEntries(snap, snap.Select(filter))
	writeJSON(w, http.StatusOK, ListResponse{Items: entries, Total: len(entries)})
}

// handleGrouped serves the board view. An empty groupBy defaults to the
// status board.
func (s *Server) handleGrouped(w http.ResponseWriter, r *http.Request) {
	snap := s.hub.Snapshot()

	switch groupBy := r.URL.Query().Get("groupBy"); groupBy {
	case "", "status":
		writeJSON(w, http.StatusOK, groupByStatus(snap))
	case "epic":
		writeJSON(w, http.StatusOK, groupByEpic(snap))
	case "type":
		writeJSON(w, http.StatusOK, groupByType(snap))
	default:
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("unknown groupBy %q, want status, epic, or type", groupBy))
	}
}

// handleItem serves one item in full detail, companion documents included.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap := s.hub.Snapshot()

	it, ok := snap.Item(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("unknown work item %q", id))
		return
	}

	writeJSON(w, http.StatusOK, newEntry(snap, item.LoadDetail(it)))
}

// CompanionResponse carries one rendered companion document.
type CompanionResponse struct {
	ID      string `json:"id"`
	File    string `json:"file"`
	Content string `json:"content"`
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	s.handleCompanion(w, r, item.DocFile)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	s.handleCompanion(w, r, item.ContextFile)
}

// handleCompanion reads a sibling document from the item's directory and
// runs it through the renderer. A missing file is a 404, a renderer
// failure a 502.
func (s *Server) handleCompanion(w http.ResponseWriter, r *http.Request, name string) {
	id := r.PathValue("id")
	snap := s.hub.Snapshot()

	it, ok := snap.Item(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("unknown work item %q", id))
		return
	}

	raw, ok, err := item.Sibling(it, name)
	if err != nil {
		s.logger.Error("failed to read companion file", "id", id, "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to read companion file")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("work item %q has no %s", id, name))
		return
	}

	content, err := s.renderer.Render(r.Context(), raw)
	if err != nil {
		s.logger.Error("renderer failed", "id", id, "file", name, "error", err)
		writeError(w, http.StatusBadGateway, "render_failed", "renderer failed")
		return
	}

	writeJSON(w, http.StatusOK, CompanionResponse{ID: id, File: name, Content: content})
}

// handleRebuild forces a synchronous rebuild. Callers that just wrote item
// files use this instead of waiting out the watcher's quiet window.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	snap, err := s.hub.Rebuild(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rebuild_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":   snap.Len(),
		"roots":   len(snap.Roots()),
		"builtAt": snap.BuiltAt(),
	})
}

// handleSchema serves the JSON Schema of the item-definition file so
// external writers can validate before they write.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	reflector := &jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	writeJSON(w, http.StatusOK, reflector.ReflectFromType(reflect.TypeOf(item.File{})))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.hub.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"items":     snap.Len(),
		"roots":     len(snap.Roots()),
		"clients":   s.ClientCount(),
		"rebuiltAt": snap.BuiltAt(),
	})
}

// handleRoot returns basic server information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Trellis</title>
</head>
<body>
    <h1>Trellis Work-Item Index</h1>
    <p>Item list: <a href="/work-items">/work-items</a></p>
    <p>Board view: <a href="/work-items/grouped">/work-items/grouped</a></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
</body>
</html>`, r.Host)
}
