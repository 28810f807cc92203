package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/trellisdev/trellis/internal/hub"
	"github.com/trellisdev/trellis/internal/item"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeItem(t *testing.T, root, id, body string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create item dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, item.DefinitionFile), []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write definition: %v", err)
	}
}

func writeCompanion(t *testing.T, root, id, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, id, name), []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write companion file: %v", err)
	}
}

// seedTree writes the fixture most endpoint tests use: two epics, one of
// them with a feature and a done task underneath.
func seedTree(t *testing.T, root string) {
	t.Helper()
	writeItem(t, root, "a-0001", `{"name":"Auth","status":"planned","description":"Sign-in flows"}`)
	writeItem(t, root, "a-0001-0001", `{"name":"Login","status":"ready"}`)
	writeItem(t, root, "a-0001-0001-0001", `{"name":"Login form","status":"done"}`)
	writeItem(t, root, "b-0001", `{"name":"Search","status":"in-progress"}`)
}

func newTestServer(t *testing.T, root string, config *Config) (*Server, *hub.Hub) {
	t.Helper()

	h := hub.New(root, testLogger())
	if _, err := h.Rebuild(context.Background()); err != nil {
		t.Fatalf("Failed to build initial snapshot: %v", err)
	}

	if config == nil {
		config = &Config{}
	}
	config.Addr = "127.0.0.1:0"
	if config.Logger == nil {
		config.Logger = testLogger()
	}

	s := New(h, config)
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	time.Sleep(100 * time.Millisecond)
	return s, h
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestServerStartStop(t *testing.T) {
	h := hub.New(t.TempDir(), testLogger())
	s := New(h, &Config{Addr: "127.0.0.1:0", Logger: testLogger()})

	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if s.Addr() == "" {
		t.Fatal("Server address is empty")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestStopNeverStarted(t *testing.T) {
	s := New(hub.New(t.TempDir(), testLogger()), &Config{Logger: testLogger()})
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() on a never-started server failed: %v", err)
	}
}

func TestListEndpoint(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s, _ := newTestServer(t, root, nil)
	base := "http://" + s.Addr()

	var list ListResponse
	if code := getJSON(t, base+"/work-items", &list); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if list.Total != 4 || len(list.Items) != 4 {
		t.Fatalf("total = %d (%d items), want 4", list.Total, len(list.Items))
	}

	var feature *Entry
	for i := range list.Items {
		if list.Items[i].ID == "a-0001-0001" {
			feature = &list.Items[i]
		}
		if list.Items[i].ID == "a-0001" && list.Items[i].Epic != nil {
			t.Errorf("epic of a root = %+v, want none", list.Items[i].Epic)
		}
	}
	if feature == nil {
		t.Fatal("a-0001-0001 missing from list")
	}

	if feature.Parent == nil || feature.Parent.ID != "a-0001" || feature.Parent.Name != "Auth" {
		t.Errorf("parent = %+v, want a-0001/Auth", feature.Parent)
	}
	if feature.Epic == nil || feature.Epic.ID != "a-0001" {
		t.Errorf("epic = %+v, want a-0001", feature.Epic)
	}
	if len(feature.Children) != 1 || feature.Children[0].ID != "a-0001-0001-0001" {
		t.Fatalf("children = %+v, want [a-0001-0001-0001]", feature.Children)
	}
	if feature.Children[0].Status != item.StatusDone {
		t.Errorf("child status = %s, want done", feature.Children[0].Status)
	}
	if feature.Progress.Done != 1 || feature.Progress.Total != 1 {
		t.Errorf("progress = %+v, want 1/1", feature.Progress)
	}
	if feature.Doc != "" || feature.Context != "" {
		t.Error("list entries must not attach companion documents")
	}
}

func TestListFilters(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s, _ := newTestServer(t, root, nil)
	base := "http://" + s.Addr()

	tests := []struct {
		query string
		want  []string
	}{
		{"type=epic", []string{"a-0001", "b-0001"}},
		{"status=done", []string{"a-0001-0001-0001"}},
		{"search=login", []string{"a-0001-0001", "a-0001-0001-0001"}},
		{"type=epic&search=search", []string{"b-0001"}},
		{"status=cancelled", []string{}},
		{"type=epic,task", []string{"a-0001", "a-0001-0001-0001", "b-0001"}},
	}

	for _, tt := range tests {
		var list ListResponse
		if code := getJSON(t, base+"/work-items?"+tt.query, &list); code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", tt.query, code)
		}
		got := make([]string, 0, len(list.Items))
		for _, e := range list.Items {
			got = append(got, e.ID)
		}
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("%s: ids = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestListEmptyIndex(t *testing.T) {
	s, _ := newTestServer(t, filepath.Join(t.TempDir(), "gone"), nil)
	base := "http://" + s.Addr()

	// Listing never errors, even over an empty index.
	var list ListResponse
	if code := getJSON(t, base+"/work-items", &list); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if list.Total != 0 || list.Items == nil {
		t.Errorf("list = %+v, want empty non-null items", list)
	}

	var resp GroupedResponse
	if code := getJSON(t, base+"/work-items/grouped", &resp); code != http.StatusOK {
		t.Fatalf("grouped status = %d, want 200", code)
	}
	if len(resp.Columns) != 5 {
		t.Errorf("grouped columns = %d, want all 5 even when empty", len(resp.Columns))
	}
}

func findColumn(t *testing.T, cols []ColumnGroup, want item.Column) ColumnGroup {
	t.Helper()
	for _, c := range cols {
		if c.Column == want {
			return c
		}
	}
	t.Fatalf("column %s missing", want)
	return ColumnGroup{}
}

func TestGroupedByStatus(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s, _ := newTestServer(t, root, nil)
	base := "http://" + s.Addr()

	var resp GroupedResponse
	if code := getJSON(t, base+"/work-items/grouped?groupBy=status", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.GroupBy != "status" {
		t.Errorf("groupBy = %s, want status", resp.GroupBy)
	}
	if len(resp.Columns) != 5 {
		t.Fatalf("columns = %d, want 5", len(resp.Columns))
	}
	for i, col := range resp.Columns {
		if col.Column != item.Columns()[i] {
			t.Errorf("column %d = %s, want %s", i, col.Column, item.Columns()[i])
		}
		if col.Items == nil {
			t.Errorf("column %s items decoded as null, want empty list", col.Column)
		}
	}

	counts := map[item.Column]int{}
	for _, col := range resp.Columns {
		counts[col.Column] = len(col.Items)
	}
	want := map[item.Column]int{
		item.ColumnBacklog:    1,
		item.ColumnReady:      1,
		item.ColumnInProgress: 1,
		item.ColumnReview:     0,
		item.ColumnDone:       1,
	}
	for col, n := range want {
		if counts[col] != n {
			t.Errorf("column %s has %d items, want %d", col, counts[col], n)
		}
	}

	// Empty groupBy defaults to the status board.
	var def GroupedResponse
	if code := getJSON(t, base+"/work-items/grouped", &def); code != http.StatusOK {
		t.Fatalf("default status = %d, want 200", code)
	}
	if def.GroupBy != "status" {
		t.Errorf("default groupBy = %s, want status", def.GroupBy)
	}
}

func TestGroupedByEpic(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s, _ := newTestServer(t, root, nil)

	var resp GroupedResponse
	url := "http://" + s.Addr() + "/work-items/grouped?groupBy=epic"
	if code := getJSON(t, url, &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	if len(resp.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(resp.Groups))
	}
	if resp.Groups[0].Key != "a-0001" || resp.Groups[1].Key != "b-0001" {
		t.Fatalf("group keys = %s, %s; want a-0001, b-0001", resp.Groups[0].Key, resp.Groups[1].Key)
	}
	if resp.Groups[0].Epic == nil || resp.Groups[0].Epic.Name != "Auth" {
		t.Errorf("epic ref = %+v, want Auth", resp.Groups[0].Epic)
	}

	auth := resp.Groups[0]
	if len(auth.Columns) != 5 {
		t.Fatalf("epic group columns = %d, want 5", len(auth.Columns))
	}
	backlog := findColumn(t, auth.Columns, item.ColumnBacklog)
	if len(backlog.Items) != 1 || backlog.Items[0].ID != "a-0001" {
		t.Errorf("backlog = %+v, want the epic itself", backlog.Items)
	}
	done := findColumn(t, auth.Columns, item.ColumnDone)
	if len(done.Items) != 1 || done.Items[0].ID != "a-0001-0001-0001" {
		t.Errorf("done = %+v, want the finished task", done.Items)
	}
}

func TestGroupedByType(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s, _ := newTestServer(t, root, nil)

	var resp GroupedResponse
	url := "http://" + s.Addr() + "/work-items/grouped?groupBy=type"
	if code := getJSON(t, url, &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	keys := make([]string, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		keys = append(keys, g.Key)
	}
	if fmt.Sprint(keys) != fmt.Sprint([]string{"epic", "feature", "task"}) {
		t.Fatalf("type keys = %v, want [epic feature task]", keys)
	}

	epics := findColumn(t, resp.Groups[0].Columns, item.ColumnInProgress)
	if len(epics.Items) != 1 || epics.Items[0].ID != "b-0001" {
		t.Errorf("in-progress epics = %+v, want [b-0001]", epics.Items)
	}
}

func TestGroupedRejectsUnknownGroupBy(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s, _ := newTestServer(t, root, nil)

	var body errorBody
	url := "http://" + s.Addr() + "/work-items/grouped?groupBy=owner"
	if code := getJSON(t, url, &body); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if body.Error.Code != "bad_request" {
		t.Errorf("error code = %s, want bad_request", body.Error.Code)
	}
}

func TestItemDetail(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	writeCompanion(t, root, "a-0001-0001", item.DocFile, "# Login\n\nDetails.")
	s, _ := newTestServer(t, root, nil)
	base := "http://" + s.Addr()

	var e Entry
	if code := getJSON(t, base+"/work-items/a-0001-0001", &e); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if e.ID != "a-0001-0001" || e.Name != "Login" {
		t.Errorf("entry = %s/%s, want a-0001-0001/Login", e.ID, e.Name)
	}
	if e.Parent == nil || e.Parent.ID != "a-0001" {
		t.Errorf("parent = %+v, want a-0001", e.Parent)
	}
	if e.Doc != "# Login\n\nDetails." {
		t.Errorf("doc = %q, detail must attach the raw companion", e.Doc)
	}
	if e.Context != "" {
		t.Errorf("context = %q, want empty for an absent companion", e.Context)
	}

	var body errorBody
	if code := getJSON(t, base+"/work-items/zzz", &body); code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", code)
	}
	if body.Error.Code != "not_found" {
		t.Errorf("error code = %s, want not_found", body.Error.Code)
	}
}

type upperRenderer struct{}

func (upperRenderer) Render(_ context.Context, markdown string) (string, error) {
	return strings.ToUpper(markdown), nil
}

type failRenderer struct{}

func (failRenderer) Render(context.Context, string) (string, error) {
	return "", errors.New("formatter offline")
}

func TestCompanionRendering(t *testing.T) {
	root := t.TempDir()
	writeItem(t, root, "a-0001", `{"name":"Auth"}`)
	writeCompanion(t, root, "a-0001", item.DocFile, "plan")
	s, _ := newTestServer(t, root, &Config{Renderer: upperRenderer{}})
	base := "http://" + s.Addr()

	var doc CompanionResponse
	if code := getJSON(t, base+"/work-items/a-0001/doc", &doc); code != http.StatusOK {
		t.Fatalf("doc status = %d, want 200", code)
	}
	if doc.Content != "PLAN" {
		t.Errorf("content = %q, want the rendered %q", doc.Content, "PLAN")
	}
	if doc.File != item.DocFile {
		t.Errorf("file = %s, want %s", doc.File, item.DocFile)
	}

	var body errorBody
	if code := getJSON(t, base+"/work-items/a-0001/context", &body); code != http.StatusNotFound {
		t.Fatalf("absent companion status = %d, want 404", code)
	}
	if code := getJSON(t, base+"/work-items/zzz/doc", &body); code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", code)
	}
}

func TestCompanionRenderFailure(t *testing.T) {
	root := t.TempDir()
	writeItem(t, root, "a-0001", `{"name":"Auth"}`)
	writeCompanion(t, root, "a-0001", item.DocFile, "plan")
	s, _ := newTestServer(t, root, &Config{Renderer: failRenderer{}})

	var body errorBody
	url := "http://" + s.Addr() + "/work-items/a-0001/doc"
	if code := getJSON(t, url, &body); code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", code)
	}
	if body.Error.Code != "render_failed" {
		t.Errorf("error code = %s, want render_failed", body.Error.Code)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	root := t.TempDir()
	writeItem(t, root, "a-0001", `{"name":"Auth"}`)
	s, _ := newTestServer(t, root, nil)
	base := "http://" + s.Addr()

	// Without a watcher a new file stays invisible until the explicit
	// rebuild.
	writeItem(t, root, "b-0001", `{"name":"Search"}`)
	var list ListResponse
	getJSON(t, base+"/work-items", &list)
	if list.Total != 1 {
		t.Fatalf("total = %d before rebuild, want 1", list.Total)
	}

	resp, err := http.Post(base+"/rebuild", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /rebuild failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild status = %d, want 200", resp.StatusCode)
	}

	getJSON(t, base+"/work-items", &list)
	if list.Total != 2 {
		t.Errorf("total = %d after rebuild, want 2", list.Total)
	}

	// Rebuild is POST-only.
	if code := getJSON(t, base+"/rebuild", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET /rebuild status = %d, want 405", code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	s, _ := newTestServer(t, root, nil)

	var health struct {
		Status  string `json:"status"`
		Items   int    `json:"items"`
		Roots   int    `json:"roots"`
		Clients int    `json:"clients"`
	}
	if code := getJSON(t, "http://"+s.Addr()+"/health", &health); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
	if health.Items != 4 || health.Roots != 2 {
		t.Errorf("health = %+v, want 4 items 2 roots", health)
	}
	if health.Clients != 0 {
		t.Errorf("clients = %d, want 0", health.Clients)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	s, _ := newTestServer(t, t.TempDir(), nil)

	var schema struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
	}
	if code := getJSON(t, "http://"+s.Addr()+"/schema/item", &schema); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if schema.Type != "object" {
		t.Errorf("schema type = %s, want object", schema.Type)
	}
	for _, field := range []string{"name", "status", "dependencies", "description"} {
		if _, ok := schema.Properties[field]; !ok {
			t.Errorf("schema missing property %q", field)
		}
	}
}
