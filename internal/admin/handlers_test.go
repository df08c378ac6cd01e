package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/audit"
	"github.com/tkingovr/viewfilter/internal/policy"
)

type staticRoutes []api.RouteInfo

func (r staticRoutes) Routes() []api.RouteInfo { return r }

func testServer(t *testing.T) *Server {
	t.Helper()
	store, err := audit.NewJSONLStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	engine, err := policy.NewYAMLEngineFromPolicy(&policy.Policy{
		DefaultAction: api.VerdictAllow,
		Rules: []policy.Rule{
			{Name: "block-admin", Match: policy.RuleMatch{Method: "*", PathPrefix: "/admin"}, Action: "deny", Message: "no"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	routes := staticRoutes{{Path: "/json", Methods: []string{"GET"}, Handler: "hello_json", Filters: []string{"greeting", "json"}}}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "viewfilter_test_total", Help: "test"}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewServer(":0", store, engine, routes, reg, logger)
}

func writeRecords(t *testing.T, s *Server) {
	t.Helper()
	now := time.Now()
	for _, rec := range []*api.AuditRecord{
		{Timestamp: now, Method: "GET", Path: "/", Status: 200},
		{Timestamp: now, Method: "GET", Path: "/error", Status: 418, AbortedBy: "teapot"},
		{Timestamp: now, Method: "POST", Path: "/json", Status: 200},
	} {
		if err := s.auditStore.Write(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAPIStats(t *testing.T) {
	s := testServer(t)
	writeRecords(t, s)

	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats api.AuditStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", stats.TotalRequests)
	}
	if stats.ByAbortFilter["teapot"] != 1 {
		t.Errorf("expected 1 teapot abort, got %d", stats.ByAbortFilter["teapot"])
	}
}

func TestAPIAudit(t *testing.T) {
	s := testServer(t)
	writeRecords(t, s)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?method=GET", 2},
		{"?aborted=true", 1},
		{"?status=200&limit=1", 1},
		{"?path=/json", 1},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/audit"+tt.query, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.query, w.Code)
		}
		var records []api.AuditRecord
		if err := json.NewDecoder(w.Body).Decode(&records); err != nil {
			t.Fatal(err)
		}
		if len(records) != tt.want {
			t.Errorf("%s: expected %d records, got %d", tt.query, tt.want, len(records))
		}
	}
}

func TestAPIAudit_NewestFirst(t *testing.T) {
	s := testServer(t)
	writeRecords(t, s)

	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/audit", nil))
	var records []api.AuditRecord
	if err := json.NewDecoder(w.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) == 0 || records[0].Path != "/json" {
		t.Errorf("expected newest record first, got %+v", records)
	}
}

func TestAPIAudit_BadQuery(t *testing.T) {
	s := testServer(t)
	for _, q := range []string{"?since=yesterday", "?limit=-1", "?aborted=maybe"} {
		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/audit"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestAPIRoutes(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/routes", nil))

	var routes []api.RouteInfo
	if err := json.NewDecoder(w.Body).Decode(&routes); err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || routes[0].Handler != "hello_json" {
		t.Errorf("unexpected routes %+v", routes)
	}
}

func TestAPIPolicy(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/policy", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "block-admin") {
		t.Errorf("expected rule in policy output, got %s", w.Body.String())
	}
}

func TestAPICheck(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		body    string
		verdict api.Verdict
	}{
		{`{"method":"GET","path":"/admin/users"}`, api.VerdictDeny},
		{`{"method":"GET","path":"/json"}`, api.VerdictAllow},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/check", strings.NewReader(tt.body)))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp api.CheckResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Verdict != tt.verdict {
			t.Errorf("%s: expected %s, got %s", tt.body, tt.verdict, resp.Verdict)
		}
	}
}

func TestAPICheck_InvalidBody(t *testing.T) {
	s := testServer(t)
	for _, body := range []string{"not json", `{"method":"GET"}`} {
		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/check", strings.NewReader(body)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestMetrics(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "viewfilter_test_total") {
		t.Error("expected registered metric in output")
	}
}

func TestAuditStream(t *testing.T) {
	s := testServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/v1/audit/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	// Headers are flushed after subscribing, so this write is delivered.
	if err := s.auditStore.Write(context.Background(), &api.AuditRecord{Method: "GET", Path: "/streamed", Status: 200}); err != nil {
		t.Fatal(err)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, "/streamed") {
				t.Errorf("unexpected event %s", line)
			}
			return
		}
	}
	t.Fatal("stream ended without an event")
}
