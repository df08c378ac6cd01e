package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/audit"
	"github.com/tkingovr/viewfilter/internal/config"
	"github.com/tkingovr/viewfilter/internal/policy"
)

func init() {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

const siteYAML = `
version: 1
settings:
  base_path: /
policy:
  rules:
    - name: block-admin
      match: {method: "*", path_prefix: /admin}
      action: deny
filters: [request_id, audit, policy, greeting]
routes:
  - path: ""
    handler: hello
  - path: json
    handler: hello_json
    filters: [json]
  - path: admin
    handler: hello
`

func testSite(t *testing.T, yaml string) *site {
	t.Helper()
	cfg, err := config.LoadBytes([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := newEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	store, err := audit.NewJSONLStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	s, err := newSite(cfg, engine, store, prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewSite_FromConfig(t *testing.T) {
	s := testSite(t, siteYAML)

	routes := s.binder.Routes()
	if len(routes) != 3 {
		t.Fatalf("expected 3 routes, got %d", len(routes))
	}
	want := []string{"request_id", "audit", "policy", "greeting", "json"}
	if strings.Join(routes[1].Filters, ",") != strings.Join(want, ",") {
		t.Errorf("expected filters %v, got %v", want, routes[1].Filters)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("expected request id header")
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for /admin, got %d", w.Code)
	}
}

func TestNewSite_DefaultHello(t *testing.T) {
	s := testSite(t, "version: 1\n")

	routes := s.binder.Routes()
	if len(routes) != 3 {
		t.Fatalf("expected 3 hello routes, got %d", len(routes))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/error", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", w.Code)
	}
}

func TestNewSite_UnknownRouteOptions(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(`
version: 1
routes:
  - path: json
    handler: hello_json
    filter: [json]
    cache: true
`))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := newEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	store, err := audit.NewJSONLStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = newSite(cfg, engine, store, prometheus.NewRegistry())
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !strings.Contains(err.Error(), "cache, filter") {
		t.Errorf("expected both keys reported, got %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"user-agent: curl/8.0", "X-Token:abc"})
	if err != nil {
		t.Fatal(err)
	}
	if h["User-Agent"] != "curl/8.0" || h["X-Token"] != "abc" {
		t.Errorf("unexpected headers %v", h)
	}
	if _, err := parseHeaders([]string{"no-colon"}); err == nil {
		t.Error("expected error for malformed header")
	}
}

func TestCheckCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte(siteYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"check", "-c", path, "--path", "/admin/x"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	var resp api.CheckResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Verdict != api.VerdictDeny || resp.Rule != "block-admin" {
		t.Errorf("unexpected check result %+v", resp)
	}
}

func TestNewSite_ExampleSite(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "..", "testdata", "site.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := newEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	store, err := audit.NewJSONLStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s, err := newSite(cfg, engine, store, prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/", http.StatusOK},
		{"/json", http.StatusOK},
		{"/error", http.StatusTeapot},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.status, w.Code)
		}
	}

	result, err := engine.Evaluate(context.Background(), &policy.EvalInput{Method: "GET", Path: "/admin"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Verdict != api.VerdictDeny || result.Rule != "block-admin" {
		t.Errorf("unexpected verdict %+v", result)
	}
}
