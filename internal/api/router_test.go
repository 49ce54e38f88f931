package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/cache"
	"github.com/leozw/leadboard/internal/config"
	"github.com/leozw/leadboard/internal/dashboard"
	"github.com/leozw/leadboard/internal/fetcher"
	"github.com/leozw/leadboard/internal/metrics"
	"github.com/leozw/leadboard/internal/registry"
	"github.com/leozw/leadboard/internal/resolver"
)

var collector = metrics.NewCollector()

const testDoc = `{
  "domains": {
    "client-a.com": {
      "google_sheet_id": "sheet-a",
      "client_name": "Client A",
      "theme": {
        "primary_color": "#059669",
        "secondary_color": "#10b981",
        "accent_colors": ["#34d399"]
      },
      "cache_timeout": 300,
      "enabled": true
    },
    "broken.com": {
      "google_sheet_id": "sheet-broken",
      "client_name": "Broken",
      "theme": {
        "primary_color": "#dc2626",
        "secondary_color": "#ef4444",
        "accent_colors": ["#f87171"]
      },
      "cache_timeout": 300,
      "enabled": true
    }
  }
}`

type testEnv struct {
	server   *Server
	registry *registry.Registry
	path     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "sheet-broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("name,email,city\nAna,ana@example.com,Campinas\nBruno,bruno@example.com,Sorocaba\n"))
	}))
	t.Cleanup(upstream.Close)

	path := filepath.Join(t.TempDir(), "domains.json")
	if err := os.WriteFile(path, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := zap.NewNop()
	reg, err := registry.New(path, logger)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	dataCache := cache.New(logger)
	t.Cleanup(dataCache.Close)

	f := fetcher.New(upstream.URL+"/sheets/%s", 5*time.Second, logger)
	svc := dashboard.NewService(f, dataCache, collector, 10, logger)
	res := resolver.New(reg, nil)

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.RateLimit.Enabled = false

	return &testEnv{
		server:   NewServer(cfg, reg, res, svc, collector, logger),
		registry: reg,
		path:     path,
	}
}

func (e *testEnv) request(t *testing.T, method, target, host string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if host != "" {
		req.Host = host
	}
	w := httptest.NewRecorder()
	e.server.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, w.Body.String())
	}
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "healthy" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestThemeForResolvedHost(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/theme", "client-a.com")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["client_name"] != "Client A" {
		t.Fatalf("unexpected theme body: %v", body)
	}
	if body["resolution_mode"] != "normal" {
		t.Fatalf("got mode %v, want normal", body["resolution_mode"])
	}
}

func TestUnknownHostGets404(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/theme", "unknown.com")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
	body := decode(t, w)
	errBody := body["error"].(map[string]interface{})
	if errBody["code"] != "domain_not_configured" {
		t.Fatalf("got error code %v, want domain_not_configured", errBody["code"])
	}
}

func TestOverrideParameterSelectsTenant(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/theme?domain=client-a.com", "unknown.com")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if decode(t, w)["client_name"] != "Client A" {
		t.Fatal("override parameter not honored")
	}
}

func TestDashboardOverview(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/dashboard/overview", "client-a.com")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	body := decode(t, w)
	overview := body["overview"].(map[string]interface{})
	if overview["total_leads"].(float64) != 2 {
		t.Fatalf("got %v leads, want 2", overview["total_leads"])
	}
}

func TestFetchFailureReportedInBody(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/dashboard/overview", "broken.com")
	// The shell keeps rendering: failures arrive with HTTP 200 and an
	// error object in the body.
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	body := decode(t, w)
	errBody, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error body, got %v", body)
	}
	if errBody["code"] != "source_unreachable" {
		t.Fatalf("got error code %v, want source_unreachable", errBody["code"])
	}
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/dashboard/export/csv", "client-a.com")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("got content type %q, want text/csv", ct)
	}
	if !strings.Contains(w.Body.String(), "Ana") {
		t.Fatal("CSV export missing expected row")
	}
}

func TestAdminListDomains(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodGet, "/api/admin/domains", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["total"].(float64) != 2 {
		t.Fatalf("got %v domains, want 2", body["total"])
	}
}

func TestAdminReloadRejectsBadFile(t *testing.T) {
	env := newTestEnv(t)

	if err := os.WriteFile(env.path, []byte(`{"domains": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	w := env.request(t, http.MethodPost, "/api/admin/reload", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}

	// The old table keeps serving.
	w = env.request(t, http.MethodGet, "/api/theme", "client-a.com")
	if w.Code != http.StatusOK {
		t.Fatalf("old snapshot gone after failed reload: status %d", w.Code)
	}
}

func TestAdminCacheClear(t *testing.T) {
	env := newTestEnv(t)

	// Warm the cache, then clear one tenant.
	env.request(t, http.MethodGet, "/api/dashboard/overview", "client-a.com")
	w := env.request(t, http.MethodPost, "/api/admin/cache/clear?domain=client-a.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if decode(t, w)["entries_removed"].(float64) != 1 {
		t.Fatal("expected one entry removed")
	}
}

func TestAdminValidate(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/validate", strings.NewReader(`{"domains": {}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["valid"].(bool) {
		t.Fatal("empty document must be invalid")
	}
}
