package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/analytics"
	"github.com/leozw/leadboard/internal/cache"
	"github.com/leozw/leadboard/internal/fetcher"
	"github.com/leozw/leadboard/internal/metrics"
	"github.com/leozw/leadboard/internal/registry"
)

var collector = metrics.NewCollector()

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *cache.Cache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := cache.New(zap.NewNop())
	t.Cleanup(c.Close)

	f := fetcher.New(srv.URL+"/sheets/%s", 5*time.Second, zap.NewNop())
	return NewService(f, c, collector, 10, zap.NewNop()), c
}

func countingHandler(hits *int64, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		w.Write([]byte(body))
	}
}

func tenant(domain, sheet string, timeout int) registry.DomainConfig {
	return registry.DomainConfig{
		Domain:       domain,
		SheetID:      sheet,
		ClientName:   domain,
		CacheTimeout: timeout,
		Enabled:      true,
	}
}

const sheetBody = "name,email\nAna,ana@example.com\nBruno,bruno@example.com\n"

func TestDatasetCachesPerTenant(t *testing.T) {
	t.Parallel()
	var hits int64
	svc, _ := newTestService(t, countingHandler(&hits, sheetBody))

	cfg := tenant("a.com", "sheet-a", 300)
	ctx := context.Background()

	first, err := svc.Dataset(ctx, cfg, analytics.Filters{})
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	second, err := svc.Dataset(ctx, cfg, analytics.Filters{})
	if err != nil {
		t.Fatalf("Dataset cached: %v", err)
	}

	if atomic.LoadInt64(&hits) != 1 {
		t.Fatalf("upstream hit %d times, want 1", hits)
	}
	if first.Overview.TotalLeads != 2 || second.Overview.TotalLeads != 2 {
		t.Fatalf("unexpected totals: %d, %d", first.Overview.TotalLeads, second.Overview.TotalLeads)
	}
}

func TestDatasetZeroTTLAlwaysFetches(t *testing.T) {
	t.Parallel()
	var hits int64
	svc, _ := newTestService(t, countingHandler(&hits, sheetBody))

	cfg := tenant("a.com", "sheet-a", 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Dataset(ctx, cfg, analytics.Filters{}); err != nil {
			t.Fatalf("Dataset: %v", err)
		}
	}
	if atomic.LoadInt64(&hits) != 3 {
		t.Fatalf("upstream hit %d times, want 3", hits)
	}
}

func TestDatasetDifferentFiltersFetchSeparately(t *testing.T) {
	t.Parallel()
	var hits int64
	svc, _ := newTestService(t, countingHandler(&hits, sheetBody))

	cfg := tenant("a.com", "sheet-a", 300)
	ctx := context.Background()

	if _, err := svc.Dataset(ctx, cfg, analytics.Filters{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Dataset(ctx, cfg, analytics.Filters{City: "Campinas"}); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&hits) != 2 {
		t.Fatalf("upstream hit %d times, want 2", hits)
	}
}

func TestDatasetTenantsDoNotShareCache(t *testing.T) {
	t.Parallel()
	var hits int64
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		// Tenant b gets one extra row, so leaked cache entries are
		// observable in the totals.
		if r.URL.Path == "/sheets/sheet-b" {
			w.Write([]byte(sheetBody + "Carla,carla@example.com\n"))
			return
		}
		w.Write([]byte(sheetBody))
	})

	ctx := context.Background()
	dsA, err := svc.Dataset(ctx, tenant("a.com", "sheet-a", 300), analytics.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	dsB, err := svc.Dataset(ctx, tenant("b.com", "sheet-b", 300), analytics.Filters{})
	if err != nil {
		t.Fatal(err)
	}

	if atomic.LoadInt64(&hits) != 2 {
		t.Fatalf("upstream hit %d times, want 2 (one per tenant)", hits)
	}
	if dsA.Overview.TotalLeads != 2 || dsB.Overview.TotalLeads != 3 {
		t.Fatalf("tenants shared data: a=%d b=%d", dsA.Overview.TotalLeads, dsB.Overview.TotalLeads)
	}
}

func TestDatasetErrorPassthroughAndNotCached(t *testing.T) {
	t.Parallel()
	var hits int64
	svc, c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	cfg := tenant("a.com", "sheet-a", 300)
	ctx := context.Background()

	_, err := svc.Dataset(ctx, cfg, analytics.Filters{})
	if !errors.Is(err, fetcher.ErrSourceUnreachable) {
		t.Fatalf("got %v, want ErrSourceUnreachable", err)
	}

	// Failures must not populate the cache.
	if n := c.Entries("a.com"); n != 0 {
		t.Fatalf("got %d cached entries after failure, want 0", n)
	}
	if _, err := svc.Dataset(ctx, cfg, analytics.Filters{}); err == nil {
		t.Fatal("expected second failure, got cached success")
	}
	if atomic.LoadInt64(&hits) != 2 {
		t.Fatalf("upstream hit %d times, want 2", hits)
	}
}

func TestInvalidateScopedToTenant(t *testing.T) {
	t.Parallel()
	var hits int64
	svc, _ := newTestService(t, countingHandler(&hits, sheetBody))

	ctx := context.Background()
	cfgA := tenant("a.com", "sheet-a", 300)
	cfgB := tenant("b.com", "sheet-b", 300)

	svc.Dataset(ctx, cfgA, analytics.Filters{})
	svc.Dataset(ctx, cfgB, analytics.Filters{})

	if n := svc.Invalidate("a.com"); n != 1 {
		t.Fatalf("invalidated %d entries, want 1", n)
	}

	svc.Dataset(ctx, cfgA, analytics.Filters{}) // refetch
	svc.Dataset(ctx, cfgB, analytics.Filters{}) // still cached

	if atomic.LoadInt64(&hits) != 3 {
		t.Fatalf("upstream hit %d times, want 3", hits)
	}
}
