// Package dashboard orchestrates the cache, fetcher and aggregation layers
// into the single entry point the API handlers call.
package dashboard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leozw/leadboard/internal/analytics"
	"github.com/leozw/leadboard/internal/cache"
	"github.com/leozw/leadboard/internal/fetcher"
	"github.com/leozw/leadboard/internal/metrics"
	"github.com/leozw/leadboard/internal/registry"
)

// Service serves ready-to-render datasets per tenant. Concurrent requests
// for the same tenant and filter set share one fetch via singleflight;
// requests for different tenants never share anything.
type Service struct {
	fetcher   *fetcher.Fetcher
	cache     *cache.Cache
	collector *metrics.Collector
	logger    *zap.Logger
	topN      int

	group singleflight.Group
}

func NewService(f *fetcher.Fetcher, c *cache.Cache, collector *metrics.Collector, topN int, logger *zap.Logger) *Service {
	return &Service{
		fetcher:   f,
		cache:     c,
		collector: collector,
		logger:    logger,
		topN:      topN,
	}
}

// Dataset returns the aggregated views for one tenant and filter set,
// consulting the cache first. Fetch errors pass through typed so handlers
// can map them to response codes.
func (s *Service) Dataset(ctx context.Context, cfg registry.DomainConfig, filters analytics.Filters) (*analytics.Dataset, error) {
	key := filters.Canonical()

	if ds, ok := s.cache.Get(cfg.Domain, key); ok {
		s.collector.RecordCacheHit(cfg.Domain)
		return ds, nil
	}
	s.collector.RecordCacheMiss(cfg.Domain)

	// The flight key includes the domain, so tenants with identical
	// filters still fetch independently.
	flightKey := cfg.Domain + "|" + key
	result, err, _ := s.group.Do(flightKey, func() (interface{}, error) {
		return s.build(ctx, cfg, filters, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*analytics.Dataset), nil
}

func (s *Service) build(ctx context.Context, cfg registry.DomainConfig, filters analytics.Filters, key string) (*analytics.Dataset, error) {
	start := time.Now()
	rows, err := s.fetcher.Fetch(ctx, cfg.SheetID)
	if err != nil {
		s.collector.RecordFetchError(cfg.Domain, errorReason(err))
		s.logger.Warn("fetch failed",
			zap.String("domain", cfg.Domain),
			zap.Error(err),
		)
		return nil, err
	}
	s.collector.RecordFetch(cfg.Domain, time.Since(start))

	ds := analytics.Aggregate(rows, filters, s.topN)

	// A dataset is cached only after a fully successful fetch and
	// aggregation. A canceled request must not publish a partial result.
	if ctx.Err() == nil {
		s.cache.Put(cfg.Domain, key, ds, time.Duration(cfg.CacheTimeout)*time.Second)
		s.collector.SetCacheEntries(cfg.Domain, s.cache.Entries(cfg.Domain))
	}

	s.logger.Debug("dataset built",
		zap.String("domain", cfg.Domain),
		zap.Int("rows", len(rows)),
		zap.Int("filtered", ds.Overview.TotalLeads),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// Invalidate drops one tenant's cached datasets and returns the count.
func (s *Service) Invalidate(domain string) int {
	n := s.cache.InvalidateDomain(domain)
	s.collector.SetCacheEntries(domain, 0)
	return n
}

// InvalidateAll clears every tenant's cached datasets.
func (s *Service) InvalidateAll() int {
	return s.cache.InvalidateAll()
}

// CacheStats reports cache counters for one tenant.
func (s *Service) CacheStats(domain string) cache.Stats {
	return s.cache.Stats(domain)
}

// AllCacheStats reports cache counters for every tenant seen so far.
func (s *Service) AllCacheStats() map[string]cache.Stats {
	return s.cache.AllStats()
}

// errorReason maps a fetch error to its metric label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, fetcher.ErrSourceEmpty):
		return "empty"
	case errors.Is(err, fetcher.ErrSourceMalformed):
		return "malformed"
	case errors.Is(err, fetcher.ErrSourceUnreachable):
		return "unreachable"
	default:
		return "unknown"
	}
}
