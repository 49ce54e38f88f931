// Package metrics exposes per-tenant Prometheus metrics for the dashboard
// API. Every series that touches tenant data carries a domain label.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Cache metrics
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheEntries *prometheus.GaugeVec

	// Fetch metrics
	fetchDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec

	// Resolution metrics
	resolutionsTotal *prometheus.CounterVec
	domainsActive    prometheus.Gauge
}

func NewCollector() *Collector {
	return &Collector{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadboard_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"domain", "endpoint", "status"},
		),

		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadboard_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"domain", "endpoint"},
		),

		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadboard_cache_hits_total",
				Help: "Total number of dataset cache hits",
			},
			[]string{"domain"},
		),

		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadboard_cache_misses_total",
				Help: "Total number of dataset cache misses",
			},
			[]string{"domain"},
		),

		cacheEntries: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leadboard_cache_entries",
				Help: "Current number of live cache entries",
			},
			[]string{"domain"},
		),

		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadboard_fetch_duration_seconds",
				Help:    "Duration of upstream data fetches in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"domain"},
		),

		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadboard_fetch_errors_total",
				Help: "Total number of failed upstream data fetches",
			},
			[]string{"domain", "reason"},
		),

		resolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadboard_domain_resolutions_total",
				Help: "Total number of tenant resolutions by mode",
			},
			[]string{"mode"},
		),

		domainsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadboard_domains_active",
				Help: "Number of enabled domains in the registry",
			},
		),
	}
}

func (c *Collector) RecordRequest(domain, endpoint, status string, elapsed time.Duration) {
	c.requestsTotal.With(prometheus.Labels{
		"domain":   domain,
		"endpoint": endpoint,
		"status":   status,
	}).Inc()

	c.requestDuration.With(prometheus.Labels{
		"domain":   domain,
		"endpoint": endpoint,
	}).Observe(elapsed.Seconds())
}

func (c *Collector) RecordCacheHit(domain string) {
	c.cacheHits.With(prometheus.Labels{"domain": domain}).Inc()
}

func (c *Collector) RecordCacheMiss(domain string) {
	c.cacheMisses.With(prometheus.Labels{"domain": domain}).Inc()
}

func (c *Collector) SetCacheEntries(domain string, count int) {
	c.cacheEntries.With(prometheus.Labels{"domain": domain}).Set(float64(count))
}

func (c *Collector) RecordFetch(domain string, elapsed time.Duration) {
	c.fetchDuration.With(prometheus.Labels{"domain": domain}).Observe(elapsed.Seconds())
}

// RecordFetchError counts a failed fetch by reason (unreachable, empty,
// malformed).
func (c *Collector) RecordFetchError(domain, reason string) {
	c.fetchErrors.With(prometheus.Labels{
		"domain": domain,
		"reason": reason,
	}).Inc()
}

// RecordResolution counts one tenant resolution by mode (normal, legacy,
// fallback).
func (c *Collector) RecordResolution(mode string) {
	c.resolutionsTotal.With(prometheus.Labels{"mode": mode}).Inc()
}

func (c *Collector) SetActiveDomains(count int) {
	c.domainsActive.Set(float64(count))
}
