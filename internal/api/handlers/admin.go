package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/registry"
)

type domainSummary struct {
	Domain       string `json:"domain"`
	ClientName   string `json:"client_name"`
	SheetID      string `json:"google_sheet_id"`
	CacheTimeout int    `json:"cache_timeout"`
	Enabled      bool   `json:"enabled"`
}

// ListDomains returns every configured tenant, disabled ones included.
func (h *Handler) ListDomains(c *gin.Context) {
	snap := h.registry.Snapshot()

	all := snap.All()
	out := make([]domainSummary, 0, len(all))
	for _, cfg := range all {
		out = append(out, domainSummary{
			Domain:       cfg.Domain,
			ClientName:   cfg.ClientName,
			SheetID:      cfg.SheetID,
			CacheTimeout: cfg.CacheTimeout,
			Enabled:      cfg.Enabled,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"domains": out,
		"total":   len(out),
		"enabled": len(snap.Domains()),
	})
}

// DomainStatus returns one tenant's configuration alongside its cache
// counters.
func (h *Handler) DomainStatus(c *gin.Context) {
	key := strings.ToLower(c.Param("domain"))

	snap := h.registry.Snapshot()
	var found *registry.DomainConfig
	for _, cfg := range snap.All() {
		if cfg.Domain == key {
			cfg := cfg
			found = &cfg
			break
		}
	}
	if found == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "domain_not_configured", "message": "domain not found"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"domain": domainSummary{
			Domain:       found.Domain,
			ClientName:   found.ClientName,
			SheetID:      found.SheetID,
			CacheTimeout: found.CacheTimeout,
			Enabled:      found.Enabled,
		},
		"theme": found.Theme,
		"cache": h.service.CacheStats(found.Domain),
	})
}

// AdminMetrics reports cache counters for every tenant plus registry totals.
func (h *Handler) AdminMetrics(c *gin.Context) {
	snap := h.registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"cache":           h.service.AllCacheStats(),
		"domains_total":   len(snap.All()),
		"domains_enabled": len(snap.Domains()),
	})
}

// Reload re-reads the registry document. A document that fails validation
// is rejected and the running table is left untouched.
func (h *Handler) Reload(c *gin.Context) {
	if err := h.registry.Reload(); err != nil {
		var cfgErr *registry.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":     "invalid_configuration",
					"message":  "registry reload rejected, previous configuration still active",
					"problems": cfgErr.Problems,
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal", "message": err.Error()},
		})
		return
	}

	snap := h.registry.Snapshot()
	h.logger.Info("registry reloaded via admin API",
		zap.Int("domains", len(snap.All())),
	)
	c.JSON(http.StatusOK, gin.H{
		"status":  "reloaded",
		"domains": len(snap.All()),
		"enabled": len(snap.Domains()),
	})
}

// CacheClear invalidates cached datasets for one tenant when the domain
// query parameter is present, or for all tenants otherwise.
func (h *Handler) CacheClear(c *gin.Context) {
	if domain := c.Query("domain"); domain != "" {
		removed := h.service.Invalidate(domain)
		c.JSON(http.StatusOK, gin.H{"status": "cleared", "domain": domain, "entries_removed": removed})
		return
	}
	removed := h.service.InvalidateAll()
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "entries_removed": removed})
}

// Validate checks a candidate registry document without applying it.
func (h *Handler) Validate(c *gin.Context) {
	var doc registry.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "bad_request", "message": err.Error()},
		})
		return
	}

	problems := h.registry.Validate(&doc)
	c.JSON(http.StatusOK, gin.H{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}
