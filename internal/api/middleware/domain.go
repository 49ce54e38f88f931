package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leozw/leadboard/internal/metrics"
	"github.com/leozw/leadboard/internal/registry"
	"github.com/leozw/leadboard/internal/resolver"
)

const (
	// ContextConfig is the gin context key holding the resolved
	// registry.DomainConfig.
	ContextConfig = "domain_config"
	// ContextMode is the gin context key holding the resolver.Mode.
	ContextMode = "resolution_mode"
)

// Domain resolves the request to a tenant and injects its configuration
// into the context. Unresolvable requests are rejected with 404.
func Domain(res *resolver.Resolver, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		host := c.Request.Host
		override := c.Query("domain")

		cfg, mode, err := res.Resolve(host, override)
		if err != nil {
			if errors.Is(err, resolver.ErrDomainNotConfigured) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": gin.H{
						"code":    "domain_not_configured",
						"message": "no configuration exists for this domain",
					},
				})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":    "resolution_failed",
						"message": err.Error(),
					},
				})
			}
			c.Abort()
			return
		}

		collector.RecordResolution(string(mode))

		// Non-normal resolutions are visible to the frontend so it can
		// hint that a fallback configuration is in effect.
		if mode != resolver.ModeNormal {
			c.Writer.Header().Set("X-Resolution-Mode", string(mode))
		}

		c.Set("domain", cfg.Domain)
		c.Set(ContextConfig, cfg)
		c.Set(ContextMode, mode)
		c.Next()
	}
}

// ConfigFrom extracts the resolved tenant configuration set by Domain.
func ConfigFrom(c *gin.Context) (registry.DomainConfig, bool) {
	v, ok := c.Get(ContextConfig)
	if !ok {
		return registry.DomainConfig{}, false
	}
	cfg, ok := v.(registry.DomainConfig)
	return cfg, ok
}

// ModeFrom extracts the resolution mode set by Domain.
func ModeFrom(c *gin.Context) resolver.Mode {
	v, ok := c.Get(ContextMode)
	if !ok {
		return ""
	}
	mode, _ := v.(resolver.Mode)
	return mode
}
