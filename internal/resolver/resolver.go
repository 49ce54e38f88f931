// Package resolver maps an inbound request to a tenant configuration.
package resolver

import (
	"errors"
	"regexp"
	"strings"

	"github.com/leozw/leadboard/internal/migration"
	"github.com/leozw/leadboard/internal/registry"
)

// ErrDomainNotConfigured is returned when no registry entry, legacy
// configuration, or default matches the request. Disabled domains resolve
// to this same error so callers cannot distinguish them from unknown ones.
var ErrDomainNotConfigured = errors.New("domain not configured")

// Mode describes how a request was resolved to its tenant.
type Mode string

const (
	// ModeNormal means an explicit registry entry matched.
	ModeNormal Mode = "normal"
	// ModeLegacy means the migrated single-tenant configuration was used.
	ModeLegacy Mode = "legacy"
	// ModeFallback means the registry's default configuration was used.
	ModeFallback Mode = "fallback"
)

var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)

// Resolver resolves hostnames and override parameters against the active
// registry snapshot, falling back to a migrated legacy configuration and
// then the registry default.
//
// Security consideration: the override parameter selects a tenant with no
// additional authorization, so any caller who can reach the API can read
// any configured tenant's data by naming it. This mirrors the observed
// behavior of the system it replaces; deployments that need host-only
// isolation must strip the parameter at the edge.
type Resolver struct {
	registry *registry.Registry
	legacy   *migration.LegacyConfig
}

func New(reg *registry.Registry, legacy *migration.LegacyConfig) *Resolver {
	return &Resolver{registry: reg, legacy: legacy}
}

// Resolve returns the tenant configuration for a request. Resolution order:
// enabled override parameter, enabled exact host match, migrated legacy
// configuration, registry default, ErrDomainNotConfigured.
func (r *Resolver) Resolve(host, override string) (registry.DomainConfig, Mode, error) {
	snap := r.registry.Snapshot()

	if key := Normalize(override); key != "" {
		if cfg, ok := snap.Lookup(key); ok {
			return cfg, ModeNormal, nil
		}
	}

	if key := Normalize(host); key != "" && validFormat(key) {
		if cfg, ok := snap.Lookup(key); ok {
			return cfg, ModeNormal, nil
		}
	}

	if r.legacy != nil {
		return migration.Migrate(*r.legacy), ModeLegacy, nil
	}

	if cfg, ok := snap.Default(); ok {
		return cfg, ModeFallback, nil
	}

	return registry.DomainConfig{}, "", ErrDomainNotConfigured
}

// Normalize lowercases a domain value and strips surrounding space and any
// port suffix.
func Normalize(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if host, _, found := strings.Cut(domain, ":"); found {
		domain = host
	}
	return domain
}

// validFormat applies conservative hostname checks before consulting the
// registry. Suspicious hosts fall through to legacy or default resolution.
func validFormat(domain string) bool {
	if domain == "" || len(domain) > 253 {
		return false
	}
	if !domainPattern.MatchString(domain) {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	if strings.HasPrefix(domain, "-") || strings.HasSuffix(domain, "-") {
		return false
	}
	if strings.Contains(domain, "..") || strings.Contains(domain, "--") {
		return false
	}
	return true
}
