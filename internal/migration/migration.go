// Package migration detects single-tenant legacy configuration and
// synthesizes an equivalent registry entry so deployments predating the
// multi-domain registry keep working without manual edits.
package migration

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/leozw/leadboard/internal/registry"
)

const (
	// DefaultDomain is the domain key assigned when the legacy
	// configuration does not name one.
	DefaultDomain = "dashboard-desktop.com"

	defaultCacheTimeout = 300
)

// LegacyConfig is a single-tenant configuration found in the environment
// or a .env file.
type LegacyConfig struct {
	SheetID      string
	ClientName   string
	Domain       string
	ThemeColor   string
	CacheTimeout int
	Source       string
}

// themeTable maps legacy color names to fixed theme triples. Unknown
// names fall back to the default (green) theme.
var themeTable = map[string]registry.ThemeConfig{
	"green": {
		PrimaryColor:   "#059669",
		SecondaryColor: "#10b981",
		AccentColors:   []string{"#34d399", "#6ee7b7", "#a7f3d0"},
	},
	"blue": {
		PrimaryColor:   "#3b82f6",
		SecondaryColor: "#60a5fa",
		AccentColors:   []string{"#93c5fd", "#bfdbfe", "#dbeafe"},
	},
	"red": {
		PrimaryColor:   "#dc2626",
		SecondaryColor: "#ef4444",
		AccentColors:   []string{"#f87171", "#fca5a5", "#fecaca"},
	},
	"purple": {
		PrimaryColor:   "#7c3aed",
		SecondaryColor: "#8b5cf6",
		AccentColors:   []string{"#a78bfa", "#c4b5fd", "#ddd6fe"},
	},
}

// Detect scans the process environment and then a .env file in the working
// directory for legacy single-tenant settings. Returns nil when none exist.
func Detect() *LegacyConfig {
	if cfg := fromLookup(os.Getenv, "environment"); cfg != nil {
		return cfg
	}
	if vars, err := godotenv.Read(".env"); err == nil {
		lookup := func(key string) string { return vars[key] }
		if cfg := fromLookup(lookup, ".env"); cfg != nil {
			return cfg
		}
	}
	return nil
}

func fromLookup(get func(string) string, source string) *LegacyConfig {
	sheetID := strings.TrimSpace(get("GOOGLE_SHEET_ID"))
	clientName := strings.TrimSpace(get("CLIENT_NAME"))
	if sheetID == "" && clientName == "" {
		return nil
	}

	timeout := defaultCacheTimeout
	if raw := strings.TrimSpace(get("CACHE_TIMEOUT")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			timeout = v
		}
	}

	if clientName == "" {
		clientName = "Desktop"
	}

	return &LegacyConfig{
		SheetID:      sheetID,
		ClientName:   clientName,
		Domain:       strings.ToLower(strings.TrimSpace(get("DOMAIN"))),
		ThemeColor:   strings.ToLower(strings.TrimSpace(get("THEME_COLOR"))),
		CacheTimeout: timeout,
		Source:       source,
	}
}

// Migrate deterministically maps a legacy configuration to a registry
// entry. Calling it twice with the same input yields identical output.
func Migrate(lc LegacyConfig) registry.DomainConfig {
	domain := lc.Domain
	if domain == "" {
		domain = DefaultDomain
	}

	theme, ok := themeTable[lc.ThemeColor]
	if !ok {
		theme = themeTable["green"]
	}

	timeout := lc.CacheTimeout
	if timeout <= 0 {
		timeout = defaultCacheTimeout
	}

	return registry.DomainConfig{
		Domain:       domain,
		SheetID:      lc.SheetID,
		ClientName:   lc.ClientName,
		Theme:        theme,
		CacheTimeout: timeout,
		Enabled:      true,
	}
}

// WriteDocument materializes the migrated entry into the registry document
// at path. Existing entries are preserved and take precedence; the call is
// idempotent, so re-running it against the same legacy environment produces
// a byte-identical file.
func WriteDocument(path string, lc LegacyConfig) error {
	migrated := Migrate(lc)

	doc := &registry.Document{
		Domains:       map[string]registry.DomainConfig{migrated.Domain: migrated},
		DefaultConfig: &migrated,
	}

	if data, err := os.ReadFile(path); err == nil {
		var existing registry.Document
		if err := json.Unmarshal(data, &existing); err == nil {
			for key, cfg := range existing.Domains {
				doc.Domains[key] = cfg
			}
			if existing.DefaultConfig != nil {
				doc.DefaultConfig = existing.DefaultConfig
			}
		}
	}

	return registry.SaveDocument(path, doc)
}
