package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ThemeConfig holds the branding colors served to the frontend for a tenant.
// Colors are 6-digit hex (#RRGGBB); shorthand forms are rejected.
type ThemeConfig struct {
	PrimaryColor   string   `json:"primary_color" validate:"required,hexcolor,len=7"`
	SecondaryColor string   `json:"secondary_color" validate:"required,hexcolor,len=7"`
	AccentColors   []string `json:"accent_colors" validate:"required,min=1,dive,hexcolor,len=7"`
	LogoURL        string   `json:"logo_url,omitempty" validate:"omitempty,url"`
	FaviconURL     string   `json:"favicon_url,omitempty" validate:"omitempty,url"`
}

// DomainConfig is the configuration of one tenant, keyed by domain.
// It is immutable once published in a snapshot; reloads replace the
// whole table, never individual fields.
type DomainConfig struct {
	Domain       string      `json:"-"`
	SheetID      string      `json:"google_sheet_id" validate:"required"`
	ClientName   string      `json:"client_name" validate:"required"`
	Theme        ThemeConfig `json:"theme"`
	CacheTimeout int         `json:"cache_timeout" validate:"gte=0"`
	Enabled      bool        `json:"enabled"`
}

// Document is the persisted shape of the registry (domains.json).
type Document struct {
	Domains       map[string]DomainConfig `json:"domains"`
	DefaultConfig *DomainConfig           `json:"default_config,omitempty"`
}

// Snapshot is an immutable view of the registry. Lookups run against a
// snapshot without locking; a reload publishes a new snapshot atomically.
type Snapshot struct {
	domains    map[string]DomainConfig
	defaultCfg *DomainConfig
}

// Lookup returns the enabled config for a domain key. Disabled entries
// behave exactly like absent ones.
func (s *Snapshot) Lookup(domain string) (DomainConfig, bool) {
	cfg, ok := s.domains[strings.ToLower(domain)]
	if !ok || !cfg.Enabled {
		return DomainConfig{}, false
	}
	return cfg, true
}

// Default returns the fallback config, if one is defined.
func (s *Snapshot) Default() (DomainConfig, bool) {
	if s.defaultCfg == nil {
		return DomainConfig{}, false
	}
	return *s.defaultCfg, true
}

// All returns every configured domain, including disabled ones, sorted by
// domain key. Used by the admin surface.
func (s *Snapshot) All() []DomainConfig {
	out := make([]DomainConfig, 0, len(s.domains))
	for _, cfg := range s.domains {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Domains returns the enabled domain keys, sorted.
func (s *Snapshot) Domains() []string {
	out := make([]string, 0, len(s.domains))
	for key, cfg := range s.domains {
		if cfg.Enabled {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// ConfigError reports why a registry document was rejected.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid registry configuration: %s", strings.Join(e.Problems, "; "))
}

// Registry owns the active tenant table. Reads are lock-free against the
// current snapshot; Reload rebuilds fully before swapping, so readers never
// observe a half-built table.
type Registry struct {
	path     string
	logger   *zap.Logger
	validate *validator.Validate

	snap atomic.Pointer[Snapshot]
	mu   sync.Mutex // serializes reload and persisted writes
}

func New(path string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		path:     path,
		logger:   logger,
		validate: validator.New(),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot returns the currently active table.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Reload re-reads the registry document and swaps the active snapshot.
// A document that fails validation is rejected wholesale and the previous
// snapshot stays active.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return &ConfigError{Problems: []string{fmt.Sprintf("read %s: %v", r.path, err)}}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ConfigError{Problems: []string{fmt.Sprintf("parse %s: %v", r.path, err)}}
	}

	snap, problems := r.build(&doc)
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}

	old := r.snap.Swap(snap)
	if r.logger != nil {
		added, removed := diffDomains(old, snap)
		r.logger.Info("registry loaded",
			zap.Int("domains", len(snap.domains)),
			zap.Strings("added", added),
			zap.Strings("removed", removed),
			zap.Bool("has_default", snap.defaultCfg != nil),
		)
	}
	return nil
}

// Validate checks a document without applying it. Returns the list of
// problems, empty when the document is acceptable.
func (r *Registry) Validate(doc *Document) []string {
	_, problems := r.build(doc)
	return problems
}

// build constructs a snapshot from a document, collecting every validation
// problem instead of stopping at the first.
func (r *Registry) build(doc *Document) (*Snapshot, []string) {
	var problems []string

	if len(doc.Domains) == 0 {
		problems = append(problems, "at least one domain must be configured")
	}

	domains := make(map[string]DomainConfig, len(doc.Domains))
	for name, cfg := range doc.Domains {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			problems = append(problems, "domain key must not be empty")
			continue
		}
		if _, dup := domains[key]; dup {
			problems = append(problems, fmt.Sprintf("domain %q: duplicate key (keys are case-insensitive)", name))
			continue
		}
		cfg.Domain = key
		problems = append(problems, r.validateConfig(key, &cfg)...)
		domains[key] = cfg
	}

	var defaultCfg *DomainConfig
	if doc.DefaultConfig != nil {
		cfg := *doc.DefaultConfig
		cfg.Domain = "default"
		problems = append(problems, r.validateConfig("default", &cfg)...)
		defaultCfg = &cfg
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return &Snapshot{domains: domains, defaultCfg: defaultCfg}, nil
}

func (r *Registry) validateConfig(name string, cfg *DomainConfig) []string {
	err := r.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var problems []string
	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range errs {
			problems = append(problems, fmt.Sprintf("domain %q: field %s failed %q validation", name, fe.Namespace(), fe.Tag()))
		}
		return problems
	}
	return []string{fmt.Sprintf("domain %q: %v", name, err)}
}

// Document returns the active table in its persisted shape.
func (r *Registry) Document() *Document {
	snap := r.Snapshot()
	doc := &Document{Domains: make(map[string]DomainConfig, len(snap.domains))}
	for key, cfg := range snap.domains {
		doc.Domains[key] = cfg
	}
	if snap.defaultCfg != nil {
		cfg := *snap.defaultCfg
		doc.DefaultConfig = &cfg
	}
	return doc
}

// Apply validates a document, persists it with write-then-rename, and
// swaps it in as the active snapshot.
func (r *Registry) Apply(doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, problems := r.build(doc)
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	if err := SaveDocument(r.path, doc); err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}

// AddDomain inserts or replaces one tenant entry and persists the table.
func (r *Registry) AddDomain(name string, cfg DomainConfig) error {
	doc := r.Document()
	doc.Domains[strings.ToLower(strings.TrimSpace(name))] = cfg
	return r.Apply(doc)
}

// RemoveDomain deletes one tenant entry and persists the table.
func (r *Registry) RemoveDomain(name string) error {
	doc := r.Document()
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := doc.Domains[key]; !ok {
		return fmt.Errorf("domain %q not found", name)
	}
	delete(doc.Domains, key)
	return r.Apply(doc)
}

// SaveDocument persists a registry document atomically: the new content is
// written to a temp file in the same directory and renamed over the target,
// so the file on disk is always a complete valid document.
func SaveDocument(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".domains-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func diffDomains(old, new *Snapshot) (added, removed []string) {
	if old == nil {
		for key := range new.domains {
			added = append(added, key)
		}
		sort.Strings(added)
		return added, nil
	}
	for key := range new.domains {
		if _, ok := old.domains[key]; !ok {
			added = append(added, key)
		}
	}
	for key := range old.domains {
		if _, ok := new.domains[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
