// Package config loads and validates the site configuration file.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a site build.
type Config struct {
	Site     SiteConfig                 `yaml:"site"`
	Paths    PathsConfig                `yaml:"paths,omitempty"`
	Build    BuildConfig                `yaml:"build,omitempty"`
	Sections map[string]SectionDefaults `yaml:"sections,omitempty"`
	Metrics  MetricsConfig              `yaml:"metrics,omitempty"`
	Events   EventsConfig               `yaml:"events,omitempty"`
}

// SiteConfig holds site-wide values exposed to templates as `site`.
type SiteConfig struct {
	Title   string         `yaml:"title"`
	BaseURL string         `yaml:"base_url,omitempty"`
	Params  map[string]any `yaml:"params,omitempty"`
}

// PathsConfig names the source tree layout relative to the source root.
// All zero values trigger sensible defaults.
type PathsConfig struct {
	Content   string `yaml:"content,omitempty"`   // markdown pages (default "content")
	Templates string `yaml:"templates,omitempty"` // page templates (default "templates")
	Partials  string `yaml:"partials,omitempty"`  // reusable includes (default "templates/partials")
	Data      string `yaml:"data,omitempty"`      // structured data files (default "data")
	Static    string `yaml:"static,omitempty"`    // passthrough assets (default "static")
	Output    string `yaml:"output,omitempty"`    // destination tree (default "public")
}

// BuildConfig holds build tuning knobs.
type BuildConfig struct {
	// Workers caps parallel render tasks. Defaults to available parallelism;
	// values <1 are coerced at scheduling time.
	Workers int `yaml:"workers,omitempty"`
	// FailFast stops dispatching new render tasks after the first failure.
	// In-flight tasks run to completion.
	FailFast bool `yaml:"fail_fast,omitempty"`
	// DefaultTemplate is used when a page's frontmatter omits `template`.
	DefaultTemplate string `yaml:"default_template,omitempty"`
	// IncludeDrafts renders pages marked `draft: true`.
	IncludeDrafts bool `yaml:"include_drafts,omitempty"`
	// VerifyLinks checks internal links across the output tree after rendering.
	VerifyLinks bool `yaml:"verify_links,omitempty"`
	// HistoryDB is the SQLite file recording past build reports.
	// Empty disables history. ":memory:" is accepted for tests.
	HistoryDB string `yaml:"history_db,omitempty"`
}

// SectionDefaults provides per-section page metadata defaults, keyed by the
// first path segment of a page under the content directory.
type SectionDefaults struct {
	Template string         `yaml:"template,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
}

// MetricsConfig controls the Prometheus exposition endpoint (watch mode only).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty"` // default ":9090"
}

// EventsConfig controls NATS build-completion events.
type EventsConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"` // default "sitesmith.builds"
}

// Default path and option values applied by ApplyDefaults.
const (
	DefaultContentDir    = "content"
	DefaultTemplatesDir  = "templates"
	DefaultPartialsDir   = "templates/partials"
	DefaultDataDir       = "data"
	DefaultStaticDir     = "static"
	DefaultOutputDir     = "public"
	DefaultTemplateName  = "default"
	DefaultMetricsListen = ":9090"
	DefaultEventsSubject = "sitesmith.builds"
)

// Load reads, env-expands, parses, and normalizes a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Paths.Content == "" {
		c.Paths.Content = DefaultContentDir
	}
	if c.Paths.Templates == "" {
		c.Paths.Templates = DefaultTemplatesDir
	}
	if c.Paths.Partials == "" {
		c.Paths.Partials = DefaultPartialsDir
	}
	if c.Paths.Data == "" {
		c.Paths.Data = DefaultDataDir
	}
	if c.Paths.Static == "" {
		c.Paths.Static = DefaultStaticDir
	}
	if c.Paths.Output == "" {
		c.Paths.Output = DefaultOutputDir
	}
	if c.Build.DefaultTemplate == "" {
		c.Build.DefaultTemplate = DefaultTemplateName
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
	if c.Events.URL != "" && c.Events.Subject == "" {
		c.Events.Subject = DefaultEventsSubject
	}
}

// Validate rejects configurations the engine cannot act on.
func (c *Config) Validate() error {
	if c.Site.Title == "" {
		return fmt.Errorf("site.title is required")
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("build.workers must not be negative")
	}
	return nil
}

// SectionDefault returns the defaults for a content section, or nil.
func (c *Config) SectionDefault(section string) *SectionDefaults {
	if c.Sections == nil {
		return nil
	}
	if sd, ok := c.Sections[section]; ok {
		return &sd
	}
	return nil
}

// Hash computes a deterministic hash of the configuration. A differing hash
// between runs invalidates the manifest and forces a full rebuild.
func (c *Config) Hash() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
