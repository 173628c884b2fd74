// Package config loads and validates preview service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StorePostgREST = "postgrest"
	StoreSQLite    = "sqlite"
)

// Shell backends.
const (
	ShellLocal = "local"
	ShellGCS   = "gcs"
)

var knownStatuses = map[string]struct{}{
	"approved": {},
	"pending":  {},
	"paused":   {},
	"rejected": {},
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Site    SiteConfig    `mapstructure:"site"`
	Preview PreviewConfig `mapstructure:"preview"`
	Store   StoreConfig   `mapstructure:"store"`
	Shell   ShellConfig   `mapstructure:"shell"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// SiteConfig holds the brand and fallback values rendered into previews.
type SiteConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	Brand              string `mapstructure:"brand"`
	DefaultName        string `mapstructure:"default_name"`
	DefaultDescription string `mapstructure:"default_description"`
	DefaultImagePath   string `mapstructure:"default_image_path"`
	Locale             string `mapstructure:"locale"`
	RedirectNotice     string `mapstructure:"redirect_notice"`
}

// PreviewConfig tunes the preview pipeline.
type PreviewConfig struct {
	FetchTimeoutMs int         `mapstructure:"fetch_timeout_ms"`
	ExtraBotAgents []string    `mapstructure:"extra_bot_agents"`
	PublicStatuses []string    `mapstructure:"public_statuses"`
	CrawlerCache   CacheConfig `mapstructure:"crawler_cache"`
	HumanCache     CacheConfig `mapstructure:"human_cache"`
}

// CacheConfig is a shared-cache freshness window.
type CacheConfig struct {
	MaxAgeSeconds               int `mapstructure:"max_age_seconds"`
	StaleWhileRevalidateSeconds int `mapstructure:"stale_while_revalidate_seconds"`
}

// StoreConfig selects and configures the profile store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// SeedFile is a JSON array of profile rows loaded into the memory and
	// sqlite backends at startup.
	SeedFile  string          `mapstructure:"seed_file"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	PostgREST PostgRESTConfig `mapstructure:"postgrest"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
}

// PostgresConfig controls direct database access.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PostgRESTConfig points at a PostgREST endpoint.
type PostgRESTConfig struct {
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Table    string `mapstructure:"table"`
	Attempts uint   `mapstructure:"attempts"`
}

// SQLiteConfig locates the local database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// ShellConfig locates the prebuilt application HTML.
type ShellConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Bucket  string `mapstructure:"bucket"`
	Object  string `mapstructure:"object"`
}

// PubSubConfig holds metadata for crawler-hit notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// CORSConfig lists origins allowed to read the JSON endpoints.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 15)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("site.base_url", "https://example.com")
	v.SetDefault("site.brand", "Profiles")
	v.SetDefault("site.default_name", "Verified profile")
	v.SetDefault("site.default_description", "A verified profile in the directory.")
	v.SetDefault("site.default_image_path", "/og-default.jpg")
	v.SetDefault("site.locale", "")
	v.SetDefault("site.redirect_notice", "")
	v.SetDefault("preview.fetch_timeout_ms", 8000)
	v.SetDefault("preview.extra_bot_agents", []string{})
	v.SetDefault("preview.public_statuses", []string{})
	v.SetDefault("preview.crawler_cache.max_age_seconds", 3600)
	v.SetDefault("preview.crawler_cache.stale_while_revalidate_seconds", 86400)
	v.SetDefault("preview.human_cache.max_age_seconds", 300)
	v.SetDefault("preview.human_cache.stale_while_revalidate_seconds", 600)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.seed_file", "")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "perfis")
	v.SetDefault("store.postgrest.url", "")
	v.SetDefault("store.postgrest.api_key", "")
	v.SetDefault("store.postgrest.table", "perfis")
	v.SetDefault("store.postgrest.attempts", 2)
	v.SetDefault("store.sqlite.path", "profiles.db")
	v.SetDefault("shell.backend", ShellLocal)
	v.SetDefault("shell.path", "dist/index.html")
	v.SetDefault("shell.bucket", "")
	v.SetDefault("shell.object", "index.html")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Site.Brand) == "" {
		return fmt.Errorf("site.brand is required")
	}
	if strings.TrimSpace(c.Site.DefaultName) == "" {
		return fmt.Errorf("site.default_name is required")
	}
	if strings.TrimSpace(c.Site.DefaultDescription) == "" {
		return fmt.Errorf("site.default_description is required")
	}
	if strings.TrimSpace(c.Site.DefaultImagePath) == "" {
		return fmt.Errorf("site.default_image_path is required")
	}
	if c.Preview.FetchTimeoutMs <= 0 {
		return fmt.Errorf("preview.fetch_timeout_ms must be > 0")
	}
	if c.Server.RequestTimeoutSeconds*1000 <= c.Preview.FetchTimeoutMs {
		return fmt.Errorf("server.request_timeout_seconds must exceed preview.fetch_timeout_ms")
	}
	for _, cc := range []CacheConfig{c.Preview.CrawlerCache, c.Preview.HumanCache} {
		if cc.MaxAgeSeconds < 0 || cc.StaleWhileRevalidateSeconds < 0 {
			return fmt.Errorf("preview cache windows must be >= 0")
		}
	}
	for _, st := range c.Preview.PublicStatuses {
		if _, ok := knownStatuses[strings.ToLower(strings.TrimSpace(st))]; !ok {
			return fmt.Errorf("preview.public_statuses: unknown status %q", st)
		}
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when store.backend is postgres")
		}
	case StorePostgREST:
		if c.Store.PostgREST.URL == "" {
			return fmt.Errorf("store.postgrest.url must be set when store.backend is postgrest")
		}
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path must be set when store.backend is sqlite")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}

	switch c.Shell.Backend {
	case ShellLocal:
		if c.Shell.Path == "" {
			return fmt.Errorf("shell.path must be set when shell.backend is local")
		}
	case ShellGCS:
		if c.Shell.Bucket == "" {
			return fmt.Errorf("shell.bucket must be set when shell.backend is gcs")
		}
	default:
		return fmt.Errorf("shell.backend %q is not supported", c.Shell.Backend)
	}

	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// FetchTimeout is the profile lookup deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Preview.FetchTimeoutMs) * time.Millisecond
}

// RequestTimeout bounds a whole HTTP request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// EventsEnabled reports whether crawler hits are published to Pub/Sub.
func (c Config) EventsEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicName != ""
}

// DefaultImageURL resolves the fallback image against the site base URL.
func (s SiteConfig) DefaultImageURL() string {
	p := strings.TrimSpace(s.DefaultImagePath)
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
}

// Directive renders the window as a Cache-Control value.
func (c CacheConfig) Directive() string {
	return fmt.Sprintf("s-maxage=%d, stale-while-revalidate=%d", c.MaxAgeSeconds, c.StaleWhileRevalidateSeconds)
}
