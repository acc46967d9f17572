// Package config loads and validates knowledgesync configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/knowledge-sync/internal/destination/airtable"
	"github.com/JakeFAU/knowledge-sync/internal/normalizer"
)

// Source kinds.
const (
	SourceSearch   = "search"
	SourceListing  = "listing"
	SourceHeadless = "headless"
)

// Destination kinds.
const (
	DestinationAirtable = "airtable"
	DestinationPostgres = "postgres"
	DestinationMemory   = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Source      SourceConfig      `mapstructure:"source"`
	Destination DestinationConfig `mapstructure:"destination"`
	Run         RunConfig         `mapstructure:"run"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
	Categories  CategoriesConfig  `mapstructure:"categories"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	History     HistoryConfig     `mapstructure:"history"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig selects and configures the article source.
type SourceConfig struct {
	Kind      string         `mapstructure:"kind"`
	Origin    string         `mapstructure:"origin"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	UserAgent string         `mapstructure:"user_agent"`
	Search    SearchConfig   `mapstructure:"search"`
	Listing   ListingConfig  `mapstructure:"listing"`
	Headless  HeadlessConfig `mapstructure:"headless"`
}

// SearchConfig configures the hosted search index.
type SearchConfig struct {
	BaseURL string `mapstructure:"base_url"`
	AppID   string `mapstructure:"app_id"`
	APIKey  string `mapstructure:"api_key"`
	Index   string `mapstructure:"index"`
	Query   string `mapstructure:"query"`
	Filters string `mapstructure:"filters"`
}

// ListingConfig configures the HTML listing.
type ListingConfig struct {
	URL           string `mapstructure:"url"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig configures browser rendering of the listing.
type HeadlessConfig struct {
	WaitSelector    string        `mapstructure:"wait_selector"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout"`
}

// DestinationConfig selects and configures the record store.
type DestinationConfig struct {
	Kind            string         `mapstructure:"kind"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	WritesPerSecond float64        `mapstructure:"writes_per_second"`
	Airtable        AirtableConfig `mapstructure:"airtable"`
	Postgres        PostgresConfig `mapstructure:"postgres"`
}

// AirtableConfig holds Airtable credentials and the field mapping.
type AirtableConfig struct {
	BaseURL  string          `mapstructure:"base_url"`
	APIKey   string          `mapstructure:"api_key"`
	BaseID   string          `mapstructure:"base_id"`
	TableID  string          `mapstructure:"table_id"`
	Typecast bool            `mapstructure:"typecast"`
	Fields   airtable.Fields `mapstructure:"fields"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// RunConfig bounds a sync run.
type RunConfig struct {
	PageSize int `mapstructure:"page_size"`
	MaxItems int `mapstructure:"max_items"`
}

// DedupConfig toggles the existing-key check.
type DedupConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// CategoriesConfig overrides the canonical taxonomy.
type CategoriesConfig struct {
	// Labels replaces the built-in taxonomy when non-empty.
	Labels   []string `mapstructure:"labels"`
	Fallback string   `mapstructure:"fallback"`
}

// ServerConfig controls serve mode.
type ServerConfig struct {
	Port       int           `mapstructure:"port"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	// APIKey enables X-API-Key auth on the run endpoints when set.
	APIKey string `mapstructure:"api_key"`
}

// MetricsConfig controls metric export for one-shot runs.
type MetricsConfig struct {
	// Textfile, when set, receives the registry in Prometheus text format after a sync.
	Textfile string `mapstructure:"textfile"`
}

// HistoryConfig enables the Postgres run-history table.
type HistoryConfig struct {
	// DSN enables run history when set.
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// Override adjusts values after the file and environment are read, typically
// from command-line flags.
type Override func(v *viper.Viper)

// Load builds a validated Config from disk/environment.
func Load(path string, overrides ...Override) (Config, error) {
	cfg, err := Read(path, overrides...)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read builds a Config from disk/environment without validating it.
func Read(path string, overrides ...Override) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	for _, o := range overrides {
		o(v)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)

	v.SetDefault("source.kind", SourceSearch)
	v.SetDefault("source.origin", "https://www.library.hbs.edu")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.user_agent", "knowledgesync/1.0")
	v.SetDefault("source.search.base_url", "")
	v.SetDefault("source.search.app_id", "")
	v.SetDefault("source.search.api_key", "")
	v.SetDefault("source.search.index", "")
	v.SetDefault("source.search.query", "")
	v.SetDefault("source.search.filters", "")
	v.SetDefault("source.listing.url", "https://www.library.hbs.edu/working-knowledge/collections/strategy-and-innovation")
	v.SetDefault("source.listing.respect_robots", false)
	v.SetDefault("source.headless.wait_selector", ".hbs-tease-feed__item")
	v.SetDefault("source.headless.selector_timeout", 10*time.Second)

	v.SetDefault("destination.kind", DestinationAirtable)
	v.SetDefault("destination.timeout", 30*time.Second)
	v.SetDefault("destination.writes_per_second", 5.0)
	v.SetDefault("destination.airtable.base_url", airtable.DefaultBaseURL)
	v.SetDefault("destination.airtable.api_key", "")
	v.SetDefault("destination.airtable.base_id", "appoz4aD0Hjolycwd")
	v.SetDefault("destination.airtable.table_id", "tblpMPs5RCoP0PmFt")
	v.SetDefault("destination.airtable.typecast", false)
	fields := airtable.DefaultFields()
	v.SetDefault("destination.airtable.fields.object_id", fields.ObjectID)
	v.SetDefault("destination.airtable.fields.title", fields.Title)
	v.SetDefault("destination.airtable.fields.date", fields.Date)
	v.SetDefault("destination.airtable.fields.author", fields.Author)
	v.SetDefault("destination.airtable.fields.faculty", fields.Faculty)
	v.SetDefault("destination.airtable.fields.summary", fields.Summary)
	v.SetDefault("destination.airtable.fields.url", fields.URL)
	v.SetDefault("destination.airtable.fields.image", fields.Image)
	v.SetDefault("destination.airtable.fields.category", fields.Categories)
	v.SetDefault("destination.airtable.fields.new_category", fields.NewCategory)
	v.SetDefault("destination.airtable.fields.ingested_at", fields.IngestedAt)
	v.SetDefault("destination.postgres.dsn", "")
	v.SetDefault("destination.postgres.table", "articles")
	v.SetDefault("destination.postgres.max_conns", 4)
	v.SetDefault("destination.postgres.ensure_schema", false)

	v.SetDefault("run.page_size", 10)
	v.SetDefault("run.max_items", 100)
	v.SetDefault("dedup.enabled", true)
	v.SetDefault("categories.labels", []string{})
	v.SetDefault("categories.fallback", normalizer.DefaultFallback)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.run_timeout", 10*time.Minute)
	v.SetDefault("server.api_key", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.table", "sync_runs")
	v.SetDefault("history.ensure_schema", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateDestination(); err != nil {
		return err
	}
	if c.Run.PageSize <= 0 {
		return fmt.Errorf("run.page_size must be > 0")
	}
	if c.Run.MaxItems < 0 {
		return fmt.Errorf("run.max_items must be >= 0")
	}
	if strings.TrimSpace(c.Categories.Fallback) == "" {
		return fmt.Errorf("categories.fallback must be set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RunTimeout <= 0 {
		return fmt.Errorf("server.run_timeout must be > 0")
	}
	return nil
}

func (c Config) validateSource() error {
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be > 0")
	}
	switch c.Source.Kind {
	case SourceSearch:
		if c.Source.Search.BaseURL == "" {
			return fmt.Errorf("source.search.base_url must be set when source.kind is search")
		}
		if c.Source.Search.Index == "" {
			return fmt.Errorf("source.search.index must be set when source.kind is search")
		}
	case SourceListing, SourceHeadless:
		if c.Source.Listing.URL == "" {
			return fmt.Errorf("source.listing.url must be set when source.kind is %s", c.Source.Kind)
		}
	default:
		return fmt.Errorf("source.kind must be one of search, listing, headless; got %q", c.Source.Kind)
	}
	return nil
}

func (c Config) validateDestination() error {
	if c.Destination.Timeout <= 0 {
		return fmt.Errorf("destination.timeout must be > 0")
	}
	if c.Destination.WritesPerSecond < 0 {
		return fmt.Errorf("destination.writes_per_second must be >= 0")
	}
	switch c.Destination.Kind {
	case DestinationAirtable:
		a := c.Destination.Airtable
		if a.APIKey == "" {
			return fmt.Errorf("destination.airtable.api_key must be set when destination.kind is airtable")
		}
		if a.BaseID == "" || a.TableID == "" {
			return fmt.Errorf("destination.airtable.base_id and table_id must be set")
		}
		if a.Fields.ObjectID == "" && c.Dedup.Enabled {
			return fmt.Errorf("destination.airtable.fields.object_id must be set when dedup is enabled")
		}
	case DestinationPostgres:
		if c.Destination.Postgres.DSN == "" {
			return fmt.Errorf("destination.postgres.dsn must be set when destination.kind is postgres")
		}
	case DestinationMemory:
	default:
		return fmt.Errorf("destination.kind must be one of airtable, postgres, memory; got %q", c.Destination.Kind)
	}
	return nil
}

// CategorySet builds the canonical taxonomy described by the config.
func (c Config) CategorySet() (normalizer.CategorySet, error) {
	if len(c.Categories.Labels) == 0 {
		set := normalizer.DefaultCategorySet()
		if c.Categories.Fallback == "" || c.Categories.Fallback == set.Fallback() {
			return set, nil
		}
		return normalizer.NewCategorySet(set.Labels(), c.Categories.Fallback)
	}
	return normalizer.NewCategorySet(c.Categories.Labels, c.Categories.Fallback)
}
