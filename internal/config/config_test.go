package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/knowledge-sync/internal/normalizer"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
source:
  kind: listing
  timeout: 5s
  listing:
    url: https://example.com/list
destination:
  kind: postgres
  writes_per_second: 0
  postgres:
    dsn: postgres://localhost/articles
    table: wk_articles
run:
  page_size: 25
  max_items: 0
dedup:
  enabled: false
categories:
  labels: ["Finance", "Leadership"]
  fallback: Other
server:
  port: 9090
  run_timeout: 1m
  api_key: secret
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, SourceListing, cfg.Source.Kind)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, "https://example.com/list", cfg.Source.Listing.URL)
	assert.Equal(t, DestinationPostgres, cfg.Destination.Kind)
	assert.Equal(t, "wk_articles", cfg.Destination.Postgres.Table)
	assert.Zero(t, cfg.Destination.WritesPerSecond)
	assert.Equal(t, 25, cfg.Run.PageSize)
	assert.Zero(t, cfg.Run.MaxItems)
	assert.False(t, cfg.Dedup.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Server.RunTimeout)
	assert.Equal(t, "secret", cfg.Server.APIKey)

	set, err := cfg.CategorySet()
	require.NoError(t, err)
	assert.Equal(t, []string{"Finance", "Leadership"}, set.Labels())
	assert.Equal(t, "Other", set.Fallback())
}

func TestReadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Read("")
	require.NoError(t, err)

	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, SourceSearch, cfg.Source.Kind)
	assert.Equal(t, "https://www.library.hbs.edu", cfg.Source.Origin)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Equal(t, ".hbs-tease-feed__item", cfg.Source.Headless.WaitSelector)
	assert.Equal(t, DestinationAirtable, cfg.Destination.Kind)
	assert.Equal(t, 5.0, cfg.Destination.WritesPerSecond)
	assert.Equal(t, "appoz4aD0Hjolycwd", cfg.Destination.Airtable.BaseID)
	assert.Equal(t, "tblpMPs5RCoP0PmFt", cfg.Destination.Airtable.TableID)
	assert.Equal(t, "fldL68m7PxHr8Yu07", cfg.Destination.Airtable.Fields.Title)
	assert.Equal(t, "fldlf7UamHsrgCEKb", cfg.Destination.Airtable.Fields.Categories)
	assert.Equal(t, 10, cfg.Run.PageSize)
	assert.Equal(t, 100, cfg.Run.MaxItems)
	assert.True(t, cfg.Dedup.Enabled)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.History.DSN)
	assert.Equal(t, "sync_runs", cfg.History.Table)

	set, err := cfg.CategorySet()
	require.NoError(t, err)
	assert.Equal(t, normalizer.DefaultCategorySet().Len(), set.Len())
	assert.Equal(t, normalizer.DefaultFallback, set.Fallback())
}

func TestReadAppliesOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := Read("", func(v *viper.Viper) {
		v.Set("run.page_size", 3)
		v.Set("destination.kind", DestinationMemory)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Run.PageSize)
	assert.Equal(t, DestinationMemory, cfg.Destination.Kind)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("KSYNC_SOURCE_SEARCH_BASE_URL", "https://search.example.com")
	t.Setenv("KSYNC_SOURCE_SEARCH_INDEX", "articles")
	t.Setenv("KSYNC_DESTINATION_AIRTABLE_API_KEY", "pat-env")
	t.Setenv("KSYNC_RUN_MAX_ITEMS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://search.example.com", cfg.Source.Search.BaseURL)
	assert.Equal(t, "pat-env", cfg.Destination.Airtable.APIKey)
	assert.Equal(t, 7, cfg.Run.MaxItems)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Read("")
	require.NoError(t, err)
	base.Source.Search.BaseURL = "https://search.example.com"
	base.Source.Search.Index = "articles"
	base.Destination.Airtable.APIKey = "pat"
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unknown source", mutate: func(c *Config) { c.Source.Kind = "rss" }, want: "source.kind"},
		{name: "search without index", mutate: func(c *Config) { c.Source.Search.Index = "" }, want: "source.search.index"},
		{name: "search without base url", mutate: func(c *Config) { c.Source.Search.BaseURL = "" }, want: "source.search.base_url"},
		{name: "listing without url", mutate: func(c *Config) {
			c.Source.Kind = SourceHeadless
			c.Source.Listing.URL = ""
		}, want: "source.listing.url"},
		{name: "source timeout", mutate: func(c *Config) { c.Source.Timeout = 0 }, want: "source.timeout"},
		{name: "unknown destination", mutate: func(c *Config) { c.Destination.Kind = "sheets" }, want: "destination.kind"},
		{name: "airtable without key", mutate: func(c *Config) { c.Destination.Airtable.APIKey = "" }, want: "destination.airtable.api_key"},
		{name: "airtable without object id field", mutate: func(c *Config) { c.Destination.Airtable.Fields.ObjectID = "" }, want: "fields.object_id"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Destination.Kind = DestinationPostgres }, want: "destination.postgres.dsn"},
		{name: "negative write rate", mutate: func(c *Config) { c.Destination.WritesPerSecond = -1 }, want: "writes_per_second"},
		{name: "page size", mutate: func(c *Config) { c.Run.PageSize = 0 }, want: "run.page_size"},
		{name: "max items", mutate: func(c *Config) { c.Run.MaxItems = -1 }, want: "run.max_items"},
		{name: "fallback", mutate: func(c *Config) { c.Categories.Fallback = " " }, want: "categories.fallback"},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "run timeout", mutate: func(c *Config) { c.Server.RunTimeout = 0 }, want: "server.run_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestMemoryDestinationNeedsNoCredentials(t *testing.T) {
	t.Parallel()

	cfg, err := Read("", func(v *viper.Viper) {
		v.Set("source.kind", SourceListing)
		v.Set("destination.kind", DestinationMemory)
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}
