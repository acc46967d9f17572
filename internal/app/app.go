// Package app builds the long-lived services of a knowledgesync process from
// configuration and holds them for the commands that need them.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/knowledge-sync/internal/clock"
	"github.com/JakeFAU/knowledge-sync/internal/config"
	"github.com/JakeFAU/knowledge-sync/internal/coordinator"
	"github.com/JakeFAU/knowledge-sync/internal/destination/airtable"
	"github.com/JakeFAU/knowledge-sync/internal/destination/memory"
	"github.com/JakeFAU/knowledge-sync/internal/destination/postgres"
	"github.com/JakeFAU/knowledge-sync/internal/id"
	"github.com/JakeFAU/knowledge-sync/internal/index"
	"github.com/JakeFAU/knowledge-sync/internal/ingest"
	"github.com/JakeFAU/knowledge-sync/internal/normalizer"
	"github.com/JakeFAU/knowledge-sync/internal/progress"
	"github.com/JakeFAU/knowledge-sync/internal/progress/sinks"
	"github.com/JakeFAU/knowledge-sync/internal/ratelimit"
	"github.com/JakeFAU/knowledge-sync/internal/source/headless"
	"github.com/JakeFAU/knowledge-sync/internal/source/listing"
	"github.com/JakeFAU/knowledge-sync/internal/source/search"
)

// App holds the services shared by the sync and serve commands. It is built
// once at startup and closed when the command returns.
type App struct {
	logger      *zap.Logger
	registry    *prometheus.Registry
	fetcher     ingest.Fetcher
	destination ingest.Destination
	records     *memory.Store
	fanout      *progress.Fanout
	coordinator *coordinator.Coordinator
	closers     []func()
}

// New wires the configured source, destination and coordinator. It fails
// fast when any of them cannot be constructed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	categories, err := cfg.CategorySet()
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	if err := a.buildFetcher(cfg.Source); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.buildDestination(ctx, cfg); err != nil {
		a.Close(ctx)
		return nil, err
	}

	progressSinks, err := a.buildSinks(ctx, cfg.History)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.fanout = progress.NewFanout(logger.Named("progress"), progressSinks...)

	creator := ratelimit.NewCreator(a.destination, ratelimit.Config{
		PerSecond: cfg.Destination.WritesPerSecond,
		Burst:     1,
	}, logger.Named("ratelimit"))

	var loader coordinator.KeyLoader
	if cfg.Dedup.Enabled {
		loader = index.NewLoader(a.destination, logger.Named("index"))
	}

	a.coordinator = coordinator.New(
		a.fetcher,
		loader,
		normalizer.New(categories, cfg.Source.Origin, clock.New()),
		creator,
		a.fanout,
		clock.New(),
		id.New(),
		coordinator.Config{DedupEnabled: cfg.Dedup.Enabled},
		logger.Named("coordinator"),
	)

	logger.Info("application services initialized",
		zap.String("source", cfg.Source.Kind),
		zap.String("destination", cfg.Destination.Kind),
		zap.Bool("dedup", cfg.Dedup.Enabled),
		zap.Int("categories", categories.Len()),
	)
	return a, nil
}

func (a *App) buildFetcher(cfg config.SourceConfig) error {
	switch cfg.Kind {
	case config.SourceSearch:
		f, err := search.New(search.Config{
			BaseURL:   cfg.Search.BaseURL,
			AppID:     cfg.Search.AppID,
			APIKey:    cfg.Search.APIKey,
			Index:     cfg.Search.Index,
			Query:     cfg.Search.Query,
			Filters:   cfg.Search.Filters,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return fmt.Errorf("search source: %w", err)
		}
		a.fetcher = f
	case config.SourceListing:
		f, err := listing.New(listing.Config{
			URL:           cfg.Listing.URL,
			UserAgent:     cfg.UserAgent,
			RespectRobots: cfg.Listing.RespectRobots,
			Timeout:       cfg.Timeout,
		})
		if err != nil {
			return fmt.Errorf("listing source: %w", err)
		}
		a.fetcher = f
	case config.SourceHeadless:
		f, err := headless.NewChromedp(headless.Config{
			URL:               cfg.Listing.URL,
			UserAgent:         cfg.UserAgent,
			WaitSelector:      cfg.Headless.WaitSelector,
			NavigationTimeout: cfg.Timeout,
			SelectorTimeout:   cfg.Headless.SelectorTimeout,
		})
		if err != nil {
			return fmt.Errorf("headless source: %w", err)
		}
		a.fetcher = f
		a.closers = append(a.closers, f.Close)
	default:
		return fmt.Errorf("unknown source kind: %s", cfg.Kind)
	}
	return nil
}

func (a *App) buildDestination(ctx context.Context, cfg config.Config) error {
	d := cfg.Destination
	switch d.Kind {
	case config.DestinationAirtable:
		c, err := airtable.New(airtable.Config{
			BaseURL:  d.Airtable.BaseURL,
			APIKey:   d.Airtable.APIKey,
			BaseID:   d.Airtable.BaseID,
			TableID:  d.Airtable.TableID,
			Typecast: d.Airtable.Typecast,
			Fields:   d.Airtable.Fields,
			Timeout:  d.Timeout,
		})
		if err != nil {
			return fmt.Errorf("airtable destination: %w", err)
		}
		a.destination = c
	case config.DestinationPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      d.Postgres.DSN,
			Table:    d.Postgres.Table,
			MaxConns: d.Postgres.MaxConns,
			Timeout:  d.Timeout,
		})
		if err != nil {
			return fmt.Errorf("postgres destination: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if d.Postgres.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("postgres schema: %w", err)
			}
		}
		a.destination = store
	case config.DestinationMemory:
		a.records = memory.NewStore(cfg.Run.PageSize)
		a.destination = a.records
	default:
		return fmt.Errorf("unknown destination kind: %s", d.Kind)
	}
	return nil
}

func (a *App) buildSinks(ctx context.Context, cfg config.HistoryConfig) ([]progress.Sink, error) {
	metricsSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("progress metrics: %w", err)
	}
	out := []progress.Sink{metricsSink}
	if cfg.DSN == "" {
		return out, nil
	}
	history, err := sinks.NewRunHistorySink(ctx, cfg.DSN, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	if cfg.EnsureSchema {
		if err := history.EnsureSchema(ctx); err != nil {
			_ = history.Close(ctx)
			return nil, err
		}
	}
	return append(out, history), nil
}

// Coordinator returns the sync coordinator.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coordinator
}

// Run executes one sync run.
func (a *App) Run(ctx context.Context, pageSize, maxItems int) (coordinator.Summary, error) {
	return a.coordinator.Run(ctx, pageSize, maxItems)
}

// Registry exposes the metrics registry shared by the progress sink and the
// HTTP layer.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Records returns what a memory destination holds, or nil for any other kind.
func (a *App) Records() []ingest.Record {
	if a.records == nil {
		return nil
	}
	return a.records.Records()
}

// Close releases the browser, the database pool and the progress sinks.
func (a *App) Close(ctx context.Context) {
	if a.fanout != nil {
		a.fanout.Close(ctx)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
