// Package cmd defines the knowledgesync command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/knowledge-sync/internal/api"
	"github.com/JakeFAU/knowledge-sync/internal/app"
	"github.com/JakeFAU/knowledge-sync/internal/config"
	"github.com/JakeFAU/knowledge-sync/internal/ingest"
	"github.com/JakeFAU/knowledge-sync/internal/logging"
)

// App is what the commands need from the service container. Tests swap in a
// fake through newApp.
type App interface {
	api.Runner
	Registry() *prometheus.Registry
	Records() []ingest.Record
	Close(ctx context.Context)
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newLogger is the logger factory.
var newLogger = logging.New

type rootOptions struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "knowledgesync",
		Short: "Incrementally syncs Working Knowledge articles into Airtable.",
		Long: `knowledgesync pages through the Working Knowledge article listing, skips
articles the destination already holds, normalizes the rest and inserts them
one at a time. Re-running it is safe: known articles are never inserted twice.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "path to a config file (YAML, TOML or JSON)")

	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCategoriesCmd(opts))
	return cmd
}

// ExecuteContext runs the command tree and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads validated config, then builds the logger and the app.
// The returned cleanup closes the app and flushes the logger.
func bootstrap(ctx context.Context, opts *rootOptions, overrides ...config.Override) (config.Config, App, *zap.Logger, func(), error) {
	cfg, err := config.Load(opts.cfgFile, overrides...)
	if err != nil {
		return config.Config{}, nil, nil, nil, err
	}
	logger, err := newLogger(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return config.Config{}, nil, nil, nil, fmt.Errorf("initialize application services: %w", err)
	}
	cleanup := func() {
		a.Close(context.WithoutCancel(ctx))
		_ = logger.Sync()
	}
	return cfg, a, logger, cleanup, nil
}
