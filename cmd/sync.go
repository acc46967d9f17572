package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/knowledge-sync/internal/config"
	"github.com/JakeFAU/knowledge-sync/internal/metrics"
)

type syncOptions struct {
	pageSize int
	maxItems int
	dryRun   bool
}

func newSyncCmd(root *rootOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync [--page-size N] [--max-items N] [--dry-run]",
		Short: "Runs one incremental sync and exits",
		Long: `Runs a single sync. The process exits non-zero only when the existing-key
index cannot be loaded or the first page cannot be fetched; per-article
failures are logged and counted in the summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, root, opts)
		},
	}
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "entries requested per page (overrides run.page_size)")
	cmd.Flags().IntVar(&opts.maxItems, "max-items", 0, "maximum entries examined, 0 for no limit (overrides run.max_items)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "write to an empty in-memory destination and print what would be created")
	return cmd
}

func (o *syncOptions) overrides(cmd *cobra.Command) []config.Override {
	var out []config.Override
	if cmd.Flags().Changed("page-size") {
		size := o.pageSize
		out = append(out, func(v *viper.Viper) { v.Set("run.page_size", size) })
	}
	if cmd.Flags().Changed("max-items") {
		limit := o.maxItems
		out = append(out, func(v *viper.Viper) { v.Set("run.max_items", limit) })
	}
	if o.dryRun {
		out = append(out, func(v *viper.Viper) { v.Set("destination.kind", config.DestinationMemory) })
	}
	return out
}

func runSync(cmd *cobra.Command, root *rootOptions, opts *syncOptions) error {
	ctx := cmd.Context()
	cfg, a, logger, cleanup, err := bootstrap(ctx, root, opts.overrides(cmd)...)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, runErr := a.Run(ctx, cfg.Run.PageSize, cfg.Run.MaxItems)
	logger.Info("sync finished",
		zap.String("run_id", summary.RunID),
		zap.Int("examined", summary.Examined),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("invalid", summary.Invalid),
		zap.Int("failed", summary.Failed),
		zap.Int("pages", summary.Pages),
		zap.String("stop_reason", string(summary.StopReason)),
		zap.Error(runErr),
	)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(a.Registry(), cfg.Metrics.Textfile); err != nil {
			logger.Warn("metrics textfile write failed", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("sync: %w", runErr)
	}

	if opts.dryRun {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(a.Records()); err != nil {
			return fmt.Errorf("print dry-run records: %w", err)
		}
	}
	return nil
}
