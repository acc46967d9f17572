package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/knowledge-sync/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves health, metrics and on-demand sync runs over HTTP",
		Long: `Starts an HTTP server exposing /healthz, /readyz and /metrics, plus
POST /v1/runs to trigger a sync. Only one run executes at a time; a trigger
that arrives while a run is active gets 409 Conflict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root)
		},
	}
}

func runServe(ctx context.Context, root *rootOptions) error {
	cfg, a, logger, cleanup, err := bootstrap(ctx, root)
	if err != nil {
		return err
	}
	defer cleanup()

	apiServer, err := api.NewServer(a, api.Options{
		APIKey:     cfg.Server.APIKey,
		RunTimeout: cfg.Server.RunTimeout,
		PageSize:   cfg.Run.PageSize,
		MaxItems:   cfg.Run.MaxItems,
		Registerer: a.Registry(),
		Gatherer:   a.Registry(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build api server: %w", err)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
