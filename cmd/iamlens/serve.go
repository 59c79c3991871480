package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iamlens/iamlens/internal/cache"
	"github.com/iamlens/iamlens/internal/config"
	httpapp "github.com/iamlens/iamlens/internal/http"
	"github.com/iamlens/iamlens/internal/logging"
	"github.com/iamlens/iamlens/internal/metrics"
	"github.com/iamlens/iamlens/internal/persist"
	"github.com/iamlens/iamlens/internal/record"
	"github.com/iamlens/iamlens/internal/registry"
	"github.com/iamlens/iamlens/internal/state"
)

var serveEnvs string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveEnvs, "envs", "", "comma-separated environment ids to select at startup (takes priority over the remembered selection)")
}

func runServe() error {
	logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: "iamlens serve"})
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := record.NewLoader(nil, logger)
	reg, err := registry.Load(ctx, cfg.DataBaseURL, loader, logger)
	if err != nil {
		return err
	}

	local, err := persist.OpenLocalStore(cfg.StateDBPath, logger)
	if err != nil {
		return err
	}
	defer local.Close()

	ca := cache.New(loader, reg.ResourceURL, cfg.LoadTimeout, logger)
	st := state.New(ctx, reg, ca, local, logger)

	if restored := persist.Restore(serveEnvs, local, reg.Has, st, logger); len(restored) > 0 {
		logger.Info("selection restored", "environments", restored)
	}

	metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr)

	srv, err := httpapp.NewEchoServer(cfg, reg, ca, st, local, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		errCh <- srv.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-metricsErrCh:
		if err != nil {
			logger.Error("metrics server failed", "err", err)
			return err
		}
		return nil
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
