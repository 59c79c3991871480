package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iamlens/iamlens/internal/collector"
	"github.com/iamlens/iamlens/internal/config"
	"github.com/iamlens/iamlens/internal/logging"
)

var collectEnv string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Pull IAM inventory from a Verify tenant into JSONL files.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollect()
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectEnv, "env", "", "environment id the collected data belongs to (output subdirectory)")
}

func runCollect() error {
	logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: "iamlens collect"})
	if err != nil {
		return err
	}

	if collectEnv == "" {
		return errors.New("--env is required")
	}

	cfg, err := config.LoadCollector()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &collector.Runner{
		Client:        collector.NewClient(ctx, cfg),
		Writer:        &collector.JSONLWriter{OutputDir: cfg.OutputDir},
		EnvID:         collectEnv,
		PageSize:      cfg.PageSize,
		DetailWorkers: 4,
		Logger:        logger,
	}

	if cfg.CollectInterval > 0 {
		logger.Info("collector started", "env", collectEnv, "interval", cfg.CollectInterval)
		scheduler := &collector.Scheduler{Runner: runner, Interval: cfg.CollectInterval}
		scheduler.Run(ctx)
		return nil
	}

	return runner.RunOnce(ctx)
}
