package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iamlens/iamlens/internal/cache"
	"github.com/iamlens/iamlens/internal/config"
	"github.com/iamlens/iamlens/internal/export"
	"github.com/iamlens/iamlens/internal/logging"
	"github.com/iamlens/iamlens/internal/persist"
	"github.com/iamlens/iamlens/internal/record"
	"github.com/iamlens/iamlens/internal/registry"
	"github.com/iamlens/iamlens/internal/state"
)

var (
	exportEnvs string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build an aggregated export document without running the server.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport()
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportEnvs, "envs", "", "comma-separated environment ids to export (default: all reachable)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default: stdout)")
}

func runExport() error {
	logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: "iamlens export"})
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

	ca := cache.New(loader, reg.ResourceURL, cfg.LoadTimeout, logger)
	st := state.New(ctx, reg, ca, nil, logger)

	ids := persist.DecodeSelection(exportEnvs, reg.Has)
	if len(ids) == 0 {
		for _, env := range reg.Environments() {
			ids = append(ids, env.ID)
		}
	}
	for _, id := range ids {
		if err := st.Select(id); err != nil {
			return err
		}
	}
	st.WaitForLoads()

	doc := export.Build(st.View(), st.Selected())

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
