package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/weiihann/heft/config"
	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

func newWorkloadsCmd(opts *rootOptions) *cobra.Command {
	var exclude []string

	cmd := &cobra.Command{
		Use:   "workloads",
		Short: "List the workloads a run would measure",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("exclude") {
				cfg.Workloads.Exclude = exclude
			}

			return listWorkloads(cmd.Context(), opts.logger, cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringSliceVar(&exclude, "exclude", nil,
		"Workloads to leave out")

	return cmd
}

func listWorkloads(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg *config.Config,
) error {
	pool, err := store.Open(ctx, store.Options{
		DSN:         cfg.Database.DSN,
		Size:        1,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer pool.Close()

	reg, err := registerSuite(ctx, logger, pool, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, workloadTable(reg))

	for _, s := range reg.Skipped() {
		fmt.Fprintf(out, "Skipped %s: %s\n", s.Name, s.Reason)
	}

	return nil
}

func workloadTable(reg *workload.Registry) *table.Table {
	t := table.New().Headers("Workload", "Weight")
	for _, def := range reg.Definitions() {
		t.Row(def.Name, fmt.Sprintf("%.2f", def.BaseWeight))
	}

	return t
}
