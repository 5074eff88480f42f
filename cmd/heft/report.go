package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/weiihann/heft/config"
	"github.com/weiihann/heft/harness"
	"github.com/weiihann/heft/report"
)

type reportFlags struct {
	htmlOut    string
	metricsOut string
	query      string
	watch      bool
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var f reportFlags

	cmd := &cobra.Command{
		Use:   "report <payload.json>",
		Short: "Render a saved JSON payload",
		Long: `Render a payload written by "heft run --json" as a table, HTML page or
Prometheus metrics, or extract fields from it with a JMESPath query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderReport(cmd.Context(), opts.logger, cmd.OutOrStdout(), args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.htmlOut, "html", "",
		"Write the HTML report to this path")
	flags.StringVar(&f.metricsOut, "metrics", "",
		"Write Prometheus text-format metrics to this path")
	flags.StringVarP(&f.query, "query", "q", "",
		"JMESPath expression to evaluate against the payload")
	flags.BoolVarP(&f.watch, "watch", "w", false,
		"Re-render whenever the payload file changes")

	return cmd
}

func renderReport(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	path string,
	f reportFlags,
) error {
	p, err := report.ReadFile(path)
	if err != nil {
		return err
	}

	render := func(p *harness.Payload) error {
		if f.query != "" {
			data, err := report.Query(p, f.query)
			if err != nil {
				return err
			}

			return report.WriteJSONColor(out, data, isTerminal(out))
		}

		return report.Generate(out, p)
	}

	if err := render(p); err != nil {
		return err
	}

	if err := writeOutputs(ctx, logger, p, config.OutputConfig{
		HTML:    f.htmlOut,
		Metrics: f.metricsOut,
	}); err != nil {
		return err
	}

	if !f.watch {
		return nil
	}

	return report.Watch(ctx, path, logger, func(p *harness.Payload) {
		if err := render(p); err != nil {
			logger.WarnContext(ctx, "render payload failed",
				slog.String("error", err.Error()),
			)
		}
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}
