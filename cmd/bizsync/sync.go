package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bizsync/internal/config"
	"bizsync/internal/datasource/file"
	"bizsync/internal/metrics"
	"bizsync/internal/metrics/datadog"
	"bizsync/internal/metrics/prompush"
	"bizsync/internal/pipeline"
	"bizsync/internal/storage"
)

const metricsJob = "bizsync"

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Split the input, write new businesses and sync categories and services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prepare(); err != nil {
				return err
			}
			defer a.close()
			return a.sync(cmd.Context())
		},
	}
}

func (a *app) sync(ctx context.Context) error {
	cfg := a.cfg
	flush := setupMetrics(cfg, a.log)
	defer flush()

	a.log.WithFields(logrus.Fields{
		"input":  cfg.Input,
		"driver": cfg.Driver,
		"limit":  cfg.Limit,
	}).Info("starting sync")

	var bar *progressbar.ProgressBar
	opts := pipeline.Options{
		Source: file.NewLocal(cfg.Input),
		Open: func(ctx context.Context) (storage.DB, error) {
			return storage.Open(ctx, cfg.Storage())
		},
		TmpDir:           cfg.TmpDir,
		Limit:            cfg.Limit,
		BatchSize:        cfg.BatchSize,
		StatementRows:    cfg.StatementRows,
		MaxChunkBytes:    int64(cfg.ChunkMB) << 20,
		DirectParseLimit: int64(cfg.DirectParseMB) << 20,
		Job:              metricsJob,
		Log:              a.log,
	}
	if cfg.Progress {
		opts.OnChunk = func(pr pipeline.Progress) {
			if bar == nil {
				bar = progressbar.NewOptions(pr.Chunks,
					progressbar.OptionSetWriter(a.stderr),
					progressbar.OptionSetDescription("chunks"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowElapsedTimeOnFinish(),
				)
			}
			_ = bar.Set(pr.Chunk)
		}
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	sum, err := p.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(a.stderr)
	}
	printSummary(a.stdout, sum)
	return err
}

// setupMetrics installs the configured backend and returns its flush.
func setupMetrics(cfg *config.Config, log logrus.FieldLogger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err = prompush.NewBackend(metricsJob, cfg.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			Namespace:  metricsJob + ".",
			GlobalTags: []string{"service:" + metricsJob},
		})
	default:
		return func() {}
	}
	if err != nil {
		log.WithError(err).Warn("metrics disabled")
		return func() {}
	}
	metrics.SetBackend(b)
	log.WithField("backend", cfg.MetricsBackend).Info("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics flush")
		}
	}
}

func printSummary(w io.Writer, s pipeline.Summary) {
	c := s.Counters
	fmt.Fprintf(w, "run %s: %s in %s (%d chunks)\n", s.RunID, s.State, s.Duration.Truncate(time.Millisecond), s.Chunks)
	fmt.Fprintf(w, "  records:   %s\n", humanize.Comma(int64(c.Records)))
	fmt.Fprintf(w, "  processed: %s (new %s, existing %s)\n",
		humanize.Comma(int64(c.Processed)), humanize.Comma(int64(c.New)), humanize.Comma(int64(c.Existing)))
	fmt.Fprintf(w, "  skipped:   %s\n", humanize.Comma(int64(c.Skipped)))
	fmt.Fprintf(w, "  written:   %s\n", humanize.Comma(int64(c.Written)))

	if len(s.Categories) > 0 {
		fmt.Fprintf(w, "categories (%d):\n", len(s.Categories))
		for _, cat := range s.Categories {
			fmt.Fprintf(w, "  %-40s %s\n", cat.Name, humanize.Comma(int64(cat.Count)))
		}
	}
	if len(s.TopOptions) > 0 {
		fmt.Fprintln(w, "top service options:")
		for _, o := range s.TopOptions {
			fmt.Fprintf(w, "  %-40s %s\n", o.Name, humanize.Comma(int64(o.Businesses)))
		}
	}
}
