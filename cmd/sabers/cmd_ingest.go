package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/internal/worker"
	"github.com/sabers-go/sabers/pkg/core"
)

func newIngestCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Ingest maps and replays into the configured storage",
		Long: `Walks each path for map directories, map zip archives and .bsor replays
and stores them in the configured backend. A failing map is logged and
never stops the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers <= 0 {
				workers = config.GetIngestConfig().Workers
			}
			targets, err := collectTargets(args)
			if err != nil {
				return err
			}

			s, err := newServices(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := ingest(cmd.Context(), s.worker, targets, workers)
			if err != nil {
				return err
			}
			printRunSummary(cmd.OutOrStdout(), run, s.worker.Failures())
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent ingest workers (default from ingest.workers)")
	return cmd
}

// ingest runs every target through the worker inside one ingest run.
func ingest(ctx context.Context, w *worker.Manager, targets []target, workers int) (*core.IngestRun, error) {
	run, err := w.StartRun(ctx)
	if err != nil {
		return nil, err
	}
	Logger.Info("Ingest started", "targets", len(targets), "workers", workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, t := range targets {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			switch t.Command {
			case worker.CommandMap:
				_, _ = w.IngestMap(gctx, t.Path)
			case worker.CommandReplay:
				_ = w.IngestReplay(gctx, t.Path)
			}
			return nil
		})
	}
	_ = g.Wait()

	run, err = w.EndRun(ctx)
	if err != nil {
		return run, err
	}
	Logger.Info("Ingest finished", "run", run.ID, "maps", run.Maps, "replays", run.Replays,
		"skipped", run.Skipped, "failures", run.Failures)
	return run, nil
}

func printRunSummary(w io.Writer, run *core.IngestRun, failures []worker.Failure) {
	elapsed := run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(w, "run %s finished in %s\n", run.ID, elapsed)
	fmt.Fprintf(w, "  maps:     %s\n", humanize.Comma(int64(run.Maps)))
	fmt.Fprintf(w, "  replays:  %s\n", humanize.Comma(int64(run.Replays)))
	fmt.Fprintf(w, "  skipped:  %s\n", humanize.Comma(int64(run.Skipped)))
	fmt.Fprintf(w, "  failures: %s\n", humanize.Comma(int64(run.Failures)))
	for _, f := range failures {
		fmt.Fprintf(w, "  %s %s: %v\n", f.Command, f.Path, f.Err)
	}
}
