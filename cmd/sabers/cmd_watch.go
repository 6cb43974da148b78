package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabers-go/sabers/internal/dispatcher"
	"github.com/sabers-go/sabers/internal/logging"
	"github.com/sabers-go/sabers/internal/monitor"
)

func newWatchCmd() *cobra.Command {
	var (
		settle     time.Duration
		buffer     int
		existing   bool
		statusFile string
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest maps and replays as they appear in a directory",
		Long: `Watches a directory and ingests every map directory, map zip archive and
.bsor replay added to it, until interrupted. The ingest run is closed and
summarized on exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newServices(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := dispatcher.New(logging.NewComponentLogger(Logger, "dispatcher"))
			if err != nil {
				return err
			}
			s.worker.RegisterHandlers(d, dispatcher.Buffered(buffer), dispatcher.Blocking())

			if _, err := s.worker.StartRun(ctx); err != nil {
				d.Close()
				return err
			}

			if existing {
				targets, err := collectTargets(args)
				if err != nil {
					Logger.Error("Failed to scan directory", "path", args[0], "error", err)
				}
				for _, t := range targets {
					_, _ = d.Dispatch(dispatcher.Event{Command: t.Command, Path: t.Path})
				}
			}

			w, err := newDirWatcher(args[0], settle, d.Dispatch)
			if err != nil {
				d.Close()
				return err
			}

			status := monitor.NewService(monitor.Dependencies{
				LogManager:    SlogManager,
				WorkerManager: s.worker,
				StatusPath:    statusFile,
			})
			if err := status.Start(); err != nil {
				Logger.Warn("Status monitor not started", "error", err)
			}

			Logger.Info("Watching for maps and replays", "path", args[0], "settle", settle)
			runErr := w.Run(ctx)

			// drain queued paths before closing the run
			d.Close()
			for command, c := range d.Stats() {
				Logger.Info("Queue drained", "command", command,
					"processed", c.Processed, "failed", c.Failed, "dropped", c.Dropped)
			}
			status.Stop()
			run, err := s.worker.EndRun(context.Background())
			if err != nil {
				return err
			}
			printRunSummary(cmd.OutOrStdout(), run, s.worker.Failures())
			return runErr
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "quiet period before a new path is ingested")
	cmd.Flags().IntVar(&buffer, "buffer", 256, "queued paths per command")
	cmd.Flags().BoolVar(&existing, "existing", false, "also ingest what is already in the directory")
	cmd.Flags().StringVar(&statusFile, "status-file", "", "rewrite this file with the run counters every second")
	return cmd
}
