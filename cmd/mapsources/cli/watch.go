package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mapsources/internal/scan"
	"mapsources/internal/scheduler"
	"mapsources/internal/watch"
)

const rescanJob = "rescan"

// NewWatchCommand returns the "watch" command.
func NewWatchCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the registry in sync with database files until interrupted",
		Long: "Watches the maps directory and the directories of configured sources. " +
			"Any change to a database file marks the registry stale; with --rescan, " +
			"matching files are added on a cron schedule.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rescan, _ := cmd.Flags().GetString("rescan")
			scanFirst, _ := cmd.Flags().GetBool("scan")

			return withApp(cmd, logger, func(a *app) error {
				return runWatch(cmd.Context(), a, newPrinter(cmd), a.patterns(cmd), rescan, scanFirst)
			})
		},
	}
	cmd.Flags().StringSlice("pattern", nil, "glob pattern of database files (repeatable, ** allowed)")
	cmd.Flags().String("rescan", "", "cron expression with seconds field for periodic rescans (e.g. \"0 */10 * * * *\")")
	cmd.Flags().Bool("scan", false, "scan once before watching")
	return cmd
}

func runWatch(ctx context.Context, a *app, p *printer, patterns []string, rescan string, scanFirst bool) error {
	scanner := scan.New(a.registry, patterns, a.logger)
	if scanFirst {
		if _, err := scanner.Run(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if rescan != "" {
		sched, err := scheduler.New(a.logger)
		if err != nil {
			return err
		}
		err = sched.AddJob(rescanJob, rescan, func() {
			if _, err := scanner.Run(ctx); err != nil {
				a.logger.Warn("scheduled rescan failed", "error", err)
			}
		})
		if err != nil {
			_ = sched.Stop()
			return err
		}
		sched.Start()
		for _, j := range sched.ListJobs() {
			if j.NextRun.IsZero() {
				p.line("%s scheduled (%s)", j.Name, j.Schedule)
				continue
			}
			p.line("%s scheduled (%s), next run %s", j.Name, j.Schedule, j.NextRun.Format(time.RFC3339))
		}
		g.Go(func() error {
			<-ctx.Done()
			return sched.Stop()
		})
	}

	w := watch.New(watch.Config{
		Patterns:    patterns,
		SourcePaths: a.registry.Paths,
		OnChange:    func(string) { a.registry.Invalidate() },
		Logger:      a.logger,
	})
	g.Go(func() error { return w.Run(ctx) })

	return g.Wait()
}
