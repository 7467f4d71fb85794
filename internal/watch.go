package internal

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"
	"github.com/MrSnakeDoc/deltasync/internal/notifier"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewWatchCmd() *cobra.Command {
	var metricsAddr string
	var drain bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check for updates on a schedule until interrupted",
		Long: `Run the update scheduler in the foreground.

Checks run every base interval, back off after failures and run more often
while an update is waiting. With --metrics-addr the operation timings are
exported for Prometheus on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			e.Bus().OnUpdateAvailable(func(version string) {
				if logger.FlagJSON {
					_ = printJSON(cmd, map[string]string{"event": "update-available", "version": version})
					return
				}
				notifier.DisplayVersionUpdate(out, e.InstalledVersion(ctx), version)
			})
			e.Bus().OnCheckCompleted(func(ev notifier.CheckCompleted) {
				if ev.Err != nil {
					logger.Debug("check failed: %v", ev.Err)
					return
				}
				logger.Debug("check completed: %s", ev.Outcome)
			})

			g, ctx := errgroup.WithContext(ctx)
			if metricsAddr != "" {
				g.Go(func() error { return e.Metrics().Serve(ctx, metricsAddr) })
			}
			g.Go(func() error {
				if drain {
					if _, err := e.DrainOffline(ctx); err != nil {
						logger.Warn("Offline queue replay stopped: %v", err)
					}
				}
				return e.Run(ctx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("Stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&drain, "drain", true, "Replay queued offline attempts before the first check")

	return cmd
}
