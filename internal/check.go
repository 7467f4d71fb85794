package internal

import (
	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"
	"github.com/MrSnakeDoc/deltasync/internal/notifier"

	"github.com/spf13/cobra"
)

func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the repository for an update now",
		Long: `Run one update check immediately.

A failed manual check is reported and exits non-zero; the same failure during
a scheduled check would only move the scheduler into backoff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			failed := false
			e.Bus().OnError(func(err error) {
				failed = true
				logger.LogError("Update check failed: %v", err)
			})

			res, err := e.CheckNow(ctx)
			if err != nil {
				if failed {
					return middleware.ErrLogged
				}
				return err
			}

			if logger.FlagJSON {
				return printJSON(cmd, res)
			}

			switch res.Outcome {
			case notifier.OutcomeUpdateAvailable:
				notifier.DisplayVersionUpdate(cmd.OutOrStdout(), e.InstalledVersion(ctx), res.Version)
			default:
				logger.Success("Up to date (%s)", e.InstalledVersion(ctx))
			}
			return nil
		},
	}
}
