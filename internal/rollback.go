package internal

import (
	"errors"

	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"
	"github.com/MrSnakeDoc/deltasync/internal/prompter"
	"github.com/MrSnakeDoc/deltasync/internal/rollback"
	"github.com/MrSnakeDoc/deltasync/internal/utils"

	"github.com/spf13/cobra"
)

func NewRollbackCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the files saved before the last update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if !yes {
				snap, ok, err := e.CurrentSnapshot(ctx)
				switch {
				case err != nil:
					return err
				case !ok:
					logger.Warn("No snapshot to roll back to")
					return nil
				}
				p := prompter.New(cmd.InOrStdin(), cmd.OutOrStdout())
				ok, err = p.Confirm("Restore " + orDash(snap.Version) + " (" + formatTime(snap.TakenAt) + ")?")
				if err != nil {
					return err
				}
				if !ok {
					logger.Info("Rollback aborted")
					return nil
				}
			}

			report, err := e.Rollback(ctx)
			if errors.Is(err, errs.ErrNoSnapshot) {
				logger.Warn("No snapshot to roll back to")
				return nil
			}

			if logger.FlagJSON {
				if jerr := printJSON(cmd, report); jerr != nil {
					return jerr
				}
				return err
			}

			for _, name := range utils.SortedKeys(report.Failed) {
				logger.LogError("Could not restore %s: %s", name, report.Failed[name])
			}
			if report.Quality != rollback.QualityFull {
				logger.Warn("Rollback quality: %s", report.Quality)
				return err
			}
			logger.Success("Restored %s (%d files)", orDash(report.Version), len(report.Restored))
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
