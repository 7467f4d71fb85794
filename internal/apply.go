package internal

import (
	"errors"

	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"

	"github.com/spf13/cobra"
)

func NewApplyCmd() *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Install the pending update",
		Long: `Install the pending update as a delta.

Only the files changed since the installed revision are downloaded. The active
files are snapshotted first and put back if any download fails.
Examples:
  deltasync apply             # install the pending update
  deltasync apply --dry-run   # list the files that would be fetched
  deltasync apply --force     # install even if the version was dismissed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun && force {
				return middleware.FlagComboError(errs.ApplyCheckOnlyCombo)
			}

			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}

			report, err := e.ApplyUpdate(cmd.Context(), engine.ApplyOptions{DryRun: dryRun, Force: force})
			switch {
			case errors.Is(err, engine.ErrNothingPending):
				logger.Info("No pending update, run `deltasync check` first")
				return nil
			case errors.Is(err, engine.ErrVersionSkipped):
				logger.Warn("%v, use --force to install it anyway", err)
				return nil
			}

			if logger.FlagJSON {
				if jerr := printJSON(cmd, report); jerr != nil {
					return jerr
				}
				return err
			}
			if err != nil {
				reportFailedApply(report)
				return err
			}

			if report.DryRun {
				logger.Info("Would update %s -> %s at %s", orDash(report.From), report.To, shortRev(report.Revision))
				printPaths("fetch", report.Paths)
				printPaths("remove", report.Removed)
				return nil
			}

			logger.Success("Updated %s -> %s (%d files)", orDash(report.From), report.To, len(report.Paths))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the files that would be fetched")
	cmd.Flags().BoolVar(&force, "force", false, "Install even if the version was dismissed")

	return cmd
}

func reportFailedApply(report engine.ApplyReport) {
	if report.Download == nil {
		return
	}
	for _, path := range report.Download.Failed {
		logger.LogError("Failed to fetch %s", path)
	}
	if r := report.Download.Restore; r != nil {
		logger.Warn("Restored %s from snapshot (%s)", orDash(r.Version), r.Quality)
	}
}

func printPaths(verb string, paths []string) {
	for _, p := range paths {
		logger.Info("  %s %s", verb, p)
	}
}
