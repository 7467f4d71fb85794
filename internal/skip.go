package internal

import (
	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"

	"github.com/spf13/cobra"
)

func NewSkipCmd() *cobra.Command {
	var clearSkip bool

	cmd := &cobra.Command{
		Use:   "skip [version]",
		Short: "Dismiss notifications for a version",
		Long: `Dismiss notifications for a version until the skip expires.

Only one version can be dismissed at a time; skipping another replaces it.
Examples:
  deltasync skip 2.10.0      # hide 2.10.0
  deltasync skip --clear     # forget the dismissed version`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch {
			case clearSkip && len(args) > 0:
				return middleware.FlagComboError(errs.ClearWithVersion, args[0])
			case clearSkip:
				if err := e.ClearSkip(ctx); err != nil {
					return err
				}
				logger.Success("Cleared dismissed version")
				return nil
			case len(args) == 0:
				cfg, err := middleware.Get[*config.Config](cmd, middleware.CtxKeyConfig)
				if err != nil {
					return err
				}
				return middleware.FlagComboError(errs.SkipNeedsVersion, cfg.SkipDuration)
			}

			s, err := e.SkipVersion(ctx, args[0])
			if err != nil {
				return err
			}
			if logger.FlagJSON {
				return printJSON(cmd, s)
			}
			logger.Success("Skipping %s until %s", s.Version, formatTime(s.Until))
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearSkip, "clear", false, "Forget the dismissed version")

	return cmd
}
