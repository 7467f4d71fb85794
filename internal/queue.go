package internal

import (
	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"

	"github.com/spf13/cobra"
)

func NewQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or replay checks that failed while offline",
	}

	cmd.AddCommand(
		withEngine(newQueueListCmd)(),
		withEngine(newQueueDrainCmd)(),
	)

	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued attempts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}
			attempts, err := e.QueuedAttempts(cmd.Context())
			if err != nil {
				return err
			}

			if logger.FlagJSON {
				return printJSON(cmd, attempts)
			}
			if len(attempts) == 0 {
				logger.Info("Queue is empty")
				return nil
			}

			table := logger.CreateTable([]string{"ID", "Kind", "Queued at"})
			for _, a := range attempts {
				if err := table.Append([]string{a.ID, string(a.Kind), formatTime(a.QueuedAt)}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func newQueueDrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay queued attempts one at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}

			report, err := e.DrainOffline(cmd.Context())
			if logger.FlagJSON {
				if jerr := printJSON(cmd, report); jerr != nil {
					return jerr
				}
				return err
			}
			if err != nil {
				return err
			}
			logger.Success("Replayed %d, discarded %d, %d remaining", report.Replayed, report.Discarded, report.Remaining)
			return nil
		},
	}
}
