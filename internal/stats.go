package internal

import (
	"fmt"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"
	"github.com/MrSnakeDoc/deltasync/internal/utils"

	"github.com/spf13/cobra"
)

func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show timing statistics of recent operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}
			stats := e.GetPerformanceStats()

			if logger.FlagJSON {
				return printJSON(cmd, stats)
			}
			if len(stats) == 0 {
				logger.Info("No measurements recorded yet")
				return nil
			}

			table := logger.CreateTable([]string{"Operation", "Count", "Avg", "Min", "Max"})
			for _, name := range utils.SortedKeys(stats) {
				s := stats[name]
				if err := table.Append([]string{
					name,
					fmt.Sprint(s.Count),
					round(s.Avg),
					round(s.Min),
					round(s.Max),
				}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func round(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
