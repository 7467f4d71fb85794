package internal

import (
	"fmt"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"

	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed version, pending update and scheduler state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return err
			}
			st := e.Status(cmd.Context())

			if logger.FlagJSON {
				return printJSON(cmd, st)
			}

			table := logger.CreateTable([]string{"Field", "Value"})
			rows := [][]string{
				{"Installed", orDash(st.Installed)},
				{"Revision", orDash(shortRev(st.Revision))},
				{"State", st.State.String()},
				{"Failures", fmt.Sprint(st.Failures)},
				{"Next check in", st.NextInterval.String()},
				{"Last check", formatTime(st.LastCheck)},
				{"Queued attempts", fmt.Sprint(st.Queued)},
			}
			if st.Pending != nil {
				rows = append(rows, []string{"Pending", st.Pending.Version + " @ " + shortRev(st.Pending.Revision)})
			}
			if st.Skip != nil {
				rows = append(rows, []string{"Skipped", st.Skip.Version + " until " + formatTime(st.Skip.Until)})
			}
			for _, r := range rows {
				if err := table.Append(r); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortRev(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
