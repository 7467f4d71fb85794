package internal

import (
	"encoding/json"

	"github.com/MrSnakeDoc/deltasync/internal/middleware"
	"github.com/spf13/cobra"
)

var withEngine = middleware.UseMiddlewareChain(
	middleware.RequireConfig,
	middleware.ValidateBackend,
	middleware.LoadEngine,
)

var defaultCommands = []middleware.CommandFactory{
	NewInitCmd,
	withEngine(NewCheckCmd),
	withEngine(NewStatusCmd),
	withEngine(NewSkipCmd),
	withEngine(NewApplyCmd),
	withEngine(NewRollbackCmd),
	withEngine(NewStatsCmd),
	NewQueueCmd,
	withEngine(NewWatchCmd),
	NewVersionCmd,
}

func RegisterSubCommands(cmd *cobra.Command) {
	for _, factory := range defaultCommands {
		cmd.AddCommand(factory())
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
