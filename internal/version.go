package internal

import (
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/versions"

	"github.com/spf13/cobra"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logger.FlagJSON {
				return printJSON(cmd, map[string]string{
					"version":    versions.Version,
					"commit":     versions.Commit,
					"date":       versions.Date,
					"go_version": versions.GoVersion,
				})
			}
			versions.PrintVersion(cmd.OutOrStdout())
			return nil
		},
	}
}
