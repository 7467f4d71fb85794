package middleware

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/spf13/cobra"
)

// RequireConfig loads the config named by --config (or the default path) and
// stores it in the command context.
func RequireConfig(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("missing config: %w", err)
	}

	ctx := context.WithValue(cmd.Context(), CtxKeyConfig, cfg)
	cmd.SetContext(ctx)

	return next(cmd, args)
}
