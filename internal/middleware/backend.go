package middleware

import (
	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/spf13/cobra"
)

// ValidateBackend rejects an unknown state backend before anything is opened.
// It must run after RequireConfig.
func ValidateBackend(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error {
	cfg, err := Get[*config.Config](cmd, CtxKeyConfig)
	if err != nil {
		return err
	}

	switch cfg.State.Backend {
	case kvstore.BackendFile, kvstore.BackendSQLite, kvstore.BackendMemory:
		return next(cmd, args)
	default:
		return FlagComboError(errs.UnknownBackend, cfg.State.Backend)
	}
}
