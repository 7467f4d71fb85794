package middleware

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/spf13/cobra"
)

var (
	openMu sync.Mutex
	opened []*engine.Engine
)

// LoadEngine opens the engine for the loaded config. Engines opened here are
// closed by CloseEngines once the command finished, whatever its outcome.
func LoadEngine(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error {
	cfg, err := Get[*config.Config](cmd, CtxKeyConfig)
	if err != nil {
		return err
	}

	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}

	openMu.Lock()
	opened = append(opened, e)
	openMu.Unlock()

	ctx := context.WithValue(cmd.Context(), CtxKeyEngine, e)
	cmd.SetContext(ctx)

	return next(cmd, args)
}

func CloseEngines() {
	openMu.Lock()
	defer openMu.Unlock()
	for _, e := range opened {
		if err := e.Close(); err != nil {
			logger.Debug("close engine: %v", err)
		}
	}
	opened = nil
}
