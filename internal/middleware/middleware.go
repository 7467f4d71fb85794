package middleware

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	CtxKeyConfig contextKey = "config"
	CtxKeyEngine contextKey = "engine"
)

type CommandFactory func() *cobra.Command

// MiddlewareFunc runs before a command. It either calls next to continue the
// chain or returns an error to stop it.
type MiddlewareFunc func(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error

type MiddlewareChain func(factory CommandFactory) CommandFactory

type contextKey string

// UseMiddlewareChain wraps a CommandFactory so that middlewares run, in
// order, as the command's PreRunE. A PreRunE the factory set runs last.
func UseMiddlewareChain(middlewares ...MiddlewareFunc) MiddlewareChain {
	chain := append([]MiddlewareFunc(nil), middlewares...)

	return func(factory CommandFactory) CommandFactory {
		return func() *cobra.Command {
			cmd := factory()

			final := cmd.PreRunE
			if final == nil {
				final = func(*cobra.Command, []string) error { return nil }
			}

			next := final
			for i := len(chain) - 1; i >= 0; i-- {
				mw, inner := chain[i], next
				next = func(c *cobra.Command, a []string) error { return mw(c, a, inner) }
			}
			cmd.PreRunE = next
			return cmd
		}
	}
}

// Get fetches a value a middleware stored in the command context.
func Get[T any](cmd *cobra.Command, key contextKey) (T, error) {
	var zero T

	ctx := cmd.Context()
	if ctx == nil {
		return zero, fmt.Errorf("command context is nil")
	}

	val := ctx.Value(key)
	if val == nil {
		return zero, fmt.Errorf("context value %q is nil", key)
	}

	casted, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("context value %q has wrong type: %T", key, val)
	}

	return casted, nil
}
