package middleware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/spf13/cobra"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func TestUseMiddlewareChain_RunsInOrder(t *testing.T) {
	var calls []string
	mw := func(name string) MiddlewareFunc {
		return func(cmd *cobra.Command, args []string, next func(*cobra.Command, []string) error) error {
			calls = append(calls, name)
			return next(cmd, args)
		}
	}

	factory := UseMiddlewareChain(mw("a"), mw("b"))(func() *cobra.Command {
		return &cobra.Command{
			Use:     "x",
			PreRunE: func(*cobra.Command, []string) error { calls = append(calls, "pre"); return nil },
			RunE:    func(*cobra.Command, []string) error { calls = append(calls, "run"); return nil },
		}
	})

	cmd := factory()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b", "pre", "run"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestUseMiddlewareChain_StopsOnError(t *testing.T) {
	ran := false
	stop := func(*cobra.Command, []string, func(*cobra.Command, []string) error) error {
		return FlagComboError("SOMETHING")
	}

	cmd := UseMiddlewareChain(stop)(func() *cobra.Command {
		return &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { ran = true; return nil }}
	})()
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	if !errors.Is(err, ErrLogged) {
		t.Fatalf("expected ErrLogged, got %v", err)
	}
	if ran {
		t.Error("RunE ran after a failing middleware")
	}
}

func TestGet(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.WithValue(context.Background(), CtxKeyConfig, "not a config"))

	if _, err := Get[*config.Config](cmd, CtxKeyConfig); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := Get[*config.Config](cmd, CtxKeyEngine); err == nil {
		t.Error("expected missing value error")
	}
}

func TestRequireConfigAndBackend(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	dir := t.TempDir()

	write := func(name, backend string) string {
		cfg := config.DefaultConfig()
		cfg.Repository.Owner, cfg.Repository.Name = "acme", "userscript"
		cfg.State.Backend = backend
		path := filepath.Join(dir, name)
		if err := cfg.Save(path); err != nil {
			t.Fatal(err)
		}
		return path
	}

	newCmd := func(path string, reached *bool) *cobra.Command {
		cmd := UseMiddlewareChain(RequireConfig, ValidateBackend)(func() *cobra.Command {
			return &cobra.Command{Use: "x", RunE: func(c *cobra.Command, _ []string) error {
				cfg, err := Get[*config.Config](c, CtxKeyConfig)
				if err != nil {
					return err
				}
				*reached = cfg.Repository.Owner == "acme"
				return nil
			}}
		})()
		cmd.Flags().String("config", "", "")
		cmd.SilenceErrors = true
		cmd.SetArgs([]string{"--config", path})
		return cmd
	}

	var reached bool
	if err := newCmd(write("ok.yml", "sqlite"), &reached).Execute(); err != nil {
		t.Fatal(err)
	}
	if !reached {
		t.Error("config was not available to RunE")
	}

	reached = false
	err := newCmd(write("bad.yml", "redis"), &reached).Execute()
	if !errors.Is(err, ErrLogged) {
		t.Fatalf("expected ErrLogged for unknown backend, got %v", err)
	}
	if reached {
		t.Error("RunE ran with an unknown backend")
	}
}
