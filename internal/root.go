package internal

import (
	"os"
	"strings"

	"github.com/MrSnakeDoc/deltasync/internal/engine"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"
	"github.com/MrSnakeDoc/deltasync/internal/notifier"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deltasync",
		Short: "Delta updater for a deployed script artifact",
		Long: `Deltasync keeps a deployed script artifact in sync with its source repository.
It polls the repository, decides whether a change is worth announcing, fetches
only the files that changed and rolls back when an update cannot be completed.`,
		Example: `deltasync check
deltasync apply --dry-run`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.ConfigureLoggerFromFlags()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			noUpdate, _ := cmd.Flags().GetBool("no-update-check")
			envNoUpdate := strings.TrimSpace(os.Getenv("DELTASYNC_NO_UPDATE_CHECK")) == "1"

			switch cmd.Name() {
			case "apply", "skip", "rollback", "watch", "check", "version", "init", "help", "completion":
				return nil
			}
			if noUpdate || envNoUpdate || logger.FlagJSON {
				return nil
			}

			e, err := middleware.Get[*engine.Engine](cmd, middleware.CtxKeyEngine)
			if err != nil {
				return nil
			}
			ctx := cmd.Context()
			notifier.DisplayPendingUpdate(ctx, cmd.OutOrStdout(), e.Store(), e.InstalledVersion(ctx))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Path to the config file (default ~/.config/deltasync/config.yml)")
	pf.CountVarP(&logger.FlagVerboseCount, "verbose", "V", "Increase verbosity (-V, -VV)")
	pf.BoolVarP(&logger.FlagQuiet, "quiet", "q", false, "Only print errors")
	pf.BoolVarP(&logger.FlagSilent, "silent", "s", false, "Print nothing")
	pf.BoolVar(&logger.FlagJSON, "json", false, "Machine-readable output")
	pf.Bool("no-update-check", false, "Do not show the pending update banner")

	RegisterSubCommands(cmd)

	return cmd
}

func Execute() error {
	root := NewRootCmd()
	defer middleware.CloseEngines()

	if os.Getenv("COMP_LINE") != "" ||
		(len(os.Args) > 1 && strings.HasPrefix(os.Args[1], "__complete")) {
		return root.Execute()
	}

	if err := root.Execute(); err != nil {
		logger.Debug("Failed to execute root command: %v", err)
		return err
	}
	return nil
}
