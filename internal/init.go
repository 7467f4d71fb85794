package internal

import (
	"github.com/MrSnakeDoc/deltasync/internal/initiator"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/prompter"

	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	var (
		owner, repo, artifact, backend string
		force, interactive             bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the deltasync configuration",
		Long: `Create the deltasync configuration.
This command will:
- Write config.yml (default ~/.config/deltasync) seeded with the defaults
- Create the state directory in ~/.local/state/deltasync`,
		Example: `  deltasync init --owner acme --repo userscript
  deltasync init --owner acme --repo userscript --backend sqlite
  deltasync init -i                     # ask for the repository`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")

			i := initiator.New(path)
			i.Owner, i.Repo, i.Artifact, i.Backend, i.Force = owner, repo, artifact, backend, force
			if interactive {
				i.Prompter = prompter.New(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			if _, err := i.Execute(); err != nil {
				return err
			}

			logger.Success("Initialized deltasync for %s/%s", i.Owner, i.Repo)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Repository owner")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository name")
	cmd.Flags().StringVar(&artifact, "artifact", "", "Path of the script artifact inside the repository")
	cmd.Flags().StringVar(&backend, "backend", "", "State backend: file, sqlite or memory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for missing values")

	return cmd
}
