package initiator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/prompter"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
	"github.com/MrSnakeDoc/deltasync/internal/utils/pathutils"
)

var ErrConfigExists = errors.New("config file already exists")

type Initiator struct {
	ConfigPath string
	Owner      string
	Repo       string
	Artifact   string
	Backend    string
	Force      bool

	// Prompter asks for the repository when Owner or Repo is missing.
	// Nil means the values are required.
	Prompter prompter.Prompter
}

func New(configPath string) *Initiator {
	return &Initiator{ConfigPath: configPath}
}

// Execute writes a config file seeded from the defaults and creates the
// state directory.
func (i *Initiator) Execute() (*config.Config, error) {
	path := i.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if ok, _ := utils.FileExists(path); ok && !i.Force {
		return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	}

	if err := i.askMissing(); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	cfg.Repository.Owner = i.Owner
	cfg.Repository.Name = i.Repo
	if i.Artifact != "" {
		cfg.Repository.ArtifactPath = i.Artifact
	}
	switch i.Backend {
	case "":
	case kvstore.BackendFile, kvstore.BackendSQLite, kvstore.BackendMemory:
		cfg.State.Backend = i.Backend
	default:
		return nil, errors.New(errs.Msg(errs.UnknownBackend, i.Backend))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	logger.Success("Created %s", pathutils.ToHomePathFormat(path))

	if _, err := utils.StateDir(); err != nil {
		logger.Debug("Failed to ensure state dir exists: %v", err)
		return nil, fmt.Errorf("failed to ensure state dir exists: %w", err)
	}

	return &cfg, nil
}

func (i *Initiator) askMissing() error {
	if i.Owner != "" && i.Repo != "" {
		return nil
	}
	if i.Prompter == nil {
		return errors.New("repository owner and name are required (--owner, --repo)")
	}

	if i.Owner == "" && i.Repo == "" {
		answer, err := i.Prompter.Prompt("Repository (owner/name): ")
		if err != nil {
			return err
		}
		owner, name, ok := strings.Cut(answer, "/")
		if !ok || owner == "" || name == "" {
			return fmt.Errorf("invalid repository %q, expected owner/name", answer)
		}
		i.Owner, i.Repo = owner, name
		return nil
	}

	if i.Owner == "" {
		answer, err := i.Prompter.Prompt("Repository owner: ")
		if err != nil {
			return err
		}
		i.Owner = answer
	}
	if i.Repo == "" {
		answer, err := i.Prompter.Prompt("Repository name: ")
		if err != nil {
			return err
		}
		i.Repo = answer
	}
	if i.Owner == "" || i.Repo == "" {
		return errors.New("repository owner and name are required")
	}
	return nil
}
