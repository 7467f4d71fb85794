package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/deltasync/internal/utils"
	"github.com/MrSnakeDoc/deltasync/internal/utils/pathutils"

	"gopkg.in/yaml.v3"
)

const configFile = "config.yml"

// DefaultPath returns ~/.config/deltasync/config.yml.
func DefaultPath() (string, error) {
	dir, err := utils.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the YAML file at path on top of DefaultConfig. An empty path
// means DefaultPath; a missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	absPath, err := pathutils.ToAbsolutePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := utils.CreateFile(path, c, utils.FileTypeYAML, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.Repository.Owner == "" || c.Repository.Name == "" {
		problems = append(problems, "repository.owner and repository.name are required")
	}
	if c.Repository.ArtifactPath == "" {
		problems = append(problems, "repository.artifact_path is required")
	}
	durations := map[string]int64{
		"cache.freshness_window":  int64(c.Cache.FreshnessWindow),
		"cache.emergency_ttl":     int64(c.Cache.EmergencyTTL),
		"cache.version_ttl":       int64(c.Cache.VersionTTL),
		"scheduler.base_interval": int64(c.Scheduler.BaseInterval),
		"timeouts.metadata":       int64(c.Timeouts.Metadata),
		"timeouts.download":       int64(c.Timeouts.Download),
		"offline.max_age":         int64(c.Offline.MaxAge),
		"skip_duration":           int64(c.SkipDuration),
	}
	for _, name := range utils.SortedKeys(durations) {
		if durations[name] <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	if c.Scheduler.MaxFailures < 1 {
		problems = append(problems, "scheduler.max_failures must be at least 1")
	}
	if c.Download.MaxConcurrent < 1 {
		problems = append(problems, "download.max_concurrent must be at least 1")
	}
	if len(c.Download.Providers) == 0 {
		problems = append(problems, "download.providers must list at least one provider")
	}
	if c.Offline.Capacity < 1 {
		problems = append(problems, "offline.capacity must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) resolvePaths() error {
	if c.State.Dir == "" {
		dir, err := utils.StateDir()
		if err != nil {
			return err
		}
		c.State.Dir = dir
	}
	stateDir, err := pathutils.ToAbsolutePath(c.State.Dir)
	if err != nil {
		return err
	}
	c.State.Dir = stateDir

	if c.State.InstallDir == "" {
		c.State.InstallDir = filepath.Join(c.State.Dir, "active")
	}
	installDir, err := pathutils.ToAbsolutePath(c.State.InstallDir)
	if err != nil {
		return err
	}
	c.State.InstallDir = installDir
	return nil
}

// Token returns the API token from the configured environment variable.
func (c *Config) Token() string {
	if c.Repository.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Repository.TokenEnv))
}
