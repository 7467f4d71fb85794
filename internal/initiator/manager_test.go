package initiator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/prompter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func TestExecute_WritesLoadableConfig(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yml")

	i := New(path)
	i.Owner, i.Repo, i.Backend = "acme", "userscript", "sqlite"
	_, err := i.Execute()
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Repository.Owner)
	assert.Equal(t, "userscript", cfg.Repository.Name)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, "deltasync.user.js", cfg.Repository.ArtifactPath)
}

func TestExecute_RefusesOverwrite(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("repository: {}\n"), 0o644))

	i := New(path)
	i.Owner, i.Repo = "acme", "userscript"
	_, err := i.Execute()
	assert.True(t, errors.Is(err, ErrConfigExists))

	i.Force = true
	_, err = i.Execute()
	assert.NoError(t, err)
}

func TestExecute_PromptsForRepository(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yml")

	var out strings.Builder
	i := New(path)
	i.Prompter = prompter.New(strings.NewReader("acme/userscript\n"), &out)
	cfg, err := i.Execute()
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Repository.Owner)
	assert.Equal(t, "userscript", cfg.Repository.Name)
	assert.Contains(t, out.String(), "owner/name")
}

func TestExecute_MissingRepositoryWithoutPrompter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	_, err := New(path).Execute()
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_UnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	i := New(path)
	i.Owner, i.Repo, i.Backend = "acme", "userscript", "redis"
	_, err := i.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Unknown state backend "redis"`)
}
