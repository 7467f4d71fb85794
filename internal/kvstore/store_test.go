package kvstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	file, err := NewFile(t.TempDir())
	require.NoError(t, err)
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		BackendFile:   file,
		BackendSQLite: sqlite,
		BackendMemory: NewMemory(),
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))
			got, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"a":1}`, string(got))

			require.NoError(t, s.Set(ctx, "k", []byte("v2")))
			got, _, _ = s.Get(ctx, "k")
			assert.Equal(t, "v2", string(got))

			require.NoError(t, s.Delete(ctx, "k"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, s.Delete(ctx, "never-set"))
		})
	}
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, KeyVersionSkip, []byte(`{"version":"2.0.0"}`)))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	got, ok, err := reopened.Get(ctx, KeyVersionSkip)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"version":"2.0.0"}`, string(got))
}

func TestFile_CorruptDocumentStartsClean(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{nope"), 0o644))

	f, err := NewFile(dir)
	require.NoError(t, err)
	_, ok, err := f.Get(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()
	got, ok, err := s2.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", string(got))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type payload struct {
		Version string `json:"version"`
	}
	require.NoError(t, SetJSON(ctx, s, "p", payload{Version: "1.2.3"}))

	var out payload
	ok, err := GetJSON(ctx, s, "p", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.2.3", out.Version)

	ok, err = GetJSON(ctx, s, "absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "bad", []byte("{")))
	_, err = GetJSON(ctx, s, "bad", &out)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{BackendFile, BackendSQLite, BackendMemory} {
		s, err := Open(name, dir)
		require.NoError(t, err, name)
		require.NoError(t, s.Close())
	}

	_, err := Open("redis", dir)
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}
