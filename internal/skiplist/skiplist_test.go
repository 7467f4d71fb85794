package skiplist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

const week = 7 * 24 * time.Hour

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestShouldSkip_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	m := New(kvstore.NewMemory(), clk, week)

	s, err := m.Skip(ctx, "2.10.0")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(week), s.Until)

	clk.Set(s.Until.Add(-time.Second))
	assert.True(t, m.ShouldSkip(ctx, "2.10.0"))
	assert.False(t, m.ShouldSkip(ctx, "2.10.1"))

	clk.Set(s.Until.Add(time.Second))
	assert.False(t, m.ShouldSkip(ctx, "2.10.0"))
}

func TestShouldSkip_PurgesExpired(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	clk := clock.NewFake(t0)
	m := New(kv, clk, week)

	_, err := m.Skip(ctx, "1.0")
	require.NoError(t, err)

	clk.Advance(week)
	assert.False(t, m.ShouldSkip(ctx, "other"), "read of a different version still purges")

	_, ok, err := kv.Get(ctx, kvstore.KeyVersionSkip)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSkip_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	m := New(kvstore.NewMemory(), clock.NewFake(t0), week)

	_, err := m.Skip(ctx, "1.0")
	require.NoError(t, err)
	_, err = m.Skip(ctx, "2.0")
	require.NoError(t, err)

	assert.False(t, m.ShouldSkip(ctx, "1.0"))
	assert.True(t, m.ShouldSkip(ctx, "2.0"))
}

func TestClearAndEmpty(t *testing.T) {
	ctx := context.Background()
	m := New(kvstore.NewMemory(), clock.NewFake(t0), week)

	_, err := m.Skip(ctx, " ")
	assert.Error(t, err)

	_, err = m.Skip(ctx, "1.0")
	require.NoError(t, err)
	require.NoError(t, m.Clear(ctx))

	_, ok := m.Active(ctx)
	assert.False(t, ok)
}
