package offline

import (
	"context"
	"errors"
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

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newQueue(clk clock.Clock, delay time.Duration) *Queue {
	return New(kvstore.NewMemory(), clk, Options{Capacity: 10, MaxAge: 24 * time.Hour, Delay: delay})
}

func TestEnqueue_FillsIDAndTimestamp(t *testing.T) {
	q := newQueue(clock.NewFake(t0), 0)
	a, err := q.Enqueue(context.Background(), Attempt{Kind: KindAPITimeout})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, t0, a.QueuedAt)
}

func TestEnqueue_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	q := newQueue(clock.NewFake(t0), 0)

	for i := 0; i < 12; i++ {
		_, err := q.Enqueue(ctx, Attempt{ID: string(rune('a' + i)), Kind: KindAPIError})
		require.NoError(t, err)
	}

	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 10)
	assert.Equal(t, "c", items[0].ID)
	assert.Equal(t, "l", items[9].ID)
}

func TestDrain_DiscardsStaleAndReplaysInOrder(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	q := newQueue(clk, 0)

	_, err := q.Enqueue(ctx, Attempt{ID: "old", Kind: KindAPIError})
	require.NoError(t, err)
	clk.Advance(25 * time.Hour)
	for _, id := range []string{"a", "b"} {
		_, err := q.Enqueue(ctx, Attempt{ID: id, Kind: KindAPIError})
		require.NoError(t, err)
	}

	var seen []string
	report, err := q.Drain(ctx, func(_ context.Context, a Attempt) error {
		seen = append(seen, a.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, DrainReport{Replayed: 2, Discarded: 1}, report)
	assert.Zero(t, q.Len(ctx))
}

func TestDrain_StopsOnFailure(t *testing.T) {
	ctx := context.Background()
	q := newQueue(clock.NewFake(t0), 0)
	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(ctx, Attempt{ID: id, Kind: KindAPIError})
		require.NoError(t, err)
	}

	boom := errors.New("still offline")
	report, err := q.Drain(ctx, func(_ context.Context, a Attempt) error {
		if a.ID == "b" {
			return boom
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, report.Replayed)
	assert.Equal(t, 2, report.Remaining)

	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
}

func TestDrain_WaitsBetweenEntries(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	q := newQueue(clk, 2*time.Second)
	for _, id := range []string{"a", "b"} {
		_, err := q.Enqueue(ctx, Attempt{ID: id, Kind: KindAPIError})
		require.NoError(t, err)
	}

	replayed := make(chan string, 2)
	done := make(chan DrainReport, 1)
	go func() {
		r, _ := q.Drain(ctx, func(_ context.Context, a Attempt) error {
			replayed <- a.ID
			return nil
		})
		done <- r
	}()

	assert.Equal(t, "a", <-replayed)
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	select {
	case <-replayed:
		t.Fatal("second entry replayed before the delay elapsed")
	default:
	}

	clk.Advance(2 * time.Second)
	assert.Equal(t, "b", <-replayed)
	assert.Equal(t, 2, (<-done).Replayed)
}

func TestDrain_ContextCancelKeepsEntry(t *testing.T) {
	clk := clock.NewFake(t0)
	q := newQueue(clk, time.Hour)
	bg := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := q.Enqueue(bg, Attempt{ID: id, Kind: KindAPIError})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(bg)
	report, err := q.Drain(ctx, func(context.Context, Attempt) error {
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)
	assert.Equal(t, 1, report.Remaining)
}
