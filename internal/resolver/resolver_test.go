package resolver

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/cache"
	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/versions"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

type fakeSource struct {
	query, raw, current      []byte
	queryErr, rawErr, curErr error
	queryN, rawN, currentN   int
}

func (f *fakeSource) ContentViaQuery(context.Context, string, string) ([]byte, error) {
	f.queryN++
	return f.query, f.queryErr
}

func (f *fakeSource) RawContent(context.Context, string, string) ([]byte, error) {
	f.rawN++
	return f.raw, f.rawErr
}

func (f *fakeSource) CurrentContent(context.Context, string) ([]byte, error) {
	f.currentN++
	return f.current, f.curErr
}

func newResolver(src ContentSource, clk *clock.Fake) *Resolver {
	layer := cache.New(kvstore.NewMemory(), clk, 10*time.Minute, time.Hour)
	return New(src, layer, "app.user.js", 24*time.Hour)
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestResolve_Tiers(t *testing.T) {
	header := func(v string) []byte { return []byte("// @version " + v) }
	boom := errors.New("boom")

	tests := []struct {
		name string
		src  *fakeSource
		want Resolution
	}{
		{
			name: "structured query",
			src:  &fakeSource{query: header("2.10.0")},
			want: Resolution{Version: "2.10.0", Tier: TierQuery},
		},
		{
			name: "query unavailable falls back to raw",
			src:  &fakeSource{queryErr: errs.ErrUnavailable, raw: header("2.9.0")},
			want: Resolution{Version: "2.9.0", Tier: TierRawAtRef},
		},
		{
			name: "unparseable content falls through",
			src:  &fakeSource{query: []byte("no header"), raw: header("1.1")},
			want: Resolution{Version: "1.1", Tier: TierRawAtRef},
		},
		{
			name: "revision-addressed retrieval down",
			src:  &fakeSource{queryErr: boom, rawErr: boom, current: header("3.0.0")},
			want: Resolution{Version: "3.0.0", Tier: TierCurrent},
		},
		{
			name: "total failure degrades to sentinel",
			src:  &fakeSource{queryErr: boom, rawErr: boom, curErr: boom},
			want: Resolution{Version: versions.Sentinel, Tier: TierNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(tt.src, clock.NewFake(t0))
			got := r.ResolveDetailed(context.Background(), "abc")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Tier == TierNone, got.Failed())
		})
	}
}

func TestResolve_CachesPerRevision(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	src := &fakeSource{query: []byte("// @version 2.0.0")}
	r := newResolver(src, clk)

	assert.Equal(t, "2.0.0", r.Resolve(ctx, "abc"))
	clk.Advance(23 * time.Hour)
	got := r.ResolveDetailed(ctx, "abc")
	assert.Equal(t, Resolution{Version: "2.0.0", Tier: TierCache}, got)
	assert.Equal(t, 1, src.queryN)

	clk.Advance(2 * time.Hour)
	assert.Equal(t, "2.0.0", r.Resolve(ctx, "abc"))
	assert.Equal(t, 2, src.queryN, "entry expires after 24h")
}

func TestResolve_CurrentTierIsNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	src := &fakeSource{queryErr: boom, rawErr: boom, current: []byte("// @version 1.0")}
	r := newResolver(src, clock.NewFake(t0))

	r.Resolve(ctx, "abc")
	r.Resolve(ctx, "abc")
	assert.Equal(t, 2, src.currentN)
}

func TestResolveCurrent(t *testing.T) {
	src := &fakeSource{current: []byte("// @version 4.2")}
	r := newResolver(src, clock.NewFake(t0))

	v, err := r.ResolveCurrent(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "4.2", v)
	assert.Zero(t, src.queryN)
}
