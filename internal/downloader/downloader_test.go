package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/rollback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

type fakeFetcher struct {
	delay time.Duration
	// fail maps "provider|path" to true for failing combinations.
	fail map[string]bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	mu          sync.Mutex
	calls       []string
}

func (f *fakeFetcher) FetchFromProvider(ctx context.Context, tmpl, rev, path string) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, tmpl+"|"+path)
	f.mu.Unlock()

	time.Sleep(f.delay)
	if f.fail[tmpl+"|"+path] {
		return nil, fmt.Errorf("%s: %w", tmpl, errs.ErrTransientNetwork)
	}
	return []byte(tmpl + ":" + rev + ":" + path), nil
}

type memWriter struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func (w *memWriter) Write(_ context.Context, name string, data []byte) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files == nil {
		w.files = map[string]string{}
	}
	w.files[name] = string(data)
	return nil
}

type countingRestorer struct {
	calls int
	err   error
}

func (r *countingRestorer) Restore(context.Context) (rollback.RestoreReport, error) {
	r.calls++
	return rollback.RestoreReport{Quality: rollback.QualityFull}, r.err
}

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("f%d.js", i+1)
	}
	return out
}

func TestDownload_BoundedConcurrency(t *testing.T) {
	for _, n := range []int{1, 3, 4, 12} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			f := &fakeFetcher{delay: 10 * time.Millisecond}
			w := &memWriter{}
			d := New(f, w, &countingRestorer{}, Options{Providers: []string{"p1"}, MaxConcurrent: 3})

			res, err := d.Download(context.Background(), "abc", paths(n))
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.LessOrEqual(t, f.maxInFlight.Load(), int32(3))
			assert.Len(t, w.files, n)
		})
	}
}

func TestDownload_ProviderFallback(t *testing.T) {
	f := &fakeFetcher{fail: map[string]bool{"p1|f1.js": true}}
	w := &memWriter{}
	d := New(f, w, &countingRestorer{}, Options{Providers: []string{"p1", "p2"}, MaxConcurrent: 3})

	res, err := d.Download(context.Background(), "abc", []string{"f1.js", "f2.js"})
	require.NoError(t, err)

	assert.Equal(t, "p2:abc:f1.js", w.files["f1.js"])
	assert.Equal(t, "p1:abc:f2.js", w.files["f2.js"])
	assert.Equal(t, 1, res.Tasks[0].Attempted)
	assert.Equal(t, 0, res.Tasks[1].Attempted)
	for _, task := range res.Tasks {
		assert.Equal(t, Succeeded, task.State)
	}
}

func TestDownload_PartialFailureRollsBackOnce(t *testing.T) {
	f := &fakeFetcher{fail: map[string]bool{"p1|f3.js": true, "p2|f3.js": true}}
	w := &memWriter{}
	r := &countingRestorer{}
	d := New(f, w, r, Options{Providers: []string{"p1", "p2"}, MaxConcurrent: 3})

	res, err := d.Download(context.Background(), "abc", paths(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAllProvidersExhausted))
	assert.False(t, res.Success)
	assert.Equal(t, []string{"f3.js"}, res.Failed)
	assert.Equal(t, 1, r.calls)
	require.NotNil(t, res.Restore)
	assert.Empty(t, w.files, "nothing is written when a file failed")

	assert.Equal(t, Failed, res.Tasks[2].State)
	assert.Equal(t, 1, res.Tasks[2].Attempted)
	assert.True(t, errors.Is(res.Tasks[2].Err, errs.ErrTransientNetwork))
}

func TestDownload_WriteFailureRollsBack(t *testing.T) {
	r := &countingRestorer{}
	w := &memWriter{err: rollback.ErrReadOnly}
	d := New(&fakeFetcher{}, w, r, Options{Providers: []string{"p1"}, MaxConcurrent: 3})

	_, err := d.Download(context.Background(), "abc", paths(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rollback.ErrReadOnly))
	assert.Equal(t, 1, r.calls)
}

func TestDownload_NoSnapshotStillReportsFailure(t *testing.T) {
	r := &countingRestorer{err: errs.ErrNoSnapshot}
	d := New(&fakeFetcher{}, &memWriter{}, r, Options{MaxConcurrent: 3})

	_, err := d.Download(context.Background(), "abc", []string{"a.js"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "1 of 1"))
	assert.Equal(t, 1, r.calls)
}

func TestTaskStateString(t *testing.T) {
	assert.Equal(t, "in-flight", InFlight.String())
	assert.Equal(t, "unknown", TaskState(42).String())
}
