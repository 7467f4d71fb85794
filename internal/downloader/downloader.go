// Package downloader fetches the changed files of a delta apply through a
// bounded pool, falling back across mirror providers per file.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/rollback"
	"golang.org/x/sync/errgroup"
)

var log = logger.Named("downloader")

type ProviderFetcher interface {
	FetchFromProvider(ctx context.Context, template, revision, path string) ([]byte, error)
}

type Writer interface {
	Write(ctx context.Context, name string, data []byte) error
}

type Restorer interface {
	Restore(ctx context.Context) (rollback.RestoreReport, error)
}

// Observer receives per-file timings; metrics.Recorder satisfies it.
type Observer interface {
	Record(metric string, d time.Duration)
}

type TaskState int

const (
	Pending TaskState = iota
	InFlight
	Succeeded
	Failed
)

func (s TaskState) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s TaskState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Task struct {
	Path      string   `json:"path"`
	Providers []string `json:"-"`
	// Attempted is the index of the provider tried last.
	Attempted int       `json:"attempted"`
	State     TaskState `json:"state"`
	Err       error     `json:"-"`

	data []byte
}

type Result struct {
	Success bool     `json:"success"`
	Tasks   []Task   `json:"tasks"`
	Failed  []string `json:"failed,omitempty"`
	// Restore is set when a failure triggered a rollback.
	Restore *rollback.RestoreReport `json:"restore,omitempty"`
}

type Options struct {
	Providers     []string
	MaxConcurrent int
	Observer      Observer
}

type Downloader struct {
	fetch     ProviderFetcher
	out       Writer
	restorer  Restorer
	providers []string
	limit     int
	observer  Observer
}

func New(fetch ProviderFetcher, out Writer, restorer Restorer, opts Options) *Downloader {
	limit := opts.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	return &Downloader{
		fetch:     fetch,
		out:       out,
		restorer:  restorer,
		providers: opts.Providers,
		limit:     limit,
		observer:  opts.Observer,
	}
}

// Download fetches every path at revision. Files are only written once all
// of them were fetched; any failure restores the last snapshot exactly once.
// A file no provider could serve yields errs.ErrAllProvidersExhausted.
func (d *Downloader) Download(ctx context.Context, revision string, paths []string) (Result, error) {
	tasks := make([]Task, len(paths))
	for i, p := range paths {
		tasks[i] = Task{Path: p, Providers: d.providers, Attempted: -1, State: Pending}
	}

	var mu sync.Mutex
	setState := func(i int, s TaskState) {
		mu.Lock()
		tasks[i].State = s
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(d.limit)
	for i := range tasks {
		g.Go(func() error {
			setState(i, InFlight)
			data, idx, err := d.fetchOne(ctx, revision, tasks[i].Path)

			mu.Lock()
			defer mu.Unlock()
			tasks[i].Attempted = idx
			if err != nil {
				tasks[i].State = Failed
				tasks[i].Err = err
				return nil
			}
			tasks[i].State = Succeeded
			tasks[i].data = data
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Tasks: tasks}
	for _, t := range tasks {
		if t.State == Failed {
			res.Failed = append(res.Failed, t.Path)
		}
	}

	var failure error
	if len(res.Failed) > 0 {
		failure = fmt.Errorf("%w: %d of %d files", errs.ErrAllProvidersExhausted, len(res.Failed), len(tasks))
	} else if err := d.writeAll(ctx, tasks); err != nil {
		failure = err
	}

	if failure != nil {
		log.Error("delta download failed: %v", failure)
		res.Restore = d.restore(ctx)
		return res, failure
	}

	res.Success = true
	log.Debug("downloaded %d files at %s", len(tasks), revision)
	return res, nil
}

// fetchOne walks the provider list in order and returns the index of the
// provider that answered (or the last one tried).
func (d *Downloader) fetchOne(ctx context.Context, revision, path string) ([]byte, int, error) {
	if len(d.providers) == 0 {
		return nil, -1, fmt.Errorf("%s: %w: no providers configured", path, errs.ErrAllProvidersExhausted)
	}

	var errList []error
	last := -1
	for i, tmpl := range d.providers {
		if err := ctx.Err(); err != nil {
			errList = append(errList, err)
			break
		}
		last = i

		start := time.Now()
		data, err := d.fetch.FetchFromProvider(ctx, tmpl, revision, path)
		if d.observer != nil {
			d.observer.Record("download.file", time.Since(start))
		}
		if err == nil {
			return data, i, nil
		}
		log.Debug("%s via provider %d: %v", path, i, err)
		errList = append(errList, err)
	}
	return nil, last, fmt.Errorf("%s: %w: %w", path, errs.ErrAllProvidersExhausted, errors.Join(errList...))
}

func (d *Downloader) writeAll(ctx context.Context, tasks []Task) error {
	for i := range tasks {
		if err := d.out.Write(ctx, tasks[i].Path, tasks[i].data); err != nil {
			tasks[i].State = Failed
			tasks[i].Err = err
			return fmt.Errorf("apply %s: %w", tasks[i].Path, err)
		}
	}
	return nil
}

func (d *Downloader) restore(ctx context.Context) *rollback.RestoreReport {
	report, err := d.restorer.Restore(ctx)
	switch {
	case errors.Is(err, errs.ErrNoSnapshot):
		log.Warn("no snapshot to restore")
	case err != nil:
		log.Error("rollback %s: %v", report.Quality, err)
	}
	return &report
}
