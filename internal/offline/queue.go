// Package offline persists failed check attempts so they can be replayed once
// the remote is reachable again.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/google/uuid"
)

var log = logger.Named("offline")

type AttemptKind string

const (
	KindAPIError   AttemptKind = "api-error"
	KindAPITimeout AttemptKind = "api-timeout"
)

type Attempt struct {
	ID       string          `json:"id"`
	Kind     AttemptKind     `json:"kind"`
	QueuedAt time.Time       `json:"queued_at"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ReplayFunc re-runs the work an attempt stands for.
type ReplayFunc func(ctx context.Context, a Attempt) error

type DrainReport struct {
	Replayed  int
	Discarded int
	Remaining int
}

type Options struct {
	Capacity int
	MaxAge   time.Duration
	Delay    time.Duration
}

// Queue is a bounded FIFO kept in the key/value store.
type Queue struct {
	kv    kvstore.Store
	clock clock.Clock
	opts  Options

	mu sync.Mutex
}

func New(kv kvstore.Store, clk clock.Clock, opts Options) *Queue {
	if clk == nil {
		clk = clock.Real{}
	}
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	return &Queue{kv: kv, clock: clk, opts: opts}
}

// Enqueue appends a, evicting the oldest entries beyond capacity. ID and
// QueuedAt are filled in when empty.
func (q *Queue) Enqueue(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.QueuedAt.IsZero() {
		a.QueuedAt = q.clock.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return Attempt{}, err
	}
	items = append(items, a)
	if over := len(items) - q.opts.Capacity; over > 0 {
		log.Debug("queue full, dropping %d oldest", over)
		items = items[over:]
	}
	if err := q.save(ctx, items); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (q *Queue) List(ctx context.Context) ([]Attempt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

func (q *Queue) Len(ctx context.Context) int {
	items, err := q.List(ctx)
	if err != nil {
		return 0
	}
	return len(items)
}

// Drain pops entries one at a time. Entries older than MaxAge are discarded
// unprocessed; the others are replayed serially with Delay between them. A
// failed replay stops the drain and leaves that entry at the head.
func (q *Queue) Drain(ctx context.Context, replay ReplayFunc) (DrainReport, error) {
	var report DrainReport
	first := true

	for {
		a, ok, stale, err := q.pop(ctx)
		if err != nil {
			return report, err
		}
		if !ok {
			return report, nil
		}
		if stale {
			report.Discarded++
			log.Debug("discarding %s attempt %s queued at %s", a.Kind, a.ID, a.QueuedAt.Format(time.RFC3339))
			continue
		}

		if !first {
			select {
			case <-ctx.Done():
				return report, q.requeueFront(ctx, a, &report)
			case <-q.clock.After(q.opts.Delay):
			}
		}
		first = false

		if err := replay(ctx, a); err != nil {
			log.Debug("replay of %s failed: %v", a.ID, err)
			if rerr := q.requeueFront(ctx, a, &report); rerr != nil {
				return report, rerr
			}
			return report, fmt.Errorf("replay %s: %w", a.ID, err)
		}
		report.Replayed++
	}
}

func (q *Queue) pop(ctx context.Context) (Attempt, bool, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil || len(items) == 0 {
		return Attempt{}, false, false, err
	}
	head := items[0]
	if err := q.save(ctx, items[1:]); err != nil {
		return Attempt{}, false, false, err
	}
	stale := q.clock.Now().Sub(head.QueuedAt) > q.opts.MaxAge
	return head, true, stale, nil
}

func (q *Queue) requeueFront(ctx context.Context, a Attempt, report *DrainReport) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	items = append([]Attempt{a}, items...)
	if len(items) > q.opts.Capacity {
		items = items[:q.opts.Capacity]
	}
	report.Remaining = len(items)
	return q.save(ctx, items)
}

func (q *Queue) load(ctx context.Context) ([]Attempt, error) {
	var items []Attempt
	if _, err := kvstore.GetJSON(ctx, q.kv, kvstore.KeyOfflineQueue, &items); err != nil {
		return nil, fmt.Errorf("load offline queue: %w", err)
	}
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []Attempt) error {
	if err := kvstore.SetJSON(ctx, q.kv, kvstore.KeyOfflineQueue, items); err != nil {
		return fmt.Errorf("save offline queue: %w", err)
	}
	return nil
}
