package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/notifier"
	"github.com/MrSnakeDoc/deltasync/internal/offline"
	"github.com/MrSnakeDoc/deltasync/internal/scheduler"
)

type replayKey struct{}

type attemptPayload struct {
	Revision string `json:"revision,omitempty"`
	Error    string `json:"error"`
}

// enqueueAttempt queues a failed check for later replay. Failures during a
// replay are not queued again; the drain keeps the original entry instead.
func (e *Engine) enqueueAttempt(ctx context.Context, revision string, cause error) {
	if ctx.Value(replayKey{}) != nil {
		return
	}

	kind := offline.KindAPIError
	if errs.IsTimeout(cause) {
		kind = offline.KindAPITimeout
	}
	payload, err := json.Marshal(attemptPayload{Revision: revision, Error: cause.Error()})
	if err != nil {
		log.Warn("encode offline attempt: %v", err)
		return
	}

	a, err := e.offline.Enqueue(ctx, offline.Attempt{Kind: kind, Payload: payload})
	if err != nil {
		log.Warn("queue offline attempt: %v", err)
		return
	}
	log.Debug("queued %s attempt %s", a.Kind, a.ID)
}

// DrainOffline replays queued attempts one by one, each as a scheduled check.
func (e *Engine) DrainOffline(ctx context.Context) (offline.DrainReport, error) {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()
	return e.drain(ctx)
}

// drainOnRecovery starts a background drain once a check succeeds while
// attempts are queued. It is a no-op while another drain runs, which covers
// the checks a drain replays itself.
func (e *Engine) drainOnRecovery(ev notifier.CheckCompleted) {
	if ev.Err != nil || e.ctx.Err() != nil {
		return
	}
	if e.offline.Len(e.ctx) == 0 {
		return
	}
	if !e.drainMu.TryLock() {
		return
	}

	e.drains.Add(1)
	go func() {
		defer e.drains.Done()
		defer e.drainMu.Unlock()

		report, err := e.drain(e.ctx)
		if err != nil {
			log.Debug("offline replay after recovery stopped: %v", err)
			return
		}
		log.Debug("offline replay after recovery: %d replayed, %d discarded", report.Replayed, report.Discarded)
	}()
}

func (e *Engine) drain(ctx context.Context) (offline.DrainReport, error) {
	replayCtx := context.WithValue(ctx, replayKey{}, true)
	return e.offline.Drain(replayCtx, func(ctx context.Context, a offline.Attempt) error {
		_, err := e.scheduler.Trigger(ctx, false)
		if errors.Is(err, scheduler.ErrCheckInFlight) {
			return nil
		}
		return err
	})
}
