package engine

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/deltasync/internal/cache"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/metrics"
	"github.com/MrSnakeDoc/deltasync/internal/notifier"
	"github.com/MrSnakeDoc/deltasync/internal/scheduler"
	"github.com/MrSnakeDoc/deltasync/internal/source"
	"github.com/MrSnakeDoc/deltasync/internal/versions"
)

// check is the scheduler's CheckFunc. The order is fixed: latest revision,
// classification, resolution, comparison, skip gate.
func (e *Engine) check(ctx context.Context) (res scheduler.CheckResult, err error) {
	stop := e.metrics.Time(metrics.CheckDuration)
	defer func() {
		stop()
		outcome := res.Outcome
		if err != nil {
			outcome = notifier.OutcomeError
		}
		e.metrics.CountOutcome(string(outcome))
		if ferr := e.metrics.Flush(ctx); ferr != nil {
			log.Debug("%v", ferr)
		}
	}()

	previous := e.getString(ctx, kvstore.KeyLastCheckedRevision)

	ref, err := e.latestRevision(ctx)
	if err != nil {
		return e.fallbackCheck(ctx, previous, err)
	}

	if ref.ID == previous {
		log.Debug("revision %s unchanged", short(ref.ID))
		return noUpdate(), nil
	}

	stopClassify := e.metrics.Time(metrics.Classification)
	verdict := e.classifier.Classify(ctx, previous, ref.ID)
	stopClassify()
	if !verdict.Significant {
		log.Debug("change %s...%s not significant", short(previous), short(ref.ID))
		e.markChecked(ctx, ref.ID)
		return noUpdate(), nil
	}

	stopResolve := e.metrics.Time(metrics.Resolution)
	resolution := e.resolver.ResolveDetailed(ctx, ref.ID)
	stopResolve()
	if resolution.Failed() {
		err := fmt.Errorf("resolve version at %s: %w", short(ref.ID), errs.ErrTotalFailure)
		e.enqueueAttempt(ctx, previous, err)
		return scheduler.CheckResult{}, err
	}
	log.Debug("revision %s is version %s (%s tier)", short(ref.ID), resolution.Version, resolution.Tier)

	res, err = e.evaluate(ctx, ref.ID, resolution.Version)
	if err == nil {
		e.markChecked(ctx, ref.ID)
	}
	return res, err
}

func (e *Engine) latestRevision(ctx context.Context) (source.RevisionRef, error) {
	stop := e.metrics.Time(metrics.LatestRevision)
	defer stop()

	ref, tier, err := e.cache.LatestRevision(ctx, e.repo.LatestRevision)
	if err != nil {
		return source.RevisionRef{}, err
	}
	if tier != cache.TierMemory {
		log.Debug("latest revision %s from %s tier", short(ref.ID), tier)
	}
	return ref, nil
}

// fallbackCheck runs when no revision could be obtained: the version is read
// from the canonical location instead. Only if that fails too is the check a
// failure, queued for replay.
func (e *Engine) fallbackCheck(ctx context.Context, previous string, cause error) (scheduler.CheckResult, error) {
	log.Debug("latest revision unavailable, trying head content: %v", cause)

	v, err := e.resolver.ResolveCurrent(ctx)
	if err != nil {
		e.enqueueAttempt(ctx, previous, cause)
		return scheduler.CheckResult{}, fmt.Errorf("check: %w", cause)
	}
	return e.evaluate(ctx, "", v)
}

// evaluate compares version against the installed one and applies the skip
// gate. A positive result is persisted as the pending update.
func (e *Engine) evaluate(ctx context.Context, revision, version string) (scheduler.CheckResult, error) {
	installed := e.InstalledVersion(ctx)

	if !versions.IsNewer(version, installed) {
		log.Debug("%s is not newer than installed %s", version, installed)
		e.dropPending(ctx)
		return noUpdate(), nil
	}
	if e.skips.ShouldSkip(ctx, version) {
		log.Debug("%s is skipped", version)
		e.dropPending(ctx)
		return noUpdate(), nil
	}

	pending := notifier.PendingUpdate{Version: version, Revision: revision, DetectedAt: e.clock.Now()}
	if err := kvstore.SetJSON(ctx, e.kv, kvstore.KeyPendingUpdate, pending); err != nil {
		log.Warn("persist pending update: %v", err)
	}
	log.Info("update available: %s -> %s", installed, version)
	return scheduler.CheckResult{Outcome: notifier.OutcomeUpdateAvailable, Version: version}, nil
}

func (e *Engine) markChecked(ctx context.Context, revision string) {
	if err := e.setString(ctx, kvstore.KeyLastCheckedRevision, revision); err != nil {
		log.Warn("%v", err)
	}
}

func (e *Engine) dropPending(ctx context.Context) {
	if err := e.kv.Delete(ctx, kvstore.KeyPendingUpdate); err != nil {
		log.Warn("drop pending update: %v", err)
	}
}

func noUpdate() scheduler.CheckResult {
	return scheduler.CheckResult{Outcome: notifier.OutcomeNoUpdate}
}

func short(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
