package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/source"
)

// LatestKey is the cache key the latest revision payload is kept under.
const LatestKey = kvstore.KeyLatestRevision

// RevisionFetcher performs the conditional metadata request. An empty
// validator asks for an unconditional fetch.
type RevisionFetcher func(ctx context.Context, validator string) (source.LatestResult, error)

// Tier names the tier that answered a LatestRevision call.
type Tier string

const (
	TierMemory     Tier = "memory"
	TierPersistent Tier = "persistent"
	TierNetwork    Tier = "network"
	TierEmergency  Tier = "emergency"
)

// LatestRevision walks memory, persistent and network tiers in order. Any
// failure of the network tier that cannot be served from the emergency window
// is reported as errs.ErrTotalFailure.
func (l *Layer) LatestRevision(ctx context.Context, fetch RevisionFetcher) (source.RevisionRef, Tier, error) {
	if ref, ok := l.memoryTier(); ok {
		return ref, TierMemory, nil
	}
	if ref, ok := l.persistentTier(ctx); ok {
		return ref, TierPersistent, nil
	}
	return l.networkTier(ctx, fetch)
}

func (l *Layer) memoryTier() (source.RevisionRef, bool) {
	e, ok := l.fromMemory(LatestKey)
	if !ok || !e.Fresh(l.clock.Now()) {
		return source.RevisionRef{}, false
	}
	return decodeRevision(e)
}

func (l *Layer) persistentTier(ctx context.Context) (source.RevisionRef, bool) {
	e, ok := l.Peek(ctx, LatestKey)
	if !ok || !e.Fresh(l.clock.Now()) {
		return source.RevisionRef{}, false
	}
	ref, ok := decodeRevision(e)
	if ok {
		l.warm(LatestKey, e)
	}
	return ref, ok
}

func (l *Layer) networkTier(ctx context.Context, fetch RevisionFetcher) (source.RevisionRef, Tier, error) {
	now := l.clock.Now()

	stale, have := l.Peek(ctx, LatestKey)
	if have && len(stale.Payload) == 0 {
		have = false
	}
	validator := ""
	if have {
		validator = stale.Validator
	}

	res, err := fetch(ctx, validator)
	if err != nil {
		log.Debug("network tier failed: %v", err)
		return source.RevisionRef{}, TierNetwork, fmt.Errorf("%w: %w", errs.ErrTotalFailure, err)
	}

	switch res.Status {
	case source.StatusNotModified:
		if !have {
			log.Warn("304 without a stored payload; refetching without validator")
			res, err = fetch(ctx, "")
			if err != nil {
				return source.RevisionRef{}, TierNetwork, fmt.Errorf("%w: refetch: %w", errs.ErrTotalFailure, err)
			}
			if res.Status != source.StatusModified {
				return source.RevisionRef{}, TierNetwork, fmt.Errorf("%w: refetch returned %s", errs.ErrTotalFailure, res.Status)
			}
			return l.storeModified(ctx, res)
		}

		stale.StoredAt = now
		stale.TTL = l.freshness
		if err := l.Put(ctx, LatestKey, stale); err != nil {
			log.Warn("restamp: %v", err)
		}
		ref, ok := decodeRevision(stale)
		if !ok {
			return source.RevisionRef{}, TierNetwork, fmt.Errorf("%w: %w: stored revision unreadable", errs.ErrTotalFailure, errs.ErrParse)
		}
		log.Debug("304 not modified (validator=%q)", validator)
		return ref, TierNetwork, nil

	case source.StatusModified:
		return l.storeModified(ctx, res)

	case source.StatusRateLimited:
		if have && stale.Age(now) < l.emergencyTTL {
			if ref, ok := decodeRevision(stale); ok {
				log.Info("rate limited; serving cached revision (age %s)", stale.Age(now).Truncate(time.Second))
				return ref, TierEmergency, nil
			}
		}
		return source.RevisionRef{}, TierNetwork, fmt.Errorf("%w: %w", errs.ErrTotalFailure, errs.ErrRateLimited)
	}

	return source.RevisionRef{}, TierNetwork, fmt.Errorf("%w: unexpected status %s", errs.ErrTotalFailure, res.Status)
}

func (l *Layer) storeModified(ctx context.Context, res source.LatestResult) (source.RevisionRef, Tier, error) {
	e, err := NewEntry(res.Revision, res.Validator, l.clock.Now(), l.freshness)
	if err != nil {
		return source.RevisionRef{}, TierNetwork, fmt.Errorf("%w: %w", errs.ErrTotalFailure, err)
	}
	if err := l.Put(ctx, LatestKey, e); err != nil {
		// the fetched revision is still good for this call
		log.Warn("persist latest revision: %v", err)
	}
	return res.Revision, TierNetwork, nil
}

func decodeRevision(e Entry) (source.RevisionRef, bool) {
	ref, err := Typed[source.RevisionRef](e)
	if err != nil || ref.ID == "" {
		return source.RevisionRef{}, false
	}
	return ref, true
}
