// Package resolver extracts the published version of the artifact at a given
// revision, trying progressively less precise retrieval strategies.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/cache"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/versions"
)

var log = logger.Named("resolver")

var errNoVersion = errors.New("no @version header")

// ContentSource is the slice of source.Repository the resolver reads through.
type ContentSource interface {
	ContentViaQuery(ctx context.Context, revision, path string) ([]byte, error)
	RawContent(ctx context.Context, revision, path string) ([]byte, error)
	CurrentContent(ctx context.Context, path string) ([]byte, error)
}

type Tier string

const (
	TierCache    Tier = "cache"
	TierQuery    Tier = "query"
	TierRawAtRef Tier = "raw-at-ref"
	TierCurrent  Tier = "current"
	TierNone     Tier = "none"
)

type Resolution struct {
	Version string
	Tier    Tier
}

// Failed reports whether every tier failed and Version is the sentinel.
func (r Resolution) Failed() bool { return r.Tier == TierNone }

type Resolver struct {
	repo  ContentSource
	cache *cache.Layer
	path  string
	ttl   time.Duration
}

func New(repo ContentSource, layer *cache.Layer, artifactPath string, ttl time.Duration) *Resolver {
	return &Resolver{repo: repo, cache: layer, path: artifactPath, ttl: ttl}
}

// Resolve never fails; it degrades to versions.Sentinel.
func (r *Resolver) Resolve(ctx context.Context, revision string) string {
	return r.ResolveDetailed(ctx, revision).Version
}

func (r *Resolver) ResolveDetailed(ctx context.Context, revision string) Resolution {
	if revision != "" {
		if v, ok := r.cached(ctx, revision); ok {
			return Resolution{Version: v, Tier: TierCache}
		}

		for _, step := range []struct {
			tier Tier
			fn   func(context.Context, string) (string, error)
		}{
			{TierQuery, r.fromQuery},
			{TierRawAtRef, r.fromRawAtRef},
		} {
			v, err := step.fn(ctx, revision)
			if err != nil {
				log.Debug("%s tier: %v", step.tier, err)
				continue
			}
			r.remember(ctx, revision, v)
			return Resolution{Version: v, Tier: step.tier}
		}
	}

	// Head content is not pinned to revision, so it is never cached under it.
	v, err := r.fromCurrent(ctx)
	if err != nil {
		log.Warn("all tiers failed for %q: %v", revision, err)
		return Resolution{Version: versions.Sentinel, Tier: TierNone}
	}
	return Resolution{Version: v, Tier: TierCurrent}
}

// ResolveCurrent reads the version at the canonical location, bypassing
// revision-addressed tiers entirely.
func (r *Resolver) ResolveCurrent(ctx context.Context) (string, error) {
	return r.fromCurrent(ctx)
}

func (r *Resolver) fromQuery(ctx context.Context, revision string) (string, error) {
	content, err := r.repo.ContentViaQuery(ctx, revision, r.path)
	if err != nil {
		return "", err
	}
	return extract(content)
}

func (r *Resolver) fromRawAtRef(ctx context.Context, revision string) (string, error) {
	content, err := r.repo.RawContent(ctx, revision, r.path)
	if err != nil {
		return "", err
	}
	return extract(content)
}

func (r *Resolver) fromCurrent(ctx context.Context) (string, error) {
	content, err := r.repo.CurrentContent(ctx, r.path)
	if err != nil {
		return "", err
	}
	return extract(content)
}

func (r *Resolver) cached(ctx context.Context, revision string) (string, bool) {
	e, ok := r.cache.Get(ctx, kvstore.PrefixVersion+revision)
	if !ok {
		return "", false
	}
	v, err := cache.Typed[string](e)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (r *Resolver) remember(ctx context.Context, revision, version string) {
	e, err := cache.NewEntry(version, "", r.cache.Now(), r.ttl)
	if err == nil {
		err = r.cache.Put(ctx, kvstore.PrefixVersion+revision, e)
	}
	if err != nil {
		log.Warn("cache version for %s: %v", revision, err)
	}
}

func extract(content []byte) (string, error) {
	v, ok := versions.Extract(content)
	if !ok {
		return "", fmt.Errorf("extract: %w", errNoVersion)
	}
	return v, nil
}
