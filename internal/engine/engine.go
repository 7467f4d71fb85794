// Package engine wires the update components together and exposes the
// operations the CLI and other collaborators call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/cache"
	"github.com/MrSnakeDoc/deltasync/internal/classifier"
	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/downloader"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/metrics"
	"github.com/MrSnakeDoc/deltasync/internal/notifier"
	"github.com/MrSnakeDoc/deltasync/internal/offline"
	"github.com/MrSnakeDoc/deltasync/internal/resolver"
	"github.com/MrSnakeDoc/deltasync/internal/rollback"
	"github.com/MrSnakeDoc/deltasync/internal/scheduler"
	"github.com/MrSnakeDoc/deltasync/internal/service"
	"github.com/MrSnakeDoc/deltasync/internal/skiplist"
	"github.com/MrSnakeDoc/deltasync/internal/source"
	"github.com/MrSnakeDoc/deltasync/internal/versions"
)

var log = logger.Named("engine")

// Deps are the collaborators New does not build itself.
type Deps struct {
	KV        kvstore.Store
	Repo      source.Repository
	Resources rollback.ResourceSet
	Clock     clock.Clock
	Bus       *notifier.Bus
}

type Engine struct {
	cfg   *config.Config
	kv    kvstore.Store
	clock clock.Clock
	repo  source.Repository

	cache      *cache.Layer
	classifier *classifier.Classifier
	resolver   *resolver.Resolver
	skips      *skiplist.Manager
	resources  rollback.ResourceSet
	rollback   *rollback.Store
	downloader *downloader.Downloader
	offline    *offline.Queue
	metrics    *metrics.Recorder
	bus        *notifier.Bus
	scheduler  *scheduler.Scheduler

	// drainMu serializes offline drains; drains started by a recovered
	// check run under ctx and are awaited by Close.
	drainMu sync.Mutex
	drains  sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(cfg *config.Config, deps Deps) *Engine {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	bus := deps.Bus
	if bus == nil {
		bus = notifier.NewBus()
	}

	e := &Engine{
		cfg:       cfg,
		kv:        deps.KV,
		clock:     clk,
		repo:      deps.Repo,
		resources: deps.Resources,
		bus:       bus,
	}

	e.metrics = metrics.NewRecorder(e.kv)
	e.cache = cache.New(e.kv, clk, cfg.Cache.FreshnessWindow, cfg.Cache.EmergencyTTL)
	e.classifier = classifier.New(e.repo, cfg.Classify)
	e.resolver = resolver.New(e.repo, e.cache, cfg.Repository.ArtifactPath, cfg.Cache.VersionTTL)
	e.skips = skiplist.New(e.kv, clk, cfg.SkipDuration)
	e.rollback = rollback.New(e.kv, e.resources, clk)
	e.downloader = downloader.New(e.repo, e.resources, e.rollback, downloader.Options{
		Providers:     cfg.Download.Providers,
		MaxConcurrent: cfg.Download.MaxConcurrent,
		Observer:      e.metrics,
	})
	e.offline = offline.New(e.kv, clk, offline.Options{
		Capacity: cfg.Offline.Capacity,
		MaxAge:   cfg.Offline.MaxAge,
		Delay:    cfg.Offline.DrainDelay,
	})
	e.scheduler = scheduler.New(e.check, bus, e.kv, clk, scheduler.Options{
		BaseInterval: cfg.Scheduler.BaseInterval,
		MaxFailures:  cfg.Scheduler.MaxFailures,
		AutoCheck:    cfg.AutoCheck,
	})

	e.ctx, e.cancel = context.WithCancel(context.Background())
	bus.OnCheckCompleted(e.drainOnRecovery)

	if err := e.metrics.Load(context.Background()); err != nil {
		log.Warn("%v", err)
	}
	return e
}

// Open builds an engine over the configured state backend, the GitHub
// repository and the install directory.
func Open(cfg *config.Config) (*Engine, error) {
	kv, err := kvstore.Open(cfg.State.Backend, cfg.State.Dir)
	if err != nil {
		return nil, err
	}
	resources, err := rollback.NewDirResourceSet(cfg.State.InstallDir)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	repo := source.NewGitHub(cfg, service.NewHTTPClient(cfg.Timeouts.Download))

	return New(cfg, Deps{KV: kv, Repo: repo, Resources: resources}), nil
}

func (e *Engine) Close() error {
	e.cancel()
	e.drains.Wait()
	flushErr := e.metrics.Flush(context.Background())
	return errors.Join(flushErr, e.kv.Close())
}

func (e *Engine) Bus() *notifier.Bus              { return e.bus }
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }
func (e *Engine) Metrics() *metrics.Recorder      { return e.metrics }
func (e *Engine) Store() kvstore.Store            { return e.kv }

// Run drives timer checks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	return e.scheduler.Run(ctx)
}

// CheckNow is a user-initiated check; failures surface on the bus.
func (e *Engine) CheckNow(ctx context.Context) (scheduler.CheckResult, error) {
	return e.scheduler.Trigger(ctx, true)
}

func (e *Engine) IsVersionSkipped(ctx context.Context, version string) bool {
	return e.skips.ShouldSkip(ctx, version)
}

// SkipVersion dismisses version; a pending update for it is dropped.
func (e *Engine) SkipVersion(ctx context.Context, version string) (skiplist.VersionSkip, error) {
	s, err := e.skips.Skip(ctx, version)
	if err != nil {
		return skiplist.VersionSkip{}, err
	}
	if p, ok := e.PendingUpdate(ctx); ok && p.Version == s.Version {
		if err := e.kv.Delete(ctx, kvstore.KeyPendingUpdate); err != nil {
			log.Warn("drop pending update: %v", err)
		}
	}
	return s, nil
}

func (e *Engine) ClearSkip(ctx context.Context) error { return e.skips.Clear(ctx) }

func (e *Engine) ActiveSkip(ctx context.Context) (skiplist.VersionSkip, bool) {
	return e.skips.Active(ctx)
}

func (e *Engine) GetPerformanceStats() map[string]metrics.Summary {
	return e.metrics.Stats()
}

func (e *Engine) QueuedAttempts(ctx context.Context) ([]offline.Attempt, error) {
	return e.offline.List(ctx)
}

// InstalledVersion prefers the version recorded by the last apply, then the
// configured one, then the build version, then the sentinel.
func (e *Engine) InstalledVersion(ctx context.Context) string {
	if v := e.getString(ctx, kvstore.KeyInstalledVersion); v != "" {
		return v
	}
	if e.cfg.InstalledVersion != "" {
		return e.cfg.InstalledVersion
	}
	if v := versions.Build(); v != "" {
		return v
	}
	return versions.Sentinel
}

func (e *Engine) PendingUpdate(ctx context.Context) (notifier.PendingUpdate, bool) {
	var p notifier.PendingUpdate
	ok, err := kvstore.GetJSON(ctx, e.kv, kvstore.KeyPendingUpdate, &p)
	if err != nil {
		log.Warn("read pending update: %v", err)
		return notifier.PendingUpdate{}, false
	}
	return p, ok && p.Version != ""
}

type Status struct {
	State        scheduler.State         `json:"state"`
	Failures     int                     `json:"failures"`
	NextInterval time.Duration           `json:"next_interval"`
	LastCheck    time.Time               `json:"last_check"`
	Installed    string                  `json:"installed"`
	Revision     string                  `json:"revision,omitempty"`
	Pending      *notifier.PendingUpdate `json:"pending,omitempty"`
	Skip         *skiplist.VersionSkip   `json:"skip,omitempty"`
	Queued       int                     `json:"queued"`
}

func (e *Engine) Status(ctx context.Context) Status {
	st := Status{
		State:        e.scheduler.State(),
		Failures:     e.scheduler.Failures(),
		NextInterval: e.scheduler.NextInterval(),
		Installed:    e.InstalledVersion(ctx),
		Revision:     e.getString(ctx, kvstore.KeyInstalledRevision),
		Queued:       e.offline.Len(ctx),
	}
	if ts, ok := e.scheduler.LastCheck(ctx); ok {
		st.LastCheck = ts
	}
	if p, ok := e.PendingUpdate(ctx); ok {
		st.Pending = &p
	}
	if s, ok := e.skips.Active(ctx); ok {
		st.Skip = &s
	}
	return st
}

func (e *Engine) getString(ctx context.Context, key string) string {
	var v string
	if _, err := kvstore.GetJSON(ctx, e.kv, key, &v); err != nil {
		log.Warn("read %s: %v", key, err)
	}
	return v
}

func (e *Engine) setString(ctx context.Context, key, value string) error {
	if err := kvstore.SetJSON(ctx, e.kv, key, value); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
