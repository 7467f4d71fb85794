// Package skiplist keeps the single user-dismissed version and its cool-down.
package skiplist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
)

var log = logger.Named("skiplist")

type VersionSkip struct {
	Version string    `json:"version"`
	Until   time.Time `json:"until"`
}

func (s VersionSkip) Expired(now time.Time) bool { return !now.Before(s.Until) }

type Manager struct {
	kv       kvstore.Store
	clock    clock.Clock
	duration time.Duration
}

func New(kv kvstore.Store, clk clock.Clock, duration time.Duration) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{kv: kv, clock: clk, duration: duration}
}

// Skip replaces any existing skip with version until now + duration.
func (m *Manager) Skip(ctx context.Context, version string) (VersionSkip, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return VersionSkip{}, fmt.Errorf("skip: empty version")
	}
	s := VersionSkip{Version: version, Until: m.clock.Now().Add(m.duration)}
	if err := kvstore.SetJSON(ctx, m.kv, kvstore.KeyVersionSkip, s); err != nil {
		return VersionSkip{}, fmt.Errorf("skip %s: %w", version, err)
	}
	log.Debug("skipping %s until %s", version, s.Until.Format(time.RFC3339))
	return s, nil
}

// ShouldSkip is true iff the active skip names version. An expired skip is
// purged as a side effect of the read.
func (m *Manager) ShouldSkip(ctx context.Context, version string) bool {
	s, ok := m.Active(ctx)
	return ok && s.Version == version
}

// Active returns the unexpired skip, if any.
func (m *Manager) Active(ctx context.Context) (VersionSkip, bool) {
	var s VersionSkip
	ok, err := kvstore.GetJSON(ctx, m.kv, kvstore.KeyVersionSkip, &s)
	if err != nil {
		log.Warn("read skip: %v", err)
		return VersionSkip{}, false
	}
	if !ok {
		return VersionSkip{}, false
	}
	if s.Expired(m.clock.Now()) {
		log.Debug("skip for %s expired, purging", s.Version)
		if err := m.kv.Delete(ctx, kvstore.KeyVersionSkip); err != nil {
			log.Warn("purge skip: %v", err)
		}
		return VersionSkip{}, false
	}
	return s, true
}

func (m *Manager) Clear(ctx context.Context) error {
	if err := m.kv.Delete(ctx, kvstore.KeyVersionSkip); err != nil {
		return fmt.Errorf("clear skip: %w", err)
	}
	return nil
}
