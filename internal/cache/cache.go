// Package cache implements the tiered read path for remote metadata: an
// in-process memory tier, the persistent key/value tier and, for the latest
// revision, a conditional network request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
)

var log = logger.Named("cache")

type Entry struct {
	Payload   json.RawMessage `json:"payload"`
	Validator string          `json:"validator,omitempty"`
	StoredAt  time.Time       `json:"stored_at"`
	TTL       time.Duration   `json:"ttl"`
}

func (e Entry) Age(now time.Time) time.Duration { return now.Sub(e.StoredAt) }

// Fresh reports whether storedAt + ttl is still in the future.
func (e Entry) Fresh(now time.Time) bool { return e.Age(now) < e.TTL }

// NewEntry marshals payload into an entry stamped at now.
func NewEntry(payload any, validator string, now time.Time, ttl time.Duration) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode cache payload: %w", err)
	}
	return Entry{Payload: raw, Validator: validator, StoredAt: now, TTL: ttl}, nil
}

// Typed decodes the payload of e.
func Typed[T any](e Entry) (T, error) {
	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, fmt.Errorf("decode cache payload: %w", err)
	}
	return v, nil
}

// Layer owns one memory tier. Two layers over the same store share the
// persistent tier but nothing else.
type Layer struct {
	kv           kvstore.Store
	clock        clock.Clock
	freshness    time.Duration
	emergencyTTL time.Duration

	mu  sync.Mutex
	mem map[string]Entry
}

func New(kv kvstore.Store, clk clock.Clock, freshness, emergencyTTL time.Duration) *Layer {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Layer{
		kv:           kv,
		clock:        clk,
		freshness:    freshness,
		emergencyTTL: emergencyTTL,
		mem:          make(map[string]Entry),
	}
}

func (l *Layer) Now() time.Time { return l.clock.Now() }

// Get returns a fresh entry from the memory tier or, failing that, from the
// persistent tier (warming memory on the way). Stale entries are a miss.
func (l *Layer) Get(ctx context.Context, key string) (Entry, bool) {
	now := l.clock.Now()

	if e, ok := l.fromMemory(key); ok && e.Fresh(now) {
		return e, true
	}

	e, ok := l.Peek(ctx, key)
	if !ok || !e.Fresh(now) {
		return Entry{}, false
	}
	l.warm(key, e)
	return e, true
}

// Peek returns the persisted entry for key regardless of its age.
func (l *Layer) Peek(ctx context.Context, key string) (Entry, bool) {
	var e Entry
	ok, err := kvstore.GetJSON(ctx, l.kv, kvstore.PrefixCache+key, &e)
	if err != nil {
		log.Warn("read %s: %v", key, err)
		return Entry{}, false
	}
	return e, ok
}

func (l *Layer) Put(ctx context.Context, key string, e Entry) error {
	l.warm(key, e)
	if err := kvstore.SetJSON(ctx, l.kv, kvstore.PrefixCache+key, e); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (l *Layer) Invalidate(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.mem, key)
	l.mu.Unlock()

	if err := l.kv.Delete(ctx, kvstore.PrefixCache+key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

func (l *Layer) fromMemory(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.mem[key]
	return e, ok
}

func (l *Layer) warm(key string, e Entry) {
	l.mu.Lock()
	l.mem[key] = e
	l.mu.Unlock()
}
