// Package kvstore provides the durable key/value persistence the engine keeps
// its state in: cached revision payloads, resolved versions, the version
// skip, the offline queue, performance samples and the rollback snapshot.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

var ErrUnknownBackend = errors.New("unknown state backend")

type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open builds the backend named by backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFile(dir)
	case BackendSQLite:
		return NewSQLite(filepath.Join(dir, "state.db"))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// GetJSON decodes the value stored at key into out. ok is false on miss.
func GetJSON(ctx context.Context, s Store, key string, out any) (ok bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
