package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

// File keeps every key in one JSON document. Reads are served from the hot
// in-memory copy; every write rewrites the document atomically.
type File struct {
	path string
	mu   sync.RWMutex
	hot  map[string]string
}

type fileDoc struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

const fileDocVersion = 1

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f := &File{
		path: filepath.Join(dir, "state.json"),
		hot:  make(map[string]string),
	}
	if err := f.loadFromDisk(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.hot[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.hot[key]
	f.hot[key] = string(value)
	if err := f.saveLocked(); err != nil {
		if had {
			f.hot[key] = prev
		} else {
			delete(f.hot, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.hot[key]
	if !had {
		return nil
	}
	delete(f.hot, key)
	if err := f.saveLocked(); err != nil {
		f.hot[key] = prev
		return err
	}
	return nil
}

func (f *File) Close() error { return nil }

// --- internals ---

func (f *File) loadFromDisk() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", f.path, err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		// corrupt -> start clean, the engine rebuilds everything it caches
		logger.Named("kvstore").Warn("state file %s is corrupt, starting clean: %v", f.path, err)
		return nil
	}
	if doc.Values != nil {
		f.hot = doc.Values
	}
	logger.Named("kvstore").Debug("loaded %d keys from %s", len(f.hot), f.path)
	return nil
}

func (f *File) saveLocked() error {
	doc := fileDoc{Version: fileDocVersion, Values: f.hot}
	if err := utils.WriteJSONAtomic(f.path, doc); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}
