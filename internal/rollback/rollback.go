// Package rollback keeps a single-slot snapshot of the active resource set so
// a failed delta apply can be undone.
package rollback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

var log = logger.Named("rollback")

var ErrRestoreIncomplete = errors.New("restore incomplete")

const maxSnapshotSize = 256 << 20

type Snapshot struct {
	Version   string            `json:"version"`
	Revision  string            `json:"revision,omitempty"`
	TakenAt   time.Time         `json:"taken_at"`
	Resources map[string][]byte `json:"resources"`
}

// Quality grades how completely a restore put the snapshot back.
type Quality string

const (
	QualityFull    Quality = "FULL"
	QualityPartial Quality = "PARTIAL"
	QualityNone    Quality = "NONE"
)

type RestoreReport struct {
	Quality  Quality           `json:"quality"`
	Version  string            `json:"version"`
	Revision string            `json:"revision,omitempty"`
	Restored []string          `json:"restored"`
	Removed  []string          `json:"removed,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
}

type Store struct {
	kv    kvstore.Store
	set   ResourceSet
	clock clock.Clock
}

func New(kv kvstore.Store, set ResourceSet, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{kv: kv, set: set, clock: clk}
}

// Snapshot captures every resource currently in the set, overwriting the
// previous snapshot. version and revision label what is being captured.
func (s *Store) Snapshot(ctx context.Context, version, revision string) (Snapshot, error) {
	names, err := s.set.Names(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}

	snap := Snapshot{
		Version:   version,
		Revision:  revision,
		TakenAt:   s.clock.Now(),
		Resources: make(map[string][]byte, len(names)),
	}
	for _, name := range names {
		data, err := s.set.Read(ctx, name)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot %s: %w", name, err)
		}
		snap.Resources[name] = data
	}

	if err := s.save(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("persist snapshot: %w", err)
	}
	log.Debug("snapshot of %d resources taken (version %s)", len(names), version)
	return snap, nil
}

func (s *Store) Current(ctx context.Context) (Snapshot, bool, error) {
	var packed []byte
	ok, err := kvstore.GetJSON(ctx, s.kv, kvstore.KeyRollbackSnapshot, &packed)
	if err != nil || !ok {
		return Snapshot{}, ok, err
	}

	raw, err := utils.MaybeGunzip(packed, maxSnapshotSize)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// save stores the snapshot as gzipped JSON.
func (s *Store) save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	packed, err := utils.GzipBytes(raw)
	if err != nil {
		return err
	}
	return kvstore.SetJSON(ctx, s.kv, kvstore.KeyRollbackSnapshot, packed)
}

// Restore writes every captured resource back and removes resources that
// appeared after the snapshot. It is best-effort: each failure is logged and
// the report is returned together with ErrRestoreIncomplete.
func (s *Store) Restore(ctx context.Context) (RestoreReport, error) {
	snap, ok, err := s.Current(ctx)
	if err != nil {
		return RestoreReport{Quality: QualityNone}, fmt.Errorf("restore: %w", err)
	}
	if !ok {
		return RestoreReport{Quality: QualityNone}, errs.ErrNoSnapshot
	}

	report := RestoreReport{Version: snap.Version, Revision: snap.Revision, Failed: map[string]string{}}

	for _, name := range utils.SortedKeys(snap.Resources) {
		if err := s.set.Write(ctx, name, snap.Resources[name]); err != nil {
			report.Failed[name] = err.Error()
			log.Error("could not restore %s: %v", name, err)
			continue
		}
		report.Restored = append(report.Restored, name)
	}

	current, err := s.set.Names(ctx)
	if err != nil {
		report.Failed["*"] = err.Error()
		log.Error("could not list resources after restore: %v", err)
	}
	for _, name := range current {
		if _, kept := snap.Resources[name]; kept {
			continue
		}
		if err := s.set.Remove(ctx, name); err != nil {
			report.Failed[name] = err.Error()
			log.Error("could not remove %s: %v", name, err)
			continue
		}
		report.Removed = append(report.Removed, name)
	}

	switch {
	case len(report.Failed) == 0:
		report.Quality = QualityFull
		report.Failed = nil
		log.Info("restored %d resources (version %s)", len(report.Restored), snap.Version)
		return report, nil
	case len(report.Restored)+len(report.Removed) > 0:
		report.Quality = QualityPartial
	default:
		report.Quality = QualityNone
	}
	log.Error("restore %s: %d of %d resources could not be written back",
		report.Quality, len(report.Failed), len(snap.Resources))
	return report, fmt.Errorf("%w: %d failed", ErrRestoreIncomplete, len(report.Failed))
}
