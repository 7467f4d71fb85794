package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/deltasync/internal/downloader"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/metrics"
	"github.com/MrSnakeDoc/deltasync/internal/rollback"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

var (
	ErrNothingPending = errors.New("no pending update")
	ErrVersionSkipped = errors.New("pending version is skipped")
)

type ApplyOptions struct {
	// DryRun computes the file list without downloading anything.
	DryRun bool
	// Force applies a pending version even if it was dismissed.
	Force bool
}

type ApplyReport struct {
	From     string             `json:"from"`
	To       string             `json:"to"`
	Revision string             `json:"revision"`
	Paths    []string           `json:"paths"`
	Removed  []string           `json:"removed,omitempty"`
	DryRun   bool               `json:"dry_run"`
	Download *downloader.Result `json:"download,omitempty"`
}

// ApplyUpdate installs the pending update as a delta: only the files changed
// since the installed revision are fetched. The active set is snapshotted
// first and restored if any file cannot be fetched or written.
func (e *Engine) ApplyUpdate(ctx context.Context, opts ApplyOptions) (ApplyReport, error) {
	stop := e.metrics.Time(metrics.ApplyDuration)
	defer stop()

	pending, ok := e.PendingUpdate(ctx)
	if !ok {
		return ApplyReport{}, ErrNothingPending
	}
	if !opts.Force && e.skips.ShouldSkip(ctx, pending.Version) {
		return ApplyReport{}, fmt.Errorf("%w: %s", ErrVersionSkipped, pending.Version)
	}

	installedRev := e.getString(ctx, kvstore.KeyInstalledRevision)
	ref := pending.Revision
	if ref == "" {
		ref = e.cfg.Repository.Branch
	}

	report := ApplyReport{
		From:     e.InstalledVersion(ctx),
		To:       pending.Version,
		Revision: ref,
		DryRun:   opts.DryRun,
	}

	paths, removed, err := e.deltaPaths(ctx, installedRev, pending.Revision)
	if err != nil {
		return report, err
	}
	report.Paths, report.Removed = paths, removed
	if opts.DryRun {
		return report, nil
	}

	if _, err := e.rollback.Snapshot(ctx, report.From, installedRev); err != nil {
		return report, fmt.Errorf("apply: %w", err)
	}

	res, err := e.downloader.Download(ctx, ref, paths)
	report.Download = &res
	if err != nil {
		return report, fmt.Errorf("apply %s: %w", pending.Version, err)
	}

	for _, name := range removed {
		if err := e.resources.Remove(ctx, name); err != nil {
			log.Warn("remove %s: %v", name, err)
		}
	}

	if err := e.recordInstalled(ctx, pending.Version, pending.Revision); err != nil {
		return report, err
	}
	e.dropPending(ctx)
	log.Info("applied %s (%d files)", pending.Version, len(paths))
	return report, nil
}

// deltaPaths lists what to fetch. Without both revisions there is nothing to
// diff against and the artifact alone is fetched.
func (e *Engine) deltaPaths(ctx context.Context, installedRev, targetRev string) ([]string, []string, error) {
	artifact := e.cfg.Repository.ArtifactPath
	if installedRev == "" || targetRev == "" || installedRev == targetRev {
		return []string{artifact}, nil, nil
	}

	cmp, err := e.repo.Compare(ctx, installedRev, targetRev)
	if err != nil {
		return nil, nil, fmt.Errorf("compare %s...%s: %w", short(installedRev), short(targetRev), err)
	}

	removed := utils.Dedupe(cmp.RemovedPaths)
	gone := make(map[string]bool, len(removed))
	for _, p := range removed {
		gone[p] = true
	}
	paths := utils.Filter(utils.Dedupe(cmp.ChangedPaths), func(p string) bool { return !gone[p] })
	if len(paths) == 0 && len(removed) == 0 {
		paths = []string{artifact}
	}
	return paths, removed, nil
}

// Rollback restores the last snapshot and records its version as installed.
func (e *Engine) Rollback(ctx context.Context) (rollback.RestoreReport, error) {
	stop := e.metrics.Time(metrics.RollbackDuration)
	defer stop()

	report, err := e.rollback.Restore(ctx)
	if report.Quality == rollback.QualityNone {
		return report, err
	}

	if rerr := e.recordInstalled(ctx, report.Version, report.Revision); rerr != nil {
		return report, errors.Join(err, rerr)
	}
	// the next check re-evaluates the latest revision from scratch
	if derr := e.kv.Delete(ctx, kvstore.KeyLastCheckedRevision); derr != nil {
		log.Warn("reset last checked revision: %v", derr)
	}
	return report, err
}

func (e *Engine) CurrentSnapshot(ctx context.Context) (rollback.Snapshot, bool, error) {
	return e.rollback.Current(ctx)
}

func (e *Engine) recordInstalled(ctx context.Context, version, revision string) error {
	if err := e.setString(ctx, kvstore.KeyInstalledVersion, version); err != nil {
		return err
	}
	if revision == "" {
		if err := e.kv.Delete(ctx, kvstore.KeyInstalledRevision); err != nil {
			return fmt.Errorf("clear installed revision: %w", err)
		}
		return nil
	}
	return e.setString(ctx, kvstore.KeyInstalledRevision, revision)
}
