// Package source talks to the remote repository that publishes the script
// artifact. Consumers depend on the narrow interfaces they need; Repository
// is the full surface.
package source

import (
	"context"
	"time"
)

// RevisionRef identifies the newest known state of the remote artifact.
type RevisionRef struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

type LatestStatus int

const (
	StatusModified LatestStatus = iota
	StatusNotModified
	StatusRateLimited
)

func (s LatestStatus) String() string {
	switch s {
	case StatusModified:
		return "modified"
	case StatusNotModified:
		return "not-modified"
	case StatusRateLimited:
		return "rate-limited"
	}
	return "unknown"
}

// LatestResult is the outcome of a conditional latest-revision request.
// Revision and Validator are only set for StatusModified.
type LatestResult struct {
	Status    LatestStatus
	Revision  RevisionRef
	Validator string
}

type Comparison struct {
	// ChangedPaths lists every touched path, removed ones included.
	ChangedPaths   []string
	RemovedPaths   []string
	CommitMessages []string
}

type Repository interface {
	LatestRevision(ctx context.Context, validator string) (LatestResult, error)
	Compare(ctx context.Context, oldRev, newRev string) (Comparison, error)
	// ContentViaQuery and RawContent are two strategies for the same
	// revision-addressed read.
	ContentViaQuery(ctx context.Context, revision, path string) ([]byte, error)
	RawContent(ctx context.Context, revision, path string) ([]byte, error)
	// CurrentContent reads path from the canonical branch head, unpinned.
	CurrentContent(ctx context.Context, path string) ([]byte, error)
	FetchFromProvider(ctx context.Context, template, revision, path string) ([]byte, error)
}
