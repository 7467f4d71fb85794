// Package classifier decides whether the delta between two revisions is worth
// surfacing as an update.
package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/source"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

var log = logger.Named("classifier")

var (
	bumpWords    = regexp.MustCompile(`(?i)\b(version|bump)\b`)
	versionToken = regexp.MustCompile(`\b\d+\.\d+(?:\.\d+)*\b`)
)

// Comparer is the slice of source.Repository the classifier needs.
type Comparer interface {
	Compare(ctx context.Context, oldRev, newRev string) (source.Comparison, error)
}

type Reason string

const (
	ReasonFirstCheck    Reason = "first-check"
	ReasonCriticalPath  Reason = "critical-path"
	ReasonVersionCommit Reason = "version-commit"
	ReasonVolume        Reason = "volume"
	ReasonFetchFailed   Reason = "compare-failed"
)

type Verdict struct {
	Significant bool
	Reasons     []Reason
	// Detail holds the first path or message that triggered each reason.
	Detail map[Reason]string
}

type Classifier struct {
	repo       Comparer
	substrings []string
	prefixes   []string
	volume     int
}

func New(repo Comparer, cfg config.ClassifyConfig) *Classifier {
	return &Classifier{
		repo:       repo,
		substrings: cfg.CriticalSubstrings,
		prefixes:   cfg.CriticalPrefixes,
		volume:     cfg.VolumeThreshold,
	}
}

func (c *Classifier) IsSignificant(ctx context.Context, oldRev, newRev string) bool {
	return c.Classify(ctx, oldRev, newRev).Significant
}

// Classify ORs the path, commit-message and volume heuristics. A failed
// comparison counts as significant.
func (c *Classifier) Classify(ctx context.Context, oldRev, newRev string) Verdict {
	v := Verdict{Detail: map[Reason]string{}}

	switch {
	case oldRev == "":
		v.add(ReasonFirstCheck, newRev)
		return v
	case oldRev == newRev:
		return v
	}

	cmp, err := c.repo.Compare(ctx, oldRev, newRev)
	if err != nil {
		log.Warn("compare %s...%s failed, assuming significant: %v", short(oldRev), short(newRev), err)
		v.add(ReasonFetchFailed, err.Error())
		return v
	}

	if p, ok := c.criticalPath(cmp.ChangedPaths); ok {
		v.add(ReasonCriticalPath, p)
	}
	if m, ok := versionCommit(cmp.CommitMessages); ok {
		v.add(ReasonVersionCommit, m)
	}
	if len(cmp.ChangedPaths) > c.volume {
		v.add(ReasonVolume, fmt.Sprintf("%d files", len(cmp.ChangedPaths)))
	}

	log.Debug("%s...%s: significant=%t reasons=%v", short(oldRev), short(newRev), v.Significant, v.Reasons)
	return v
}

func (v *Verdict) add(r Reason, detail string) {
	v.Significant = true
	v.Reasons = append(v.Reasons, r)
	v.Detail[r] = detail
}

func (c *Classifier) criticalPath(paths []string) (string, bool) {
	for _, p := range paths {
		if utils.Some(c.substrings, func(s string) bool { return strings.Contains(p, s) }) ||
			utils.Some(c.prefixes, func(prefix string) bool { return strings.HasPrefix(p, prefix) }) {
			return p, true
		}
	}
	return "", false
}

func versionCommit(messages []string) (string, bool) {
	for _, m := range messages {
		if bumpWords.MatchString(m) || versionToken.MatchString(m) {
			return firstLine(m), true
		}
	}
	return "", false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func short(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
