package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Engine error taxonomy. Components wrap these with fmt.Errorf("...: %w") so
// callers can branch with errors.Is.
var (
	ErrTransientNetwork      = errors.New("transient network failure")
	ErrRateLimited           = errors.New("rate limited by source repository")
	ErrParse                 = errors.New("malformed response")
	ErrNoSnapshot            = errors.New("no rollback snapshot available")
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	ErrTotalFailure          = errors.New("all retrieval tiers failed")
	ErrUnavailable           = errors.New("retrieval strategy unavailable")
	ErrBodyTooLarge          = errors.New("response body exceeds size limit")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTransientNetwork
	KindRateLimited
	KindParse
	KindNoSnapshot
	KindAllProvidersExhausted
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient-network"
	case KindRateLimited:
		return "rate-limited"
	case KindParse:
		return "parse"
	case KindNoSnapshot:
		return "no-snapshot"
	case KindAllProvidersExhausted:
		return "all-providers-exhausted"
	default:
		return "unknown"
	}
}

// Classify maps an error chain onto the taxonomy. Timeouts and connection
// errors that never got wrapped by a component still count as transient.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrNoSnapshot):
		return KindNoSnapshot
	case errors.Is(err, ErrAllProvidersExhausted):
		return KindAllProvidersExhausted
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrTransientNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return KindTransientNetwork
	}
	return KindUnknown
}

// IsTimeout reports whether err was caused by a deadline rather than a refused
// or broken connection.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Retryable is true for the kinds that feed backoff or the offline queue.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTransientNetwork, KindRateLimited, KindParse:
		return true
	}
	return errors.Is(err, ErrTotalFailure)
}

// ---- CLI usage messages ----

type Code string

const (
	SkipNeedsVersion    Code = "SKIP_NEEDS_VERSION"
	ClearWithVersion    Code = "CLEAR_WITH_VERSION"
	UnknownBackend      Code = "UNKNOWN_BACKEND"
	ApplyCheckOnlyCombo Code = "APPLY_CHECK_ONLY_COMBO"
)

var messages = map[Code]string{
	SkipNeedsVersion: `Missing version: provide the version to dismiss

Usage:
  deltasync skip 2.10.0       # hide notifications for 2.10.0 for %[1]s
  deltasync skip --clear      # forget the dismissed version`,

	ClearWithVersion: `Invalid flag combination: cannot use --clear with a version

Usage:
  deltasync skip --clear
  deltasync skip %[1]s`,

	UnknownBackend: `Unknown state backend %[1]q

Supported backends:
  file     JSON document under the state directory (default)
  sqlite   single-table SQLite database
  memory   process memory only (tests, dry runs)`,

	ApplyCheckOnlyCombo: `Invalid flag combination: --dry-run cannot be combined with --force

Usage:
  deltasync apply --dry-run   # list the files that would be fetched
  deltasync apply --force     # apply even if the version was dismissed`,
}

func Msg(code Code, a ...any) string {
	msg := messages[code]
	if msg == "" {
		msg = string(code)
	}
	return fmt.Sprintf(msg, a...)
}
