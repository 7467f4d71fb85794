// Package scheduler drives update checks: it owns the check state machine,
// the adaptive polling interval and the failure backoff.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/clock"
	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/notifier"
)

var log = logger.Named("scheduler")

// ErrCheckInFlight is returned by Trigger while another check is running.
var ErrCheckInFlight = errors.New("a check is already in flight")

type State int

const (
	Idle State = iota
	Checking
	NotifyPending
	Backoff
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case NotifyPending:
		return "notify-pending"
	case Backoff:
		return "backoff"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type CheckResult struct {
	Outcome notifier.Outcome `json:"outcome"`
	Version string           `json:"version,omitempty"`
}

// CheckFunc runs one full check. A non-nil error means total failure.
type CheckFunc func(ctx context.Context) (CheckResult, error)

type Options struct {
	BaseInterval time.Duration
	MaxFailures  int
	AutoCheck    bool
}

type Scheduler struct {
	check CheckFunc
	bus   *notifier.Bus
	kv    kvstore.Store
	clock clock.Clock

	base        time.Duration
	maxFailures int
	autoCheck   atomic.Bool

	mu       sync.Mutex
	state    State
	pending  State // state to report while Checking
	failures int
	// announced is the version update-available already fired for in the
	// current pending period.
	announced string
}

func New(check CheckFunc, bus *notifier.Bus, kv kvstore.Store, clk clock.Clock, opts Options) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if bus == nil {
		bus = notifier.NewBus()
	}
	s := &Scheduler{
		check:       check,
		bus:         bus,
		kv:          kv,
		clock:       clk,
		base:        opts.BaseInterval,
		maxFailures: opts.MaxFailures,
	}
	s.autoCheck.Store(opts.AutoCheck)
	return s
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// SetAutoCheck toggles timer-driven checks; manual triggers are unaffected.
func (s *Scheduler) SetAutoCheck(enabled bool) { s.autoCheck.Store(enabled) }

// NextInterval is base normally, base/2 while an update is pending and
// base*2^n after n consecutive failures.
func (s *Scheduler) NextInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	if state == Checking {
		state = s.pending
	}
	switch state {
	case Backoff:
		return s.base << s.failures
	case NotifyPending:
		return s.base / 2
	default:
		return s.base
	}
}

// Trigger runs one check unless one is already in flight.
func (s *Scheduler) Trigger(ctx context.Context, manual bool) (CheckResult, error) {
	s.mu.Lock()
	if s.state == Checking {
		s.mu.Unlock()
		log.Debug("trigger ignored (manual=%t): check in flight", manual)
		return CheckResult{}, ErrCheckInFlight
	}
	s.pending = s.state
	s.state = Checking
	s.mu.Unlock()

	res, err := s.check(ctx)
	s.recordLastCheck(ctx)

	if err != nil {
		s.fail(err)
		s.bus.EmitCheckCompleted(notifier.CheckCompleted{Outcome: notifier.OutcomeError, Manual: manual, Err: err})
		if manual {
			s.bus.EmitError(err)
		}
		return CheckResult{Outcome: notifier.OutcomeError}, err
	}

	announce := s.succeed(res)
	if announce {
		s.bus.EmitUpdateAvailable(res.Version)
	}
	s.bus.EmitCheckCompleted(notifier.CheckCompleted{Outcome: res.Outcome, Version: res.Version, Manual: manual})
	return res, nil
}

func (s *Scheduler) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	if s.failures > s.maxFailures {
		log.Warn("%d consecutive failures, returning to the normal interval: %v", s.failures, err)
		s.failures = 0
		s.state = Idle
		return
	}
	s.state = Backoff
	log.Debug("check failed (%d/%d), backing off %s: %v", s.failures, s.maxFailures, s.base<<s.failures, err)
}

func (s *Scheduler) succeed(res CheckResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = 0
	if res.Outcome != notifier.OutcomeUpdateAvailable {
		s.state = Idle
		s.announced = ""
		return false
	}

	s.state = NotifyPending
	if s.announced == res.Version {
		return false
	}
	s.announced = res.Version
	return true
}

func (s *Scheduler) recordLastCheck(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyLastUpdateCheck, s.clock.Now()); err != nil {
		log.Warn("persist last check: %v", err)
	}
}

// LastCheck returns the persisted time of the last completed check.
func (s *Scheduler) LastCheck(ctx context.Context) (time.Time, bool) {
	if s.kv == nil {
		return time.Time{}, false
	}
	var ts time.Time
	ok, err := kvstore.GetJSON(ctx, s.kv, kvstore.KeyLastUpdateCheck, &ts)
	if err != nil || !ok {
		return time.Time{}, false
	}
	return ts, true
}

// Run fires timer-driven checks until ctx is done. The first wait accounts
// for a check persisted by a previous process.
func (s *Scheduler) Run(ctx context.Context) error {
	delay := s.NextInterval()
	if last, ok := s.LastCheck(ctx); ok {
		since := max(s.clock.Now().Sub(last), 0)
		if since < delay {
			delay -= since
		} else {
			delay = 0
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(delay):
		}

		if s.autoCheck.Load() {
			if _, err := s.Trigger(ctx, false); err != nil && !errors.Is(err, ErrCheckInFlight) {
				log.Debug("scheduled check: %v", err)
			}
		} else {
			log.Debug("auto-check disabled, skipping tick")
		}
		delay = s.NextInterval()
	}
}
