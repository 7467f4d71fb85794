// Package metrics keeps rolling performance samples per named operation and
// mirrors them into Prometheus collectors.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
)

// Window is how many samples are kept per metric.
const Window = 100

// Metric names recorded by the engine.
const (
	CheckDuration    = "check.total"
	LatestRevision   = "check.latest_revision"
	Classification   = "check.classify"
	Resolution       = "check.resolve"
	DownloadFile     = "download.file"
	ApplyDuration    = "apply.total"
	RollbackDuration = "apply.rollback"
)

type Summary struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

type Recorder struct {
	kv kvstore.Store

	mu      sync.Mutex
	samples map[string][]time.Duration

	registry *prometheus.Registry
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

func NewRecorder(kv kvstore.Store) *Recorder {
	r := &Recorder{
		kv:       kv,
		samples:  make(map[string][]time.Duration),
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deltasync",
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"operation"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deltasync",
			Name:      "check_outcomes_total",
			Help:      "Completed update checks, partitioned by outcome",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.duration, r.outcomes)
	return r
}

// Record appends d to the rolling window of metric.
func (r *Recorder) Record(metric string, d time.Duration) {
	r.mu.Lock()
	s := append(r.samples[metric], d)
	if len(s) > Window {
		s = s[len(s)-Window:]
	}
	r.samples[metric] = s
	r.mu.Unlock()

	r.duration.WithLabelValues(metric).Observe(d.Seconds())
}

// Time starts a measurement; calling the returned func records it.
func (r *Recorder) Time(metric string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		r.Record(metric, d)
		return d
	}
}

func (r *Recorder) CountOutcome(outcome string) {
	r.outcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Stats() map[string]Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Summary, len(r.samples))
	for name, s := range r.samples {
		if len(s) == 0 {
			continue
		}
		sum := Summary{Count: len(s), Min: s[0], Max: s[0]}
		var total time.Duration
		for _, d := range s {
			total += d
			sum.Min = min(sum.Min, d)
			sum.Max = max(sum.Max, d)
		}
		sum.Avg = total / time.Duration(len(s))
		out[name] = sum
	}
	return out
}

// Names returns the recorded metric names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return utils.SortedKeys(r.samples)
}

// Load replaces the in-memory windows with the persisted ones.
func (r *Recorder) Load(ctx context.Context) error {
	var persisted map[string][]time.Duration
	ok, err := kvstore.GetJSON(ctx, r.kv, kvstore.KeyPerformance, &persisted)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range persisted {
		if len(s) > Window {
			s = s[len(s)-Window:]
		}
		r.samples[name] = s
	}
	return nil
}

func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	snapshot := make(map[string][]time.Duration, len(r.samples))
	for name, s := range r.samples {
		snapshot[name] = append([]time.Duration(nil), s...)
	}
	r.mu.Unlock()

	if err := kvstore.SetJSON(ctx, r.kv, kvstore.KeyPerformance, snapshot); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
