package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeecho/codeecho/internal/progress"
)

// PrometheusSink exports analysis progress metrics via Prometheus. It owns
// the collectors for runs started/completed/in-flight and per-site fetch
// counters, separate from the request-level metrics package.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsInFlight  prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	fetchCompleted *prometheus.CounterVec
	fetchBytes     *prometheus.CounterVec
	sectionsDone   *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progress_runs_started_total",
			Help: "Total analysis runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_runs_completed_total",
			Help: "Total analysis runs completed partitioned by result.",
		}, []string{"result"}),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progress_runs_in_flight",
			Help: "Current number of running analyses.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "progress_run_runtime_seconds",
			Help:    "Wall time per completed analysis.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"result"}),
		fetchCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_fetch_completed_total",
			Help: "Fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_fetch_bytes_total",
			Help: "Bytes of markup fetched per site.",
		}, []string{"site"}),
		sectionsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_sections_done_total",
			Help: "Generated sections partitioned by section name.",
		}, []string{"section"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsInFlight,
		s.runRuntime,
		s.fetchCompleted,
		s.fetchBytes,
		s.sectionsDone,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAnalysisStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.SessionID) {
			s.runsInFlight.Inc()
		}
	case progress.StageAnalysisDone:
		s.observeCompletion(evt, "success")
	case progress.StageAnalysisError:
		s.observeCompletion(evt, "error")
	case progress.StageFetchDone:
		s.observeFetch(evt)
	case progress.StageSectionDone:
		s.sectionsDone.WithLabelValues(evt.Section).Inc()
	}
}

func (s *PrometheusSink) observeCompletion(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.SessionID) {
		s.runsInFlight.Dec()
	}
}

func (s *PrometheusSink) observeFetch(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchCompleted.WithLabelValues(site, statusClass).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]struct{})}
}

func (t *runTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
