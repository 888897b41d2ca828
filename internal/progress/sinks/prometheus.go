package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmfell/scholarscrape/internal/progress"
)

// PrometheusSink exports scrape progress metrics via Prometheus. It owns all
// collectors for authors started/completed/running, per-tier fetch counters,
// block detections, and breaker pauses.
type PrometheusSink struct {
	authorsStarted   prometheus.Counter
	authorsCompleted *prometheus.CounterVec
	authorsRunning   prometheus.Gauge
	authorRuntime    *prometheus.HistogramVec
	publications     prometheus.Counter

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	escalations   prometheus.Counter
	blocks        *prometheus.CounterVec
	breakerPauses prometheus.Counter

	tracker *authorTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		authorsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarscrape_authors_started_total",
			Help: "Total author profiles whose scrape has started.",
		}),
		authorsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarscrape_authors_completed_total",
			Help: "Total author profiles completed partitioned by outcome.",
		}, []string{"outcome"}),
		authorsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scholarscrape_authors_running",
			Help: "Current number of author profiles being scraped.",
		}),
		authorRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholarscrape_author_runtime_seconds",
			Help:    "Wall time per completed author profile.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"outcome"}),
		publications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarscrape_publications_total",
			Help: "Total publications collected across all authors.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarscrape_fetches_total",
			Help: "Fetch completions partitioned by tier and outcome.",
		}, []string{"tier", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholarscrape_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by tier.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
		}, []string{"tier"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarscrape_tier_escalations_total",
			Help: "Targets handed from one fetch tier to the next.",
		}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarscrape_blocks_total",
			Help: "Anti-bot block detections partitioned by kind.",
		}, []string{"kind"}),
		breakerPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarscrape_breaker_pauses_total",
			Help: "Pauses taken after the block breaker tripped.",
		}),
		tracker: newAuthorTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.authorsStarted,
		s.authorsCompleted,
		s.authorsRunning,
		s.authorRuntime,
		s.publications,
		s.fetches,
		s.fetchDuration,
		s.escalations,
		s.blocks,
		s.breakerPauses,
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
	case progress.StageAuthorStart, progress.StageAuthorDone, progress.StageAuthorError:
		s.handleAuthorEvent(evt)
	case progress.StageFetchDone:
		s.handleFetchEvent(evt)
	case progress.StageEscalation:
		s.escalations.Inc()
	case progress.StageBlocked:
		kind := evt.Block
		if kind == "" {
			kind = "unknown"
		}
		s.blocks.WithLabelValues(kind).Inc()
	case progress.StagePause:
		s.breakerPauses.Inc()
	}
}

func (s *PrometheusSink) handleAuthorEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAuthorStart:
		s.authorsStarted.Inc()
		if s.tracker.start(evt.Author) {
			s.authorsRunning.Inc()
		}
	case progress.StageAuthorDone:
		s.authorsCompleted.WithLabelValues(progress.OutcomeOK).Inc()
		s.observeRuntime(evt, progress.OutcomeOK)
		if evt.Count > 0 {
			s.publications.Add(float64(evt.Count))
		}
	case progress.StageAuthorError:
		s.authorsCompleted.WithLabelValues(progress.OutcomeError).Inc()
		s.observeRuntime(evt, progress.OutcomeError)
	}
	if evt.Stage != progress.StageAuthorStart && s.tracker.complete(evt.Author) {
		s.authorsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.authorRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	tier := evt.Tier
	if tier == "" {
		tier = "unknown"
	}
	outcome := evt.Outcome
	if outcome == "" {
		outcome = progress.OutcomeError
	}
	s.fetches.WithLabelValues(tier, outcome).Inc()
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(tier).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type authorTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newAuthorTracker() *authorTracker {
	return &authorTracker{running: make(map[string]struct{})}
}

func (t *authorTracker) start(author string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[author]; ok {
		return false
	}
	t.running[author] = struct{}{}
	return true
}

func (t *authorTracker) complete(author string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[author]; !ok {
		return false
	}
	delete(t.running, author)
	return true
}
