package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/dmfell/scholarscrape/internal/progress"
)

// TallySnapshot is a point-in-time copy of the run counters.
type TallySnapshot struct {
	AuthorsStarted   int64            `json:"authors_started"`
	AuthorsSucceeded int64            `json:"authors_succeeded"`
	AuthorsFailed    int64            `json:"authors_failed"`
	Publications     int64            `json:"publications"`
	FetchesByTier    map[string]int64 `json:"fetches_by_tier"`
	FetchFailures    int64            `json:"fetch_failures"`
	Escalations      int64            `json:"escalations"`
	BlocksByKind     map[string]int64 `json:"blocks_by_kind"`
	BreakerPauses    int64            `json:"breaker_pauses"`
	LastEvent        time.Time        `json:"last_event"`
}

// TallySink keeps an in-memory aggregate of the current run. The ops API
// serves its Snapshot so operators can watch a run without Prometheus.
type TallySink struct {
	mu   sync.Mutex
	snap TallySnapshot
}

// NewTallySink returns an empty tally.
func NewTallySink() *TallySink {
	return &TallySink{snap: TallySnapshot{
		FetchesByTier: make(map[string]int64),
		BlocksByKind:  make(map[string]int64),
	}}
}

// Consume folds the batch into the running counters.
func (s *TallySink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *TallySink) apply(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAuthorStart:
		s.snap.AuthorsStarted++
	case progress.StageAuthorDone:
		s.snap.AuthorsSucceeded++
		s.snap.Publications += evt.Count
	case progress.StageAuthorError:
		s.snap.AuthorsFailed++
	case progress.StageFetchDone:
		s.snap.FetchesByTier[evt.Tier]++
		if evt.Outcome != progress.OutcomeOK {
			s.snap.FetchFailures++
		}
	case progress.StageEscalation:
		s.snap.Escalations++
	case progress.StageBlocked:
		s.snap.BlocksByKind[evt.Block]++
	case progress.StagePause:
		s.snap.BreakerPauses++
	}
	if evt.TS.After(s.snap.LastEvent) {
		s.snap.LastEvent = evt.TS
	}
}

// Snapshot returns a deep copy of the current counters.
func (s *TallySink) Snapshot() TallySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.FetchesByTier = make(map[string]int64, len(s.snap.FetchesByTier))
	for k, v := range s.snap.FetchesByTier {
		out.FetchesByTier[k] = v
	}
	out.BlocksByKind = make(map[string]int64, len(s.snap.BlocksByKind))
	for k, v := range s.snap.BlocksByKind {
		out.BlocksByKind[k] = v
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *TallySink) Close(context.Context) error {
	return nil
}
