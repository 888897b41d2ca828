package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmfell/scholarscrape/internal/progress"
)

// TestTallySinkAggregates folds a mixed batch and verifies the snapshot copy.
func TestTallySinkAggregates(t *testing.T) {
	t.Parallel()

	sink := NewTallySink()
	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now().UTC()

	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageAuthorStart, Author: "a1"},
		{RunID: runID, TS: now, Stage: progress.StageFetchDone, Author: "a1", Tier: "fast", Outcome: progress.OutcomeOK},
		{RunID: runID, TS: now, Stage: progress.StageFetchDone, Author: "a1", Tier: "heavy", Outcome: progress.OutcomeError},
		{RunID: runID, TS: now, Stage: progress.StageBlocked, Author: "a1", Block: "unusual_traffic"},
		{RunID: runID, TS: now, Stage: progress.StagePause},
		{RunID: runID, TS: now.Add(time.Second), Stage: progress.StageAuthorDone, Author: "a1", Count: 7},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	snap := sink.Snapshot()
	require.Equal(t, int64(1), snap.AuthorsStarted)
	require.Equal(t, int64(1), snap.AuthorsSucceeded)
	require.Equal(t, int64(0), snap.AuthorsFailed)
	require.Equal(t, int64(7), snap.Publications)
	require.Equal(t, int64(1), snap.FetchesByTier["fast"])
	require.Equal(t, int64(1), snap.FetchesByTier["heavy"])
	require.Equal(t, int64(1), snap.FetchFailures)
	require.Equal(t, int64(1), snap.BlocksByKind["unusual_traffic"])
	require.Equal(t, int64(1), snap.BreakerPauses)
	require.Equal(t, now.Add(time.Second), snap.LastEvent)

	// Mutating the snapshot must not leak back into the sink.
	snap.FetchesByTier["fast"] = 99
	require.Equal(t, int64(1), sink.Snapshot().FetchesByTier["fast"])
}
