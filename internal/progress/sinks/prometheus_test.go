package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmfell/scholarscrape/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageAuthorStart, Author: "a1b2c3"},
		{
			RunID:   runID,
			TS:      time.Now().Add(2 * time.Second),
			Stage:   progress.StageFetchDone,
			Author:  "a1b2c3",
			Tier:    "fast",
			Outcome: progress.OutcomeOK,
			Dur:     200 * time.Millisecond,
		},
		{RunID: runID, TS: time.Now().Add(3 * time.Second), Stage: progress.StageBlocked, Author: "a1b2c3", Block: "captcha"},
		{RunID: runID, TS: time.Now().Add(4 * time.Second), Stage: progress.StageEscalation, Tier: "heavy"},
		{
			RunID:  runID,
			TS:     time.Now().Add(15 * time.Second),
			Stage:  progress.StageAuthorDone,
			Author: "a1b2c3",
			Count:  42,
			Dur:    15 * time.Second,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.authorsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.authorsCompleted.WithLabelValues(progress.OutcomeOK)))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.authorsCompleted.WithLabelValues(progress.OutcomeError)))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.authorsRunning))
	require.Equal(t, 42.0, testutil.ToFloat64(sink.publications))

	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.fetches.WithLabelValues("fast", progress.OutcomeOK)),
		1e-9,
	)
	require.Equal(t, 1.0, testutil.ToFloat64(sink.blocks.WithLabelValues("captcha")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.escalations))
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "scholarscrape_fetch_duration_seconds"))
}

// TestPrometheusSinkTracksRunningGauge exercises the start/complete pairing for the gauge.
func TestPrometheusSinkTracksRunningGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	start := progress.Event{RunID: runID, TS: time.Now(), Stage: progress.StageAuthorStart, Author: "x1"}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{start}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.authorsRunning))

	fail := progress.Event{RunID: runID, TS: time.Now(), Stage: progress.StageAuthorError, Author: "x1"}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{fail}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.authorsRunning))
}
