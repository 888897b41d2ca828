package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmfell/scholarscrape/internal/queue"
)

func TestQueueRecordsNotices(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	first := queue.Notice{RunID: "run-1", Author: "a1", Succeeded: true, Publications: 3}
	second := queue.Notice{RunID: "run-1", Author: "b2"}

	require.NoError(t, q.Publish(context.Background(), first))
	require.NoError(t, q.Publish(context.Background(), second))

	got := q.Notices()
	require.Equal(t, []queue.Notice{first, second}, got)

	got[0].Author = "mutated"
	require.Equal(t, "a1", q.Notices()[0].Author, "accessor must return a copy")
}

func TestQueueCancelation(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, q.Publish(ctx, queue.Notice{Author: "a1"}))
	require.Empty(t, q.Notices())
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Close())
	require.ErrorContains(t, q.Publish(context.Background(), queue.Notice{Author: "a1"}), "queue closed")
	require.NoError(t, q.Close(), "closing twice is safe")
}
