package database

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestSaveOutcomeInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "scrape_outcomes")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	o := Outcome{
		RunID:        "0f61cf04-9d6f-4f0e-a26c-bc4f68bd29b2",
		Author:       "a1b2c3d4",
		Succeeded:    true,
		Publications: 42,
		BlobURI:      "gs://bucket/a1b2c3d4_scholar_data.json",
		BlobHash:     "abc123",
		StartedAt:    started,
		FinishedAt:   started.Add(90 * time.Second),
	}

	mock.ExpectExec("INSERT INTO scrape_outcomes").
		WithArgs(
			o.RunID,
			o.Author,
			o.Succeeded,
			o.Publications,
			o.BlobURI,
			o.BlobHash,
			o.Error,
			o.StartedAt,
			o.FinishedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveOutcome(context.Background(), o))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutcomeValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)

	err = store.SaveOutcome(context.Background(), Outcome{Author: "a1"})
	require.ErrorContains(t, err, "run id")

	err = store.SaveOutcome(context.Background(), Outcome{RunID: "r1"})
	require.ErrorContains(t, err, "author")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewStoreWithPool(mock, "outcomes; drop table users")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewStoreWithPool(nil, "scrape_outcomes")
	require.ErrorContains(t, err, "pool is required")
}

func TestNoOpProvider(t *testing.T) {
	t.Parallel()

	var p NoOpProvider
	require.NoError(t, p.SaveOutcome(context.Background(), Outcome{}))
	p.Close()
}
