package database

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "scrape_outcomes"

// StoreConfig controls the Postgres connection pool for outcome rows.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes outcome rows into Postgres.
type Store struct {
	pool  execCloser
	table string
}

// NewStore connects a Postgres-backed outcome store.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewStoreWithPool constructs a store from an existing pool, primarily
// for testing.
func NewStoreWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveOutcome inserts an outcome row. It assumes a table schema like:
//
//	CREATE TABLE scrape_outcomes (
//		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//		run_id UUID NOT NULL,
//		author TEXT NOT NULL,
//		succeeded BOOLEAN NOT NULL,
//		publications INTEGER NOT NULL,
//		blob_uri TEXT,
//		blob_hash TEXT,
//		error TEXT,
//		started_at TIMESTAMPTZ NOT NULL,
//		finished_at TIMESTAMPTZ NOT NULL,
//		created_at TIMESTAMPTZ DEFAULT NOW()
//	);
func (s *Store) SaveOutcome(ctx context.Context, o Outcome) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("outcome store is not configured")
	}
	if o.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if o.Author == "" {
		return fmt.Errorf("author is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	author,
	succeeded,
	publications,
	blob_uri,
	blob_hash,
	error,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		o.RunID,
		o.Author,
		o.Succeeded,
		o.Publications,
		o.BlobURI,
		o.BlobHash,
		o.Error,
		o.StartedAt,
		o.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}
