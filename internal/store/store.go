package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/handiism/bandcamp-purchases/internal/model"
)

// PurchasesKey is the cache entry holding the last completed scrape.
const PurchasesKey = "bandcamp-purchases"

// ErrNotFound is returned when a key has no cached value.
var ErrNotFound = errors.New("cache entry not found")

// Run is one recorded scrape attempt.
type Run struct {
	ID           string
	FanID        string
	Status       model.Status
	ItemsFetched int
	PagesFetched int
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store is the local cache: a small key-value table plus a scrape history.
type Store struct {
	db *sql.DB
}

// New constructs a Store over an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init applies the cache schema.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scrape_runs (
			id TEXT PRIMARY KEY,
			fan_id TEXT NOT NULL,
			status TEXT NOT NULL,
			items_fetched INTEGER NOT NULL DEFAULT 0,
			pages_fetched INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(started_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply cache schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	row := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// SaveRows replaces the cached purchase rows.
func (s *Store) SaveRows(ctx context.Context, rows []model.PurchaseRow) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	return s.Put(ctx, PurchasesKey, data)
}

// LoadRows returns the cached purchase rows, or ErrNotFound.
func (s *Store) LoadRows(ctx context.Context) ([]model.PurchaseRow, error) {
	data, err := s.Get(ctx, PurchasesKey)
	if err != nil {
		return nil, err
	}
	var rows []model.PurchaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode cached rows: %w", err)
	}
	return rows, nil
}

// ClearRows removes the cached purchase rows.
func (s *Store) ClearRows(ctx context.Context) error {
	return s.Delete(ctx, PurchasesKey)
}

// RecordRun inserts or updates a scrape run.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs(id, fan_id, status, items_fetched, pages_fetched, error, started_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status,
			items_fetched = excluded.items_fetched,
			pages_fetched = excluded.pages_fetched,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		run.ID, run.FanID, string(run.Status), run.ItemsFetched, run.PagesFetched, run.Error,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent scrape runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fan_id, status, items_fetched, pages_fetched, error, started_at, finished_at
		 FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			status            string
			started, finished int64
		)
		if err := rows.Scan(&run.ID, &run.FanID, &status, &run.ItemsFetched, &run.PagesFetched,
			&run.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = model.Status(status)
		run.StartedAt = time.UnixMilli(started)
		run.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter runs: %w", err)
	}
	return runs, nil
}
