package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"TenderScan/internal/ports"
)

//go:embed schema.sql
var schema string

// Store persists stage results in sqlite keyed by (stage, fingerprint).
// Get tolerates cold starts and corrupted rows by reporting a miss.
type Store struct {
	db     *sql.DB
	flight singleflight.Group
}

var _ ports.CacheStore = (*Store)(nil)

// Open creates or opens the cache database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	// Writers from the worker pool serialize on a single connection;
	// sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the payload for (stage, fingerprint). The bool is false on a
// miss; a corrupted entry is deleted and reported as a miss, never as an
// error.
func (s *Store) Get(ctx context.Context, stage, fp string) ([]byte, bool, error) {
	query, args, err := sq.Select("payload").
		From("cache_entries").
		Where(sq.Eq{"stage": stage, "fingerprint": fp}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build get query: %w", err)
	}

	var payload []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cache get %s/%s: %w", stage, fp, err)
	}

	if len(payload) == 0 {
		// Corrupted write; drop it so the stage recomputes.
		s.evict(ctx, stage, fp)
		return nil, false, nil
	}

	return payload, true, nil
}

// Put stores or replaces the payload for (stage, fingerprint).
func (s *Store) Put(ctx context.Context, stage, fp string, payload []byte) error {
	query, args, err := sq.Insert("cache_entries").
		Columns("stage", "fingerprint", "payload", "created_at").
		Values(stage, fp, payload, time.Now().UTC()).
		Suffix("ON CONFLICT (stage, fingerprint) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build put query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("cache put %s/%s: %w", stage, fp, err)
	}

	return nil
}

// Do returns the cached payload or runs compute exactly once per
// (stage, fingerprint) across concurrent callers, storing the result.
func (s *Store) Do(ctx context.Context, stage, fp string, compute func() ([]byte, error)) ([]byte, error) {
	key := stage + "/" + fp

	payload, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok, err := s.Get(ctx, stage, fp); err != nil {
			return nil, err
		} else if ok {
			return cached, nil
		}

		computed, err := compute()
		if err != nil {
			return nil, err
		}

		if err := s.Put(ctx, stage, fp, computed); err != nil {
			return nil, err
		}

		return computed, nil
	})
	if err != nil {
		return nil, err
	}

	return payload.([]byte), nil
}

// Reset clears all cache entries and the visited set, equivalent to a
// requested full re-run.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM visited_tenders"); err != nil {
		return fmt.Errorf("reset visited: %w", err)
	}
	return nil
}

// Visited reports whether the tender was already processed in an earlier
// run.
func (s *Store) Visited(ctx context.Context, sourceID string) (bool, error) {
	query, args, err := sq.Select("1").
		From("visited_tenders").
		Where(sq.Eq{"source_id": sourceID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build visited query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("visited %s: %w", sourceID, err)
	}
	return true, nil
}

// MarkVisited records that the tender has been processed.
func (s *Store) MarkVisited(ctx context.Context, sourceID, portal string) error {
	query, args, err := sq.Insert("visited_tenders").
		Columns("source_id", "portal", "visited_at").
		Values(sourceID, portal, time.Now().UTC()).
		Suffix("ON CONFLICT (source_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build visited insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark visited %s: %w", sourceID, err)
	}
	return nil
}

func (s *Store) evict(ctx context.Context, stage, fp string) {
	query, args, err := sq.Delete("cache_entries").
		Where(sq.Eq{"stage": stage, "fingerprint": fp}).
		ToSql()
	if err != nil {
		return
	}
	_, _ = s.db.ExecContext(ctx, query, args...)
}
