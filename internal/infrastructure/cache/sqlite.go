package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/powderchaser/backend/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	entity_type TEXT    NOT NULL,
	cache_key   TEXT    NOT NULL,
	payload     BLOB    NOT NULL,
	cached_at   INTEGER NOT NULL,
	PRIMARY KEY (entity_type, cache_key)
)`

// SQLiteStore is a durable CacheStore backed by a single sqlite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers anyway, and an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, entity domain.EntityType, key string) (*domain.CacheEntry, error) {
	query := `
		SELECT payload, cached_at
		FROM cache_entries
		WHERE entity_type = ? AND cache_key = ?`

	var (
		payload  []byte
		cachedAt int64
	)
	err := s.db.QueryRowContext(ctx, query, string(entity), key).Scan(&payload, &cachedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: sqlite get: %v", domain.ErrCacheUnavailable, err)
	}

	return &domain.CacheEntry{
		EntityType: entity,
		Key:        key,
		Payload:    payload,
		CachedAt:   time.Unix(0, cachedAt).UTC(),
	}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	query := `
		INSERT INTO cache_entries (entity_type, cache_key, payload, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_type, cache_key)
		DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`

	_, err := s.db.ExecContext(ctx, query,
		string(entry.EntityType), entry.Key, entry.Payload, entry.CachedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: sqlite upsert: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context, entity domain.EntityType) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE entity_type = ?`, string(entity)); err != nil {
		return fmt.Errorf("%w: sqlite delete: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, entity domain.EntityType, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE entity_type = ? AND cached_at < ?`,
		string(entity), before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: sqlite delete: %v", domain.ErrCacheUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: sqlite rows affected: %v", domain.ErrCacheUnavailable, err)
	}
	return int(n), nil
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
