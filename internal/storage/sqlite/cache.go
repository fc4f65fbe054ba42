package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	educache "github.com/openedu/educache/internal"
)

// PutEntry inserts or replaces a cache entry. The single-writer connection
// serializes concurrent writes; WAL keeps readers unblocked meanwhile.
func (s *Store) PutEntry(ctx context.Context, e *educache.CacheEntry) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, created_at, expires_at, size_bytes, compressed)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		 value = excluded.value,
		 created_at = excluded.created_at,
		 expires_at = excluded.expires_at,
		 size_bytes = excluded.size_bytes,
		 compressed = excluded.compressed`,
		e.Key, e.Value,
		fmtTime(e.CreatedAt),
		fmtTime(e.ExpiresAt),
		e.SizeBytes, boolToInt(e.Compressed),
	)
	return err
}

// GetEntry returns the stored entry for key, whether expired or not.
func (s *Store) GetEntry(ctx context.Context, key string) (*educache.CacheEntry, error) {
	var (
		e          educache.CacheEntry
		createdAt  string
		expiresAt  string
		compressed int
	)
	err := s.read.QueryRowContext(ctx,
		`SELECT key, value, created_at, expires_at, size_bytes, compressed
		 FROM cache_entries WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &createdAt, &expiresAt, &e.SizeBytes, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, educache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Compressed = compressed != 0
	if t, perr := parseTime(createdAt); perr == nil {
		e.CreatedAt = t
	}
	if t, perr := parseTime(expiresAt); perr == nil {
		e.ExpiresAt = t
	}
	return &e, nil
}

// DeleteEntry removes a cache entry. Deleting an absent key is not an error.
func (s *Store) DeleteEntry(ctx context.Context, key string) error {
	_, err := s.write.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

// ScanExpired returns up to limit keys whose entries expired before now.
func (s *Store) ScanExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT key FROM cache_entries WHERE expires_at <= ? ORDER BY expires_at LIMIT ?`,
		fmtTime(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKeys(rows)
}

// OldestEntries returns up to limit keys ordered oldest-created-first.
// Rowid breaks creation-time ties, so eviction order is deterministic.
func (s *Store) OldestEntries(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT key FROM cache_entries ORDER BY created_at, rowid LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKeys(rows)
}

// TotalSize returns the sum of stored payload sizes in bytes.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := s.read.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM cache_entries`,
	).Scan(&total)
	return total, err
}

// CountEntries returns the number of stored entries, expired included.
func (s *Store) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n)
	return n, err
}

func scanKeys(rows *sql.Rows) ([]string, error) {
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout keeps the fractional seconds at a fixed nine digits so the TEXT
// columns compare correctly in SQL at sub-second granularity. RFC3339Nano
// trims trailing zeros, which breaks lexicographic ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
