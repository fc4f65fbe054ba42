package sqlite

import (
	"context"
	"strings"
	"time"

	educache "github.com/openedu/educache/internal"
)

// InsertUsage batch-inserts usage records.
func (s *Store) InsertUsage(ctx context.Context, records []educache.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Single multi-row INSERT avoids N round-trips for large batches.
	placeholders := make([]string, len(records))
	args := make([]any, 0, len(records)*6)

	for i, r := range records {
		placeholders[i] = "(?, ?, ?, ?, ?, ?)"
		args = append(args,
			r.ID, r.Provider, r.Operation, string(r.Outcome),
			r.LatencyMs, fmtTime(r.CreatedAt),
		)
	}

	query := `INSERT INTO usage_records (id, provider, operation, outcome, latency_ms, created_at)
		VALUES ` + strings.Join(placeholders, ", ")

	_, err := s.write.ExecContext(ctx, query, args...)
	return err
}

// AggregateUsage summarizes records created at or after since.
func (s *Store) AggregateUsage(ctx context.Context, since time.Time) (*educache.UsageSummary, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT outcome, COUNT(*), COALESCE(SUM(latency_ms), 0)
		 FROM usage_records WHERE created_at >= ? GROUP BY outcome`,
		fmtTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sum := &educache.UsageSummary{Counts: make(map[educache.Outcome]int64)}
	var totalLatency int64
	for rows.Next() {
		var (
			outcome string
			count   int64
			latency int64
		)
		if err := rows.Scan(&outcome, &count, &latency); err != nil {
			return nil, err
		}
		sum.Counts[educache.Outcome(outcome)] = count
		sum.Total += count
		totalLatency += latency
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sum.Total > 0 {
		sum.HitRate = float64(sum.Counts[educache.OutcomeHit]) / float64(sum.Total)
		sum.ThrottleRate = float64(sum.Counts[educache.OutcomeThrottled]) / float64(sum.Total)
		sum.AvgLatencyMs = float64(totalLatency) / float64(sum.Total)
	}
	return sum, nil
}

// PruneUsage deletes records created before the cutoff.
func (s *Store) PruneUsage(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM usage_records WHERE created_at < ?`,
		fmtTime(cutoff),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// QueryUsage returns records created within [since, until), newest first.
func (s *Store) QueryUsage(ctx context.Context, since, until time.Time, limit int) ([]educache.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, provider, operation, outcome, latency_ms, created_at
		 FROM usage_records WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at DESC LIMIT ?`,
		fmtTime(since), fmtTime(until), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []educache.UsageRecord
	for rows.Next() {
		var (
			r         educache.UsageRecord
			outcome   string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.Provider, &r.Operation, &outcome, &r.LatencyMs, &createdAt); err != nil {
			return nil, err
		}
		r.Outcome = educache.Outcome(outcome)
		if t, e := parseTime(createdAt); e == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertRollup inserts or replaces usage rollup records in a single
// transaction with a prepared statement. A recomputed bucket replaces the
// stored one, so re-rolling the same window is idempotent.
func (s *Store) UpsertRollup(ctx context.Context, rollups []educache.UsageRollup) error {
	if len(rollups) == 0 {
		return nil
	}
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO usage_rollups (provider, operation, outcome, period, bucket, request_count, total_latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, operation, outcome, period, bucket) DO UPDATE SET
		 request_count = excluded.request_count,
		 total_latency_ms = excluded.total_latency_ms`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rollups {
		if _, err := stmt.ExecContext(ctx,
			r.Provider, r.Operation, r.Outcome, r.Period, r.Bucket,
			r.RequestCount, r.TotalLatencyMs,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// QueryRollups returns rollups for a provider with buckets at or after since.
// An empty provider matches all providers.
func (s *Store) QueryRollups(ctx context.Context, provider string, since time.Time) ([]educache.UsageRollup, error) {
	query := `SELECT provider, operation, outcome, period, bucket, request_count, total_latency_ms
		 FROM usage_rollups WHERE bucket >= ?`
	args := []any{since.UTC().Truncate(time.Hour).Format(time.RFC3339)}
	if provider != "" {
		query += ` AND provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY bucket DESC`

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []educache.UsageRollup
	for rows.Next() {
		var r educache.UsageRollup
		if err := rows.Scan(&r.Provider, &r.Operation, &r.Outcome, &r.Period, &r.Bucket,
			&r.RequestCount, &r.TotalLatencyMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
