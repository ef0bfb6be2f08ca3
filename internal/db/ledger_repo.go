package db

import (
	"context"
	"time"

	"bubbletasks/internal/schedule"
	"bubbletasks/internal/types"
)

// DefaultLedgerRetention is how long a ledger entry stays queryable after
// it is written. Long enough that no live firing window could ever see the
// key missing; short enough that the table does not grow forever.
const DefaultLedgerRetention = 30 * 24 * time.Hour

// LedgerRepository is the Postgres-backed idempotency ledger. The key is
// the primary key, so MarkFired relies on ON CONFLICT DO NOTHING for its
// write-twice-is-a-no-op contract.
type LedgerRepository struct {
	db        DBTX
	retention time.Duration
}

// NewLedgerRepository creates a LedgerRepository. A non-positive retention
// falls back to DefaultLedgerRetention.
func NewLedgerRepository(db DBTX, retention time.Duration) *LedgerRepository {
	if retention <= 0 {
		retention = DefaultLedgerRetention
	}
	return &LedgerRepository{db: db, retention: retention}
}

// HasFired reports whether the key has already been recorded.
func (r *LedgerRepository) HasFired(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notification_ledger WHERE key = $1)`,
		key,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalLedger, "failed to read ledger", err)
	}
	return exists, nil
}

// MarkFired records the key. Re-marking an existing key is a silent no-op.
func (r *LedgerRepository) MarkFired(ctx context.Context, key string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_ledger (key, sent_at, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`,
		key, at, at.Add(r.retention),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalLedger, "failed to write ledger", err)
	}
	return nil
}

// ListExpiredEntries returns up to limit entries whose expiry is before
// the cutoff, oldest first.
func (r *LedgerRepository) ListExpiredEntries(ctx context.Context, cutoff time.Time, limit int) ([]schedule.LedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT key, sent_at, expires_at
		 FROM notification_ledger
		 WHERE expires_at < $1
		 ORDER BY expires_at
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalLedger, "failed to list expired ledger entries", err)
	}
	defer rows.Close()

	var entries []schedule.LedgerEntry
	for rows.Next() {
		var e schedule.LedgerEntry
		if err := rows.Scan(&e.Key, &e.SentAt, &e.ExpiresAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalLedger, "failed to scan ledger row", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalLedger, "error iterating ledger rows", err)
	}

	return entries, nil
}

// DeleteEntriesByKey removes the given keys and reports how many rows
// were actually deleted.
func (r *LedgerRepository) DeleteEntriesByKey(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notification_ledger WHERE key = ANY($1)`,
		keys,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalLedger, "failed to delete ledger entries", err)
	}
	return int(tag.RowsAffected()), nil
}
