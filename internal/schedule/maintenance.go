package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// DefaultCleanupBatch caps how many ledger entries one maintenance run
// touches, to keep the Lambda inside its execution budget.
const DefaultCleanupBatch = 5000

// LedgerEntry is one row of the notification ledger as seen by maintenance.
type LedgerEntry struct {
	Key       string    `json:"key"`
	SentAt    time.Time `json:"sent_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LedgerMaintenanceDB defines the ledger operations the cleanup service
// needs. The scanner's Ledger interface stays narrow; expiry bookkeeping is
// a maintenance-only concern.
type LedgerMaintenanceDB interface {
	// ListExpiredEntries returns entries with expires_at < cutoff, oldest
	// first, up to limit.
	ListExpiredEntries(ctx context.Context, cutoff time.Time, limit int) ([]LedgerEntry, error)

	// DeleteEntriesByKey removes entries by key and returns the count deleted.
	DeleteEntriesByKey(ctx context.Context, keys []string) (int, error)
}

// Archiver uploads a serialized batch to cold storage before deletion.
type Archiver interface {
	UploadArchive(ctx context.Context, key string, data []byte) error
}

// LedgerCleanupService purges expired idempotency-ledger entries. Entries
// expire well after their due date has passed (the key space retires itself
// on recurrence rollover), so deletion is pure retention hygiene; archiving
// keeps an audit trail of what was sent.
type LedgerCleanupService struct {
	db       LedgerMaintenanceDB
	archiver Archiver // nil skips archival
	logger   *slog.Logger
}

// NewLedgerCleanupService creates a LedgerCleanupService. The archiver may
// be nil when cold storage is not configured.
func NewLedgerCleanupService(db LedgerMaintenanceDB, archiver Archiver, logger *slog.Logger) *LedgerCleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerCleanupService{db: db, archiver: archiver, logger: logger}
}

// PurgeExpired archives (when configured) and deletes ledger entries whose
// expires_at has passed. Returns the number of entries deleted. An archive
// failure aborts the run without deleting anything, so no sent-notification
// record is lost.
func (c *LedgerCleanupService) PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultCleanupBatch
	}

	entries, err := c.db.ListExpiredEntries(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("listing expired ledger entries: %w", err)
	}

	if len(entries) == 0 {
		c.logger.InfoContext(ctx, "no expired ledger entries")
		return 0, nil
	}

	if c.archiver != nil {
		key := fmt.Sprintf("ledger/%s/batch_%s.jsonl.gz",
			now.UTC().Format("2006/01"), uuid.New().String())
		data, err := encodeArchive(entries)
		if err != nil {
			return 0, fmt.Errorf("encoding ledger archive: %w", err)
		}
		if err := c.archiver.UploadArchive(ctx, key, data); err != nil {
			return 0, fmt.Errorf("uploading ledger archive: %w", err)
		}
		c.logger.InfoContext(ctx, "archived expired ledger entries",
			"archive_key", key,
			"count", len(entries),
		)
	}

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}

	deleted, err := c.db.DeleteEntriesByKey(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("deleting expired ledger entries: %w", err)
	}

	c.logger.InfoContext(ctx, "ledger cleanup complete",
		"deleted", deleted,
		"cutoff", now.Format(time.RFC3339),
	)

	return deleted, nil
}

// encodeArchive serializes entries as gzip-compressed JSON Lines.
func encodeArchive(entries []LedgerEntry) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			gz.Close()
			return nil, err
		}
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
