package pendingsqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/markhub/classifier/internal/core/domain"
)

const (
	// PendingKey is the current storage key for buffered captures.
	PendingKey = "markhub_pending_ai_bookmarks"

	// legacyPendingKey is the key older installs wrote under. It is
	// read once, merged into PendingKey and then removed.
	legacyPendingKey = "pendingBookmarks"
)

// Store buffers bookmark captures in a single-table key/value layout
// so the on-disk shape matches what older installs already have.
// Records leave the store only after acknowledged delivery.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already-open handle. The schema must exist.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS storage_blobs (
			key TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Append(ctx context.Context, b domain.PendingBookmark) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	pending, err := readMerged(ctx, tx)
	if err != nil {
		return err
	}

	key := b.DedupKey()
	replaced := false
	for i := range pending {
		if pending[i].DedupKey() == key {
			pending[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		pending = append(pending, b)
	}

	if err := writePending(ctx, tx, pending); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Drain hands every buffered record to send and removes exactly those
// for which send returned nil. The removal re-reads the live list, so
// records appended while sends were in flight survive.
func (s *Store) Drain(ctx context.Context, send func(domain.PendingBookmark) error) (int, int, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(snapshot) == 0 {
		return 0, 0, nil
	}

	acked := make(map[string]bool, len(snapshot))
	for _, record := range snapshot {
		if err := send(record); err != nil {
			slog.Warn("pending_drain_send_failed",
				"url", record.URL,
				"error", err,
			)
			continue
		}
		acked[record.DedupKey()] = true
	}

	remaining, err := s.removeAcked(ctx, acked)
	if err != nil {
		return len(acked), 0, err
	}
	return len(acked), remaining, nil
}

func (s *Store) snapshot(ctx context.Context) ([]domain.PendingBookmark, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin drain snapshot: %w", err)
	}
	defer tx.Rollback()

	pending, err := readMerged(ctx, tx)
	if err != nil {
		return nil, err
	}
	// Persist the legacy merge so the old key disappears even when
	// every send below fails.
	if err := writePending(ctx, tx, pending); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drain snapshot: %w", err)
	}
	return pending, nil
}

func (s *Store) removeAcked(ctx context.Context, acked map[string]bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin drain removal: %w", err)
	}
	defer tx.Rollback()

	pending, err := readMerged(ctx, tx)
	if err != nil {
		return 0, err
	}

	kept := pending[:0]
	for _, record := range pending {
		if !acked[record.DedupKey()] {
			kept = append(kept, record)
		}
	}

	if err := writePending(ctx, tx, kept); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit drain removal: %w", err)
	}
	return len(kept), nil
}

func readMerged(ctx context.Context, tx *sql.Tx) ([]domain.PendingBookmark, error) {
	current, _, err := readKey(ctx, tx, PendingKey)
	if err != nil {
		return nil, err
	}

	legacy, found, err := readKey(ctx, tx, legacyPendingKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return current, nil
	}
	slog.Info("pending_legacy_key_migrated", "count", len(legacy))

	// The current key wins on collisions; it holds the newer write.
	seen := make(map[string]bool, len(current))
	for _, record := range current {
		seen[record.DedupKey()] = true
	}
	for _, record := range legacy {
		if !seen[record.DedupKey()] {
			current = append(current, record)
		}
	}
	return current, nil
}

func readKey(ctx context.Context, tx *sql.Tx, key string) ([]domain.PendingBookmark, bool, error) {
	var raw string
	err := tx.QueryRowContext(ctx, "SELECT value FROM storage_blobs WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}

	var pending []domain.PendingBookmark
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return pending, true, nil
}

func writePending(ctx context.Context, tx *sql.Tx, pending []domain.PendingBookmark) error {
	if pending == nil {
		pending = []domain.PendingBookmark{}
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending list: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO storage_blobs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		PendingKey, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", PendingKey, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM storage_blobs WHERE key = ?", legacyPendingKey); err != nil {
		return fmt.Errorf("remove legacy key: %w", err)
	}
	return nil
}
