package haven

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteBackendConfig configures the SQLite snapshot backend.
type SQLiteBackendConfig struct {
	// Path to the SQLite database file.
	Path string

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, ...).
	JournalMode string

	// BusyTimeout is the lock acquisition timeout in milliseconds.
	BusyTimeout int
}

// DefaultSQLiteBackendConfig returns default configuration.
func DefaultSQLiteBackendConfig(path string) SQLiteBackendConfig {
	return SQLiteBackendConfig{
		Path:        path,
		JournalMode: "WAL",
		BusyTimeout: 5000,
	}
}

// SQLiteBackend implements BlobBackend on a SQLite database, which also
// hosts the persistent notification log. This keeps one monitoring group's
// durable state in a single inspectable file.
type SQLiteBackend struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteBackend opens (and if needed initializes) a SQLite-backed store.
func NewSQLiteBackend(config SQLiteBackendConfig) (*SQLiteBackend, error) {
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)",
		config.Path, config.JournalMode, config.BusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			dedup_id   TEXT NOT NULL UNIQUE,
			category   TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_category
			ON notifications(category)`,
	}
	for _, stmt := range schema {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Read(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", key, err)
	}
	return data, nil
}

func (b *SQLiteBackend) Write(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrStoreClosed
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write snapshot %q: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrStoreClosed
	}

	var one int
	err := b.db.QueryRowContext(ctx, `SELECT 1 FROM snapshots WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// RecordNotification upserts a notification by dedup id, so a re-sent
// identical alert overwrites its previous record rather than duplicating.
func (b *SQLiteBackend) RecordNotification(ctx context.Context, rec NotificationRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrStoreClosed
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO notifications (id, dedup_id, category, title, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_id) DO UPDATE SET
			id = excluded.id,
			category = excluded.category,
			title = excluded.title,
			message = excluded.message,
			created_at = excluded.created_at`,
		rec.ID, rec.DedupID, rec.Category, rec.Title, rec.Message,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// Notifications lists recorded notifications, newest first.
func (b *SQLiteBackend) Notifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT id, dedup_id, category, title, message, created_at
		FROM notifications ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []NotificationRecord
	for rows.Next() {
		var rec NotificationRecord
		var created string
		if err := rows.Scan(&rec.ID, &rec.DedupID, &rec.Category, &rec.Title, &rec.Message, &created); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
