package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"storefront/internal/logging"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB,
	seq        INTEGER NOT NULL,
	writer     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_seq ON kv(seq);
CREATE TABLE IF NOT EXISTS kv_meta (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
INSERT OR IGNORE INTO kv_meta(name, value) VALUES ('seq', 0);
`

// SQLBackend keeps keys in a SQLite table. Several processes may share the
// file; each write carries a global sequence number and the writer id, and
// Watch polls for rows written by someone else. Deletes leave a NULL
// tombstone so watchers can see them.
type SQLBackend struct {
	db       *sql.DB
	path     string
	writer   string
	quota    int64
	interval time.Duration

	mu sync.Mutex
}

// NewSQLBackend opens the database with the given driver: "sqlite" is the
// pure Go driver, "sqlite3" the cgo one.
func NewSQLBackend(driver, path string, quota int64, pollInterval time.Duration) (*SQLBackend, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if driver != "sqlite" && driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	s := &SQLBackend{
		db:       db,
		path:     path,
		writer:   uuid.NewString(),
		quota:    quota,
		interval: pollInterval,
	}
	if s.Persisted() {
		if _, err := db.Exec("PRAGMA synchronous = FULL"); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLBackend) Get(key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ? AND value IS NOT NULL`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, closedOr(err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (s *SQLBackend) Set(key string, raw []byte) error {
	if raw == nil {
		raw = []byte{}
	}
	return s.write(key, raw)
}

func (s *SQLBackend) Delete(key string) error {
	return s.write(key, nil)
}

func (s *SQLBackend) write(key string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return closedOr(err)
	}
	defer tx.Rollback()

	if raw != nil && s.quota > 0 {
		var used, old int64
		if err := tx.QueryRow(`SELECT COALESCE(SUM(length(key) + length(value)), 0) FROM kv WHERE value IS NOT NULL`).Scan(&used); err != nil {
			return err
		}
		if err := tx.QueryRow(`SELECT COALESCE(SUM(length(key) + length(value)), 0) FROM kv WHERE key = ? AND value IS NOT NULL`, key).Scan(&old); err != nil {
			return err
		}
		if exceeds(s.quota, used, old, int64(len(key)+len(raw))) {
			return ErrQuotaExceeded
		}
	}

	if raw == nil {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM kv WHERE key = ? AND value IS NOT NULL`, key).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE kv_meta SET value = value + 1 WHERE name = 'seq'`); err != nil {
		return mapWriteErr(err)
	}
	var seq int64
	if err := tx.QueryRow(`SELECT value FROM kv_meta WHERE name = 'seq'`).Scan(&seq); err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO kv(key, value, seq, writer, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, seq = excluded.seq,
			writer = excluded.writer, updated_at = excluded.updated_at`,
		key, raw, seq, s.writer, time.Now().UnixMilli())
	if err != nil {
		return mapWriteErr(err)
	}
	return mapWriteErr(tx.Commit())
}

func (s *SQLBackend) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv WHERE value IS NOT NULL`)
	if err != nil {
		return nil, closedOr(err)
	}
	defer rows.Close()
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

func (s *SQLBackend) Close() error {
	return s.db.Close()
}

func (s *SQLBackend) Size() (int64, error) {
	var used int64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(length(key) + length(value)), 0) FROM kv WHERE value IS NOT NULL`).Scan(&used)
	return used, closedOr(err)
}

func (s *SQLBackend) Location() string { return filepath.Dir(s.path) }

// Persist switches to full fsync and records the grant in the database.
func (s *SQLBackend) Persist(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous = FULL"); err != nil {
		return false, closedOr(err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_meta(name, value) VALUES ('persisted', ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		time.Now().Unix())
	if err != nil {
		return false, mapWriteErr(err)
	}
	return true, nil
}

func (s *SQLBackend) Persisted() bool {
	var v int64
	err := s.db.QueryRow(`SELECT value FROM kv_meta WHERE name = 'persisted'`).Scan(&v)
	return err == nil
}

// Watch polls for rows written by other processes since the call.
func (s *SQLBackend) Watch(ctx context.Context) (<-chan Change, error) {
	var last int64
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_meta WHERE name = 'seq'`).Scan(&last); err != nil {
		return nil, fmt.Errorf("read sequence: %w", closedOr(err))
	}

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			changes, next, err := s.since(ctx, last)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, ErrClosed) {
					return
				}
				logging.Get(logging.CategoryStore).Warnw("sqlite watch poll failed", "error", err)
				continue
			}
			last = next
			for _, c := range changes {
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *SQLBackend) since(ctx context.Context, after int64) ([]Change, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, seq, writer FROM kv WHERE seq > ? ORDER BY seq`, after)
	if err != nil {
		return nil, after, closedOr(err)
	}
	defer rows.Close()

	var changes []Change
	last := after
	for rows.Next() {
		var (
			key, writer string
			value       []byte
			seq         int64
		)
		if err := rows.Scan(&key, &value, &seq, &writer); err != nil {
			return nil, after, err
		}
		last = seq
		if writer == s.writer {
			continue
		}
		changes = append(changes, Change{Key: key, Value: value})
	}
	return changes, last, rows.Err()
}

func closedOr(err error) error {
	if err != nil && err.Error() == "sql: database is closed" {
		return ErrClosed
	}
	return err
}
