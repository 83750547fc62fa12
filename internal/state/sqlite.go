package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/utils"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sync_state (
	stream     TEXT PRIMARY KEY,
	watermark  TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore keeps the watermarks in a single-table SQLite database.
// Each Save is one transaction.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("state: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 10000",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("state: %s: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Watermarks, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT stream, watermark FROM sync_state")
	if err != nil {
		return nil, fmt.Errorf("state: load: %w", err)
	}
	defer rows.Close()

	w := Watermarks{}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("state: scan: %w", err)
		}
		stream, err := models.ParseStream(name)
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
		t, err := utils.ConvertDateTime(raw)
		if err != nil {
			return nil, fmt.Errorf("state: stream %s: %w", name, err)
		}
		w[stream] = t
	}
	return w, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, w Watermarks) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: begin tx: %w", err)
	}
	now := formatTime(time.Now())
	for stream, t := range w {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_state (stream, watermark, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(stream) DO UPDATE SET watermark = excluded.watermark, updated_at = excluded.updated_at`,
			string(stream), formatTime(t), now)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("state: save %s: %w", stream, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
