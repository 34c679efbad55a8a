package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS room_snapshots (
	code TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL,
	payload TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLite stores snapshots in an embedded database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createSnapshotsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create room_snapshots: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) ([]snapshot.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, expires_at, payload FROM room_snapshots ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query room_snapshots: %w", err)
	}
	defer rows.Close()

	var records []snapshot.Record
	for rows.Next() {
		var (
			rec     snapshot.Record
			payload string
		)
		if err := rows.Scan(&rec.Code, &rec.ExpiresAt, &payload); err != nil {
			return nil, fmt.Errorf("scan room_snapshots: %w", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read room_snapshots: %w", err)
	}
	return records, nil
}

func (s *SQLite) Save(ctx context.Context, records []snapshot.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_snapshots`); err != nil {
		return fmt.Errorf("clear room_snapshots: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO room_snapshots (code, expires_at, payload, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Code, rec.ExpiresAt, string(rec.Payload), now); err != nil {
			return fmt.Errorf("insert %s: %w", rec.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
