package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/kjannette/pricegraph/internal/models"
)

// SQLiteRecorder persists the lookup history to a local SQLite file.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lookups (
			id         TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			ticker     TEXT NOT NULL,
			fields     TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			row_count  INTEGER NOT NULL DEFAULT 0,
			status     INTEGER NOT NULL DEFAULT 0,
			provider   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lookups_created ON lookups(created_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordLookup(ctx context.Context, l *models.Lookup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fields, err := json.Marshal(l.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO lookups
		(id, created_at, ticker, fields, outcome, row_count, status, provider)
		VALUES (?,?,?,?,?,?,?,?)`,
		l.ID, l.CreatedAt.UnixMilli(), l.Ticker, string(fields),
		l.Outcome, l.Rows, l.Status, l.Provider,
	)
	return err
}

func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]models.Lookup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, created_at, ticker, fields, outcome, row_count, status, provider
		FROM lookups ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lookup
	for rows.Next() {
		var (
			l      models.Lookup
			ms     int64
			fields string
		)
		if err := rows.Scan(&l.ID, &ms, &l.Ticker, &fields, &l.Outcome, &l.Rows, &l.Status, &l.Provider); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &l.Fields); err != nil {
			return nil, fmt.Errorf("decode fields for %s: %w", l.ID, err)
		}
		l.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM lookups WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRecorder) Backend() string { return "sqlite" }

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
