package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/pricegraph/internal/models"
)

var lookupSchema = []string{
	`CREATE TABLE IF NOT EXISTS lookup_history (
	id         UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	ticker     TEXT NOT NULL,
	fields     TEXT[] NOT NULL,
	outcome    TEXT NOT NULL,
	row_count  INTEGER NOT NULL DEFAULT 0,
	status     INTEGER NOT NULL DEFAULT 0,
	provider   TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_lookup_history_created ON lookup_history (created_at DESC)`,
}

type LookupRepo struct {
	pool *pgxpool.Pool
}

func NewLookupRepo(pool *pgxpool.Pool) *LookupRepo {
	return &LookupRepo{pool: pool}
}

// EnsureSchema creates the lookup_history table if it does not exist.
func (r *LookupRepo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range lookupSchema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *LookupRepo) RecordLookup(ctx context.Context, l *models.Lookup) error {
	fields := l.Fields
	if fields == nil {
		fields = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO lookup_history (id, created_at, ticker, fields, outcome, row_count, status, provider)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.CreatedAt, l.Ticker, fields, l.Outcome, l.Rows, l.Status, l.Provider,
	)
	return err
}

func (r *LookupRepo) Recent(ctx context.Context, limit int) ([]models.Lookup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, created_at, ticker, fields, outcome, row_count, status, provider
		 FROM lookup_history ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLookups(rows)
}

func (r *LookupRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lookup_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *LookupRepo) Backend() string { return "postgres" }

// --- scan helpers ---

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectLookups(rows rowsIter) ([]models.Lookup, error) {
	var out []models.Lookup
	for rows.Next() {
		var l models.Lookup
		if err := rows.Scan(&l.ID, &l.CreatedAt, &l.Ticker, &l.Fields, &l.Outcome, &l.Rows, &l.Status, &l.Provider); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
