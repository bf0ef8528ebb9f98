package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docgen/internal/storage"
)

/*
Repo implements storage.RunRepository for Postgres.

The pool is shared by every performance worker; pgxpool hands out one
connection per in-flight insert.
*/
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed Repo from a pgx connection string.
func New(ctx context.Context, cfg storage.Config) (storage.RunRepository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) EnsureTables(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", storage.Table, err)
	}
	return nil
}

func (r *Repo) InsertRun(ctx context.Context, run storage.Run) error {
	if _, err := r.pool.Exec(ctx, insertSQL(), run.Values()...); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	return nil
}

func (r *Repo) RecentRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	rows, err := r.pool.Query(ctx, recentSQL(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Run, error) {
		var (
			id, template, report, guid, status, errText string
			started                                     time.Time
			pages, durationMS                           int64
		)
		if err := row.Scan(&id, &started, &template, &report, &guid, &pages, &durationMS, &status, &errText); err != nil {
			return storage.Run{}, err
		}
		return storage.ScanRun(id, started, template, report, guid, pages, durationMS, status, errText)
	})
}

func createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + pgIdent(storage.Table) + ` (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	template TEXT NOT NULL,
	report TEXT NOT NULL,
	guid TEXT NOT NULL DEFAULT '',
	pages INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
)`
}

// insertSQL numbers one placeholder per column: ($1, $2, ...).
func insertSQL() string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(storage.Table))
	b.WriteString(" (")
	for i, c := range storage.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range storage.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(i + 1))
	}
	b.WriteString(")")
	return b.String()
}

// recentSQL casts id back to text so Scan can target a string.
func recentSQL() string {
	cols := make([]string, len(storage.Columns))
	for i, c := range storage.Columns {
		cols[i] = pgIdent(c)
		if c == "id" {
			cols[i] += "::text"
		}
	}
	return fmt.Sprintf(`SELECT %s FROM %s ORDER BY started_at DESC, id LIMIT $1`, strings.Join(cols, ", "), pgIdent(storage.Table))
}

// pgIdent quotes an identifier for Postgres.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
