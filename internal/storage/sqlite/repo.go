package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"docgen/internal/storage"
)

// Repo implements storage.RunRepository for SQLite.
//
// SQLite has no native timestamp type. started_at is stored as fixed-width
// UTC text (tsLayout) so ORDER BY sorts chronologically.
type Repo struct {
	db *sql.DB
}

const tsLayout = "2006-01-02T15:04:05.000000000Z"

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN (e.g. "file:runs.db" or ":memory:").
func New(ctx context.Context, cfg storage.Config) (storage.RunRepository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// Single connection: writers queue, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTables(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + storage.Table + ` (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	template TEXT NOT NULL,
	report TEXT NOT NULL,
	guid TEXT NOT NULL DEFAULT '',
	pages INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", storage.Table, err)
	}
	return nil
}

func (r *Repo) InsertRun(ctx context.Context, run storage.Run) error {
	vals := run.Values()
	vals[1] = run.StartedAt.UTC().Format(tsLayout)

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		storage.Table,
		strings.Join(storage.Columns, ", "),
		strings.TrimRight(strings.Repeat("?,", len(vals)), ","),
	)
	if _, err := r.db.ExecContext(ctx, q, vals...); err != nil {
		return fmt.Errorf("sqlite: insert run %s: %w", run.ID, err)
	}
	return nil
}

func (r *Repo) RecentRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY started_at DESC, id LIMIT ?`, strings.Join(storage.Columns, ", "), storage.Table)
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Run
	for rows.Next() {
		var (
			id, started, template, report, guid, status, errText string
			pages, durationMS                                    int64
		)
		if err := rows.Scan(&id, &started, &template, &report, &guid, &pages, &durationMS, &status, &errText); err != nil {
			return nil, err
		}
		ts, err := time.Parse(tsLayout, started)
		if err != nil {
			return nil, fmt.Errorf("sqlite: run %s: started_at %q: %w", id, started, err)
		}
		run, err := storage.ScanRun(id, ts, template, report, guid, pages, durationMS, status, errText)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
