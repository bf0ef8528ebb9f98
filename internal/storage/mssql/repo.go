package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"docgen/internal/storage"
)

// Repo implements storage.RunRepository for Microsoft SQL Server.
//
// Schema notes:
//   - id is UNIQUEIDENTIFIER; it is read back through CONVERT(NVARCHAR(36), id)
//     because the driver returns GUID bytes in mixed-endian order.
//   - started_at is DATETIMEOFFSET(7).
type Repo struct {
	db dbConn
}

func init() {
	storage.Register("sqlserver", New)
}

// New opens a "sqlserver" connection pool for cfg.DSN and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.RunRepository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(16)
	raw.SetMaxIdleConns(16)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: raw}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTables creates the runs table when OBJECT_ID reports it missing.
func (r *Repo) EnsureTables(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", storage.Table, err)
	}
	return nil
}

func (r *Repo) InsertRun(ctx context.Context, run storage.Run) error {
	if _, err := r.db.ExecContext(ctx, insertSQL(), run.Values()...); err != nil {
		return fmt.Errorf("mssql: insert run %s: %w", run.ID, err)
	}
	return nil
}

func (r *Repo) RecentRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, recentSQL(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Run
	for rows.Next() {
		var (
			id, template, report, guid, status, errText string
			started                                     time.Time
			pages, durationMS                           int64
		)
		if err := rows.Scan(&id, &started, &template, &report, &guid, &pages, &durationMS, &status, &errText); err != nil {
			return nil, err
		}
		run, err := storage.ScanRun(strings.ToLower(id), started, template, report, guid, pages, durationMS, status, errText)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func createTableSQL() string {
	return `IF OBJECT_ID(N'dbo.` + storage.Table + `', N'U') IS NULL
CREATE TABLE dbo.` + msIdent(storage.Table) + ` (
	id UNIQUEIDENTIFIER NOT NULL PRIMARY KEY,
	started_at DATETIMEOFFSET(7) NOT NULL,
	template NVARCHAR(1024) NOT NULL,
	report NVARCHAR(1024) NOT NULL,
	guid NVARCHAR(64) NOT NULL DEFAULT '',
	pages INT NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	status NVARCHAR(16) NOT NULL,
	error NVARCHAR(MAX) NOT NULL DEFAULT ''
)`
}

// insertSQL uses the driver's @pN ordinal placeholders.
func insertSQL() string {
	cols := make([]string, len(storage.Columns))
	params := make([]string, len(storage.Columns))
	for i, c := range storage.Columns {
		cols[i] = msIdent(c)
		params[i] = "@p" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO dbo.%s (%s) VALUES (%s)", msIdent(storage.Table), strings.Join(cols, ", "), strings.Join(params, ", "))
}

// recentSQL inlines limit as an integer literal.
func recentSQL(limit int) string {
	cols := make([]string, len(storage.Columns))
	for i, c := range storage.Columns {
		cols[i] = msIdent(c)
		if c == "id" {
			cols[i] = "CONVERT(NVARCHAR(36), " + msIdent(c) + ")"
		}
	}
	return fmt.Sprintf("SELECT TOP (%d) %s FROM dbo.%s ORDER BY started_at DESC, id", limit, strings.Join(cols, ", "), msIdent(storage.Table))
}

// msIdent brackets an identifier for SQL Server.
func msIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

// dbConn is the subset of *sql.DB this file uses.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

var _ dbConn = (*sql.DB)(nil)
