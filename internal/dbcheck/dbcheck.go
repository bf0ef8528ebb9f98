// Package dbcheck pings the SQL datasources of a job from this machine
// before the job is sent to the engine.
//
// Only connectors with a Go driver mapping are checked (postgresql and
// redshift through pgx, sql through go-mssqldb). Everything else is reported
// as skipped.
package dbcheck

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"

	"docgen/internal/cmdline"
	"docgen/internal/drivers"
)

// Status is the outcome of one check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result describes one checked datasource.
type Result struct {
	// Name is the datasource name; empty for the default datasource.
	Name    string
	Driver  string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// PingFunc opens dsn and verifies the server answers.
type PingFunc func(ctx context.Context, dsn string) error

// Checker pings SQL datasources. The zero value uses the real drivers and
// a 10s timeout per datasource.
type Checker struct {
	Timeout time.Duration

	// Pingers replaces the built-in ping per probe kind. Kinds missing from
	// a non-nil map are skipped.
	Pingers map[drivers.ProbeKind]PingFunc
}

// DefaultTimeout bounds each ping when Checker.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Check pings every SQL datasource in job, in order. Non-SQL datasources
// are ignored.
func (c *Checker) Check(ctx context.Context, job *cmdline.Job) []Result {
	var out []Result
	for _, ds := range job.Datasources {
		s, ok := ds.(*cmdline.SQL)
		if !ok {
			continue
		}
		out = append(out, c.Ping(ctx, s))
	}
	return out
}

// Ping checks one SQL datasource.
func (c *Checker) Ping(ctx context.Context, ds *cmdline.SQL) Result {
	res := Result{Name: ds.Name, Driver: ds.Driver.Name}

	ping := c.pinger(ds.Driver.Probe)
	if ping == nil {
		res.Status = StatusSkipped
		return res
	}
	dsn, err := drivers.ToDSN(ds.Driver.Probe, ds.ConnectionString, ds.Username, ds.Password)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err = ping(ctx, dsn)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.Err = errors.Wrapf(err, "%s datasource %q", ds.Driver.Name, ds.Name)
		return res
	}
	res.Status = StatusOK
	return res
}

func (c *Checker) pinger(kind drivers.ProbeKind) PingFunc {
	if c.Pingers != nil {
		return c.Pingers[kind]
	}
	switch kind {
	case drivers.ProbePostgres:
		return pingPostgres
	case drivers.ProbeSQLServer:
		return pingSQLServer
	default:
		return nil
	}
}

func pingPostgres(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.WithoutCancel(ctx))
	return conn.Ping(ctx)
}

func pingSQLServer(ctx context.Context, dsn string) error {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
