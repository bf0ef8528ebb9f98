package storage

import (
	"time"

	"github.com/google/uuid"
)

// Table is the name of the runs table in every backend.
const Table = "report_runs"

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Run is one report generation as seen by the client.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	Template  string
	Report    string
	// Guid is the engine's tracking id; empty when submission failed.
	Guid     string
	Pages    int
	Duration time.Duration
	Status   string
	Error    string
}

// Columns is the insert column order shared by all backends.
var Columns = []string{"id", "started_at", "template", "report", "guid", "pages", "duration_ms", "status", "error"}

// NewRun returns a Run with a fresh ID.
func NewRun(started time.Time, template, report string) Run {
	return Run{
		ID:        uuid.New(),
		StartedAt: started.UTC(),
		Template:  template,
		Report:    report,
	}
}

// Values returns the row in Columns order. The ID is rendered as its
// canonical string so every backend stores the same text.
func (r Run) Values() []any {
	return []any{
		r.ID.String(),
		r.StartedAt.UTC(),
		r.Template,
		r.Report,
		r.Guid,
		int64(r.Pages),
		r.Duration.Milliseconds(),
		r.Status,
		r.Error,
	}
}

// Finish fills the outcome fields.
func (r *Run) Finish(guid string, pages int, d time.Duration, err error) {
	r.Guid = guid
	r.Pages = pages
	r.Duration = d
	if err != nil {
		r.Status = StatusError
		r.Error = err.Error()
		return
	}
	r.Status = StatusOK
	r.Error = ""
}

// ScanRun rebuilds a Run from stored column values in Columns order.
func ScanRun(id string, started time.Time, template, report, guid string, pages, durationMS int64, status, errText string) (Run, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:        u,
		StartedAt: started.UTC(),
		Template:  template,
		Report:    report,
		Guid:      guid,
		Pages:     int(pages),
		Duration:  time.Duration(durationMS) * time.Millisecond,
		Status:    status,
		Error:     errText,
	}, nil
}
