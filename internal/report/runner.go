// Package report runs one RunReport job against the engine: build the
// submission, wait for the document, write it out.
package report

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"docgen/internal/client"
	"docgen/internal/cmdline"
	"docgen/internal/metrics"
	"docgen/internal/perf"
	"docgen/internal/storage"
)

// Engine is the part of client.Client the runner needs.
type Engine interface {
	PostDocument(ctx context.Context, tpl *client.Template) (string, error)
	WaitReady(ctx context.Context, kind client.Kind, guid string, opts client.PollOptions) error
	GetDocument(ctx context.Context, guid string) (*client.Document, error)
	Delete(ctx context.Context, kind client.Kind, guid string) error
}

var _ Engine = (*client.Client)(nil)

// Runner generates reports. It is safe for concurrent use when Stdout and
// Stderr are.
type Runner struct {
	Engine Engine
	Stdout io.Writer
	Stderr io.Writer
	Poll   client.PollOptions

	// Launcher opens the report for -launch. Nil disables launching.
	Launcher Opener
	// History, if set, receives one row per run.
	History storage.RunRepository
	// HTTP fetches http(s) templates. Defaults to http.DefaultClient.
	HTTP *http.Client
	Log  logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Run generates job once.
//
// Flow:
//   - Non-page outputs are created before anything is sent, so a bad output
//     path fails fast. In performance mode the output is a fresh file next to
//     job.ReportFilename.
//   - The template and every local datasource file are read and submitted.
//   - The status is polled until ready; the document is fetched and then
//     deleted from the engine. A failed delete fails the run.
//   - Document issues go to Stderr and do not fail the run.
//
// Progress lines go to Stdout unless job is a performance run.
func (r *Runner) Run(ctx context.Context, job *cmdline.Job) (perf.Counters, error) {
	now := r.now()
	start := now()
	res, err := r.run(ctx, job, start)
	elapsed := now().Sub(start)

	status := storage.StatusOK
	if err != nil {
		status = storage.StatusError
	}
	metrics.RecordReport(string(client.KindDocument), status, elapsed, res.pages)
	r.record(ctx, job, start, res, elapsed, err)

	if err != nil {
		return perf.Counters{}, err
	}
	return perf.Counters{TimeGenerate: elapsed, NumReports: 1, NumPages: res.pages}, nil
}

// result is what a run learned before it finished or failed.
type result struct {
	guid  string
	pages int
}

func (r *Runner) run(ctx context.Context, job *cmdline.Job, start time.Time) (res result, err error) {
	quiet := job.IsPerformance()
	say := func(format string, args ...any) {
		if !quiet {
			fmt.Fprintf(r.stdout(), format+"\n", args...)
		}
	}

	out, err := openOutput(job.ReportFilename, job.IsPerformance())
	if err != nil {
		return res, err
	}
	defer out.close()

	say("Template: %s", job.TemplateFilename)
	say("Report: %s", job.ReportFilename)

	tpl, err := r.BuildTemplate(ctx, job)
	if err != nil {
		return res, err
	}
	if !quiet {
		r.describe(job)
	}

	say("Calling REST engine to start generating report")
	guid, err := r.Engine.PostDocument(ctx, tpl)
	if err != nil {
		return res, err
	}
	res.guid = guid
	say("REST Engine has accepted job %s", guid)

	if err := r.Engine.WaitReady(ctx, client.KindDocument, guid, r.Poll); err != nil {
		return res, err
	}
	doc, err := r.Engine.GetDocument(ctx, guid)
	if err != nil {
		return res, err
	}
	if err := r.Engine.Delete(ctx, client.KindDocument, guid); err != nil {
		return res, err
	}
	say("REST Engine has completed job %s", doc.Guid)
	res.pages = doc.NumberOfPages

	r.log().WithFields(logrus.Fields{
		"guid":     guid,
		"pages":    doc.NumberOfPages,
		"issues":   len(doc.Errors),
		"duration": r.now()().Sub(start).String(),
	}).Debug("document ready")

	for _, issue := range doc.Errors {
		fmt.Fprintln(r.stderr(), issue.Message)
	}

	if err := out.write(doc, func(p string) { say("Bitmap page written to %s", p) }); err != nil {
		return res, err
	}
	say("Report complete, %d pages long", doc.NumberOfPages)

	if job.Launch && !job.IsPerformance() && r.Launcher != nil {
		fmt.Fprintf(r.stdout(), "launching report %s\n", out.path)
		if err := r.Launcher.Open(ctx, out.path); err != nil {
			return res, err
		}
	}
	return res, nil
}

// describe prints the parameters and datasources being sent.
func (r *Runner) describe(job *cmdline.Job) {
	w := r.stdout()
	for _, p := range job.Params.All() {
		if p.Value == nil {
			fmt.Fprintf(w, "%s = <nil>\n", p.Key)
			continue
		}
		fmt.Fprintf(w, "%s = %v (%T)\n", p.Key, p.Value, p.Value)
	}
	for _, ds := range job.Datasources {
		fmt.Fprintln(w, describeDatasource(ds))
	}
}

func describeDatasource(ds cmdline.Datasource) string {
	switch d := ds.(type) {
	case *cmdline.JSON:
		return fmt.Sprintf("%s datasource: %s", d.Kind(), d.Location)
	case *cmdline.XML:
		if d.SchemaFilename == "" {
			return fmt.Sprintf("%s datasource: %s", d.Kind(), d.Location)
		}
		return fmt.Sprintf("%s datasource: %s, schema %s", d.Kind(), d.Location, d.SchemaFilename)
	case *cmdline.OData:
		return fmt.Sprintf("%s datasource: %s", d.Kind(), d.URL)
	case *cmdline.Salesforce:
		return fmt.Sprintf("%s datasource: %s", d.Kind(), d.URL)
	case *cmdline.SQL:
		return fmt.Sprintf("%s datasource: %s", d.Driver.Name, d.ConnectionString)
	case *cmdline.Dataset:
		return fmt.Sprintf("%s datasource: %s", d.Kind(), d.Value)
	default:
		return fmt.Sprintf("%s datasource", ds.Kind())
	}
}

// record stores the run in History. Failures are logged, never returned.
func (r *Runner) record(ctx context.Context, job *cmdline.Job, start time.Time, res result, d time.Duration, runErr error) {
	if r.History == nil {
		return
	}
	run := storage.NewRun(start, job.TemplateFilename, job.ReportFilename)
	run.Finish(res.guid, res.pages, d, runErr)
	if err := r.History.InsertRun(context.WithoutCancel(ctx), run); err != nil {
		r.log().WithError(errors.WithStack(err)).WithField("run_id", run.ID.String()).Warn("could not record run history")
	}
}

func (r *Runner) now() func() time.Time {
	if r.Now != nil {
		return r.Now
	}
	return time.Now
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runner) log() logrus.FieldLogger {
	if r.Log != nil {
		return r.Log
	}
	return logrus.StandardLogger()
}
