package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen/internal/client"
	"docgen/internal/cmdline"
	"docgen/internal/storage"
)

// fakeEngine serves the v2/document cycle and keeps what was submitted.
type fakeEngine struct {
	mu        sync.Mutex
	submitted []client.Template
	doc       client.Document
	notReady  int32
	polls     atomic.Int32
	deleted   atomic.Int32
	deleteErr atomic.Bool
}

func (f *fakeEngine) templates() []client.Template {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.Template(nil), f.submitted...)
}

func (f *fakeEngine) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/document", func(w http.ResponseWriter, r *http.Request) {
		var tpl client.Template
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&tpl)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submitted = append(f.submitted, tpl)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"Guid":"job-1"}`))
	})
	mux.HandleFunc("GET /v2/document/job-1/status", func(w http.ResponseWriter, r *http.Request) {
		if f.polls.Add(1) <= f.notReady {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("GET /v2/document/job-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.doc)
	})
	mux.HandleFunc("DELETE /v2/document/job-1", func(w http.ResponseWriter, r *http.Request) {
		f.deleted.Add(1)
		if f.deleteErr.Load() {
			http.Error(w, "locked", http.StatusConflict)
		}
	})
	return mux
}

func newRunner(t *testing.T, f *fakeEngine) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL)
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	return &Runner{
		Engine: c,
		Stdout: &stdout,
		Stderr: &stderr,
		Poll:   client.PollOptions{Interval: time.Millisecond},
	}, &stdout, &stderr
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRun_XMLWithParameter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeFile(t, dir, "report.docx", "PK-template")
	xmlPath := writeFile(t, dir, "data.xml", "<root/>")
	outPath := filepath.Join(dir, "out.pdf")

	f := &fakeEngine{notReady: 2, doc: client.Document{Guid: "job-1", Data: []byte("%PDF-1.7"), NumberOfPages: 2}}
	r, stdout, _ := newRunner(t, f)

	job, err := cmdline.Parse([]string{tplPath, outPath, "-xml", xmlPath, "title=Hello World"})
	require.NoError(t, err)

	pc, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, pc.NumReports)
	assert.Equal(t, 2, pc.NumPages)

	submitted := f.templates()
	require.Len(t, submitted, 1)
	got := submitted[0]
	assert.Equal(t, "docx", got.Format)
	assert.Equal(t, "pdf", got.OutputFormat)
	assert.Equal(t, []byte("PK-template"), got.Data)
	require.Len(t, got.Datasources, 1)
	ds := got.Datasources[0]
	assert.Equal(t, client.TypeXML20, ds.Type)
	assert.Equal(t, "", ds.Name)
	assert.Nil(t, ds.SchemaData)
	assert.Equal(t, []byte("<root/>"), ds.Data)
	assert.Equal(t, []client.Parameter{{Name: "title", Value: "Hello World"}}, got.Parameters)

	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(b))
	assert.EqualValues(t, 1, f.deleted.Load())

	out := stdout.String()
	for _, line := range []string{
		"Template: " + tplPath,
		"Report: " + outPath,
		"title = Hello World (string)",
		"XML (XPath 2.0) datasource: " + xmlPath,
		"REST Engine has accepted job job-1",
		"REST Engine has completed job job-1",
		"Report complete, 2 pages long",
	} {
		assert.Contains(t, out, line)
	}
}

func TestRun_RasterPages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeFile(t, dir, "report.docx", "PK")
	outPath := filepath.Join(dir, "page.bmp")

	f := &fakeEngine{doc: client.Document{Guid: "job-1", Pages: [][]byte{[]byte("p0"), []byte("p1"), []byte("p2")}, NumberOfPages: 3}}
	r, stdout, _ := newRunner(t, f)

	job := &cmdline.Job{TemplateFilename: tplPath, ReportFilename: outPath}
	pc, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, pc.NumPages)

	_, err = os.Stat(outPath)
	assert.True(t, os.IsNotExist(err), "page.bmp must not be created")
	for i, want := range []string{"p0", "p1", "p2"} {
		p := filepath.Join(dir, fmt.Sprintf("page_%d.bmp", i))
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
		assert.Contains(t, stdout.String(), "Bitmap page written to "+p)
	}
}

func TestRun_IssuesAndDeleteFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeFile(t, dir, "report.docx", "PK")
	f := &fakeEngine{doc: client.Document{Guid: "job-1", Data: []byte("x"), Errors: []client.Issue{{Message: "tag out missing"}}}}
	r, _, stderr := newRunner(t, f)

	_, err := r.Run(context.Background(), &cmdline.Job{TemplateFilename: tplPath, ReportFilename: filepath.Join(dir, "a.pdf")})
	require.NoError(t, err)
	assert.Equal(t, "tag out missing\n", stderr.String())

	f.deleteErr.Store(true)
	_, err = r.Run(context.Background(), &cmdline.Job{TemplateFilename: tplPath, ReportFilename: filepath.Join(dir, "b.pdf")})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "err=%v", err)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestRun_MissingOutputDirFailsBeforeSubmit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeFile(t, dir, "report.docx", "PK")
	f := &fakeEngine{}
	r, _, _ := newRunner(t, f)

	missing := filepath.Join(dir, "nope", "out.pdf")
	_, err := r.Run(context.Background(), &cmdline.Job{TemplateFilename: tplPath, ReportFilename: missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
	assert.Empty(t, f.templates())
}

func TestRun_PerformanceModeWritesTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeFile(t, dir, "report.docx", "PK")
	f := &fakeEngine{doc: client.Document{Guid: "job-1", Data: []byte("pdf"), NumberOfPages: 1}}
	r, stdout, _ := newRunner(t, f)

	job := &cmdline.Job{TemplateFilename: tplPath, ReportFilename: filepath.Join(dir, "out.pdf"), NumReports: 2, NumThreads: 1}
	for i := 0; i < 2; i++ {
		_, err := r.Run(context.Background(), job)
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "rpt_*.pdf"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Empty(t, stdout.String())
}

type memHistory struct {
	mu   sync.Mutex
	runs []storage.Run
}

func (m *memHistory) Close()                             {}
func (m *memHistory) EnsureTables(context.Context) error { return nil }

func (m *memHistory) RecentRuns(context.Context, int) ([]storage.Run, error) {
	return m.runs, nil
}

func (m *memHistory) InsertRun(_ context.Context, r storage.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func TestRun_RecordsHistory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeFile(t, dir, "report.docx", "PK")
	f := &fakeEngine{doc: client.Document{Guid: "job-1", Data: []byte("pdf"), NumberOfPages: 4}}
	r, _, _ := newRunner(t, f)
	h := &memHistory{}
	r.History = h

	_, err := r.Run(context.Background(), &cmdline.Job{TemplateFilename: tplPath, ReportFilename: filepath.Join(dir, "out.pdf")})
	require.NoError(t, err)
	_, err = r.Run(context.Background(), &cmdline.Job{TemplateFilename: filepath.Join(dir, "missing.docx"), ReportFilename: filepath.Join(dir, "out2.pdf")})
	require.Error(t, err)

	require.Len(t, h.runs, 2)
	assert.Equal(t, storage.StatusOK, h.runs[0].Status)
	assert.Equal(t, "job-1", h.runs[0].Guid)
	assert.Equal(t, 4, h.runs[0].Pages)
	assert.Equal(t, storage.StatusError, h.runs[1].Status)
	assert.True(t, strings.Contains(h.runs[1].Error, "missing.docx"))
}

type recordingOpener struct {
	paths []string
	err   error
}

func (o *recordingOpener) Open(_ context.Context, path string) error {
	o.paths = append(o.paths, path)
	return o.err
}

func TestLauncher_FallsBack(t *testing.T) {
	t.Parallel()

	primary := &recordingOpener{err: errors.New("no desktop")}
	fallback := &recordingOpener{}
	l := Launcher{Primary: primary, Fallback: fallback}
	require.NoError(t, l.Open(context.Background(), "/tmp/r.pdf"))
	assert.Equal(t, []string{"/tmp/r.pdf"}, primary.paths)
	assert.Equal(t, []string{"/tmp/r.pdf"}, fallback.paths)

	fallback.err = errors.New("no open")
	err := l.Open(context.Background(), "/tmp/r.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not launch /tmp/r.pdf")

	assert.Error(t, Launcher{}.Open(context.Background(), "x"))
}

func TestRun_Launch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeFile(t, dir, "report.docx", "PK")
	f := &fakeEngine{doc: client.Document{Guid: "job-1", Data: []byte("pdf")}}
	r, stdout, _ := newRunner(t, f)
	op := &recordingOpener{}
	r.Launcher = op

	out := filepath.Join(dir, "out.pdf")
	_, err := r.Run(context.Background(), &cmdline.Job{TemplateFilename: tplPath, ReportFilename: out, Launch: true})
	require.NoError(t, err)
	assert.Equal(t, []string{out}, op.paths)
	assert.Contains(t, stdout.String(), "launching report "+out)
}
