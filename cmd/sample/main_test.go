package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen/internal/client"
)

func TestRun_FullCycle(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		deleted []string
		polls   = map[string]int{}
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"EngineVersion":"24.1","ServiceVersion":"3.0"}`))
	})
	for _, kind := range []string{"document", "metrics", "tagtree"} {
		kind := kind
		mux.HandleFunc("POST /v2/"+kind, func(w http.ResponseWriter, r *http.Request) {
			var tpl client.Template
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&tpl))
			assert.Equal(t, client.TypeXML10, tpl.Datasources[0].Type)
			assert.Equal(t, "MANF", tpl.Datasources[0].Name)
			_, _ = w.Write([]byte(`{"Guid":"` + kind + `-1"}`))
		})
		mux.HandleFunc("GET /v2/"+kind+"/"+kind+"-1/status", func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			polls[kind]++
			n := polls[kind]
			mu.Unlock()
			if kind == "document" && n == 1 {
				w.WriteHeader(http.StatusCreated)
				return
			}
			w.WriteHeader(http.StatusFound)
		})
		mux.HandleFunc("DELETE /v2/"+kind+"/"+kind+"-1", func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			deleted = append(deleted, kind)
			mu.Unlock()
		})
	}
	mux.HandleFunc("GET /v2/document/document-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Guid":"document-1","Data":"JVBERg==","NumberOfPages":7}`))
	})
	mux.HandleFunc("GET /v2/metrics/metrics-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Guid":"metrics-1","Datasources":["MANF"],"Tags":["out","forEach"]}`))
	})
	mux.HandleFunc("GET /v2/tagtree/tagtree-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Guid":"tagtree-1","Xml":"PHRyZWUvPg=="}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	tpl := filepath.Join(dir, "m.docx")
	xml := filepath.Join(dir, "m.xml")
	require.NoError(t, os.WriteFile(tpl, []byte("PK"), 0o644))
	require.NoError(t, os.WriteFile(xml, []byte("<r/>"), 0o644))
	outPDF := filepath.Join(dir, "out.pdf")
	outTree := filepath.Join(dir, "tree.xml")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--url", srv.URL, "--template", tpl, "--xml", xml, "--name", "MANF",
		"--interval", "1ms", "--out", outPDF, "--tagtree-out", outTree,
	}, deps{Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, 0, code, "stderr=%s", stderr.String())

	want := []string{
		"engine 24.1, service 3.0",
		"Not ready, status = 201",
		"Ready, status = 302",
		"Successfully got document with guid document-1",
		"Number of pages = 7",
		"Posting metrics with guid metrics-1",
		"Ready, status = 302",
		"Successfully got metrics with guid metrics-1",
		"Datasources: MANF",
		"Tags: out, forEach",
		"Posting tagtree with guid tagtree-1",
		"Ready, status = 302",
		"Successfully got tag tree with guid tagtree-1",
		"DELETED DOCUMENT WITH GUID: document-1",
		"DELETED METRICS WITH GUID: metrics-1",
		"DELETED TAGTREE WITH GUID: tagtree-1",
	}
	assert.Equal(t, want, strings.Split(strings.TrimSpace(stdout.String()), "\n"))
	mu.Lock()
	assert.Equal(t, []string{"document", "metrics", "tagtree"}, deleted)
	mu.Unlock()

	b, err := os.ReadFile(outPDF)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(b))
	b, err = os.ReadFile(outTree)
	require.NoError(t, err)
	assert.Equal(t, "<tree/>", string(b))
}

func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	code := run(context.Background(), nil, deps{Stderr: &stderr, ConfigPath: filepath.Join(t.TempDir(), "none.properties")})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error: ")
}
