// Package metrics is the process-wide metrics facade. Callers record through
// the package functions; a concrete backend (datadog, pushgateway) is installed
// once at startup with SetBackend. Without a backend every call is a no-op.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names shared by all backends.
const (
	ReportTotal           = "docgen_report_total"
	ReportDurationSeconds = "docgen_report_duration_seconds"
	ReportPages           = "docgen_report_pages"

	HTTPRequestsTotal          = "docgen_http_requests_total"
	HTTPErrorsTotal            = "docgen_http_errors_total"
	HTTPRequestDurationSeconds = "docgen_http_request_duration_seconds"
	HTTPResponseBytes          = "docgen_http_response_bytes"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error { return current().Flush() }

// RecordReport records one finished report run.
//
// status is "ok" or "error"; kind is the request kind (document, metrics,
// tagtree).
func RecordReport(kind, status string, d time.Duration, pages int) {
	b := current()
	l := Labels{"kind": kind, "status": status}
	b.IncCounter(ReportTotal, 1, l)
	b.ObserveHistogram(ReportDurationSeconds, d.Seconds(), l)
	if pages > 0 {
		b.ObserveHistogram(ReportPages, float64(pages), Labels{"kind": kind})
	}
}

// RecordHTTP records one engine request. statusCode is 0 when no response
// was received.
func RecordHTTP(method string, statusCode int, err error, d time.Duration, bytes int64) {
	b := current()
	status := "unknown"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	l := Labels{"method": method, "status": status}
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || statusCode >= 400 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPRequestDurationSeconds, d.Seconds(), l)
	if bytes > 0 {
		b.ObserveHistogram(HTTPResponseBytes, float64(bytes), l)
	}
}
