// Package prompush implements a metrics.Backend that collects into a private
// Prometheus registry and pushes it to a Pushgateway on Flush.
//
// A report run is a batch job, so there is nothing for Prometheus to scrape
// once the process exits; the Pushgateway holds the last pushed values.
package prompush

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"docgen/internal/metrics"
)

// Options configures the backend.
type Options struct {
	// URL of the Pushgateway, e.g. http://localhost:9091.
	URL string
	// Job is the Pushgateway job label. Defaults to "runreport".
	Job string
	// Grouping adds grouping labels, parsed from "k=v,k=v".
	Grouping map[string]string
	// Client overrides the HTTP client used for pushes.
	Client *http.Client
}

// Backend implements metrics.Backend.
type Backend struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	counters map[string]*prometheus.CounterVec
	hists    map[string]*prometheus.HistogramVec
}

var _ metrics.Backend = (*Backend)(nil)

// New registers the known docgen metrics on a fresh registry.
//
// Errors:
//   - Empty URL.
func New(opts Options) (*Backend, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("prompush: pushgateway url is required")
	}
	job := opts.Job
	if job == "" {
		job = "runreport"
	}

	b := &Backend{
		registry: prometheus.NewRegistry(),
		counters: map[string]*prometheus.CounterVec{},
		hists:    map[string]*prometheus.HistogramVec{},
	}

	b.counter(metrics.ReportTotal, "Finished report runs.", "kind", "status")
	b.counter(metrics.HTTPRequestsTotal, "Engine requests.", "method", "status")
	b.counter(metrics.HTTPErrorsTotal, "Failed engine requests.", "method", "status")
	b.histogram(metrics.ReportDurationSeconds, "Report wall time.", prometheus.ExponentialBuckets(0.05, 2, 12), "kind", "status")
	b.histogram(metrics.ReportPages, "Pages per report.", prometheus.ExponentialBuckets(1, 2, 10), "kind")
	b.histogram(metrics.HTTPRequestDurationSeconds, "Engine request latency.", prometheus.DefBuckets, "method", "status")
	b.histogram(metrics.HTTPResponseBytes, "Engine response size.", prometheus.ExponentialBuckets(256, 4, 10), "method", "status")

	p := push.New(opts.URL, job).Gatherer(b.registry)
	for k, v := range opts.Grouping {
		p = p.Grouping(k, v)
	}
	if opts.Client != nil {
		p = p.Client(opts.Client)
	}
	b.pusher = p
	return b, nil
}

func (b *Backend) counter(name, help string, labels ...string) {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	b.registry.MustRegister(v)
	b.counters[name] = v
}

func (b *Backend) histogram(name, help string, buckets []float64, labels ...string) {
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	b.registry.MustRegister(v)
	b.hists[name] = v
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	v, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	c, err := v.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	c.Add(delta)
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	v, ok := b.hists[name]
	if !ok || value < 0 {
		return
	}
	o, err := v.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	o.Observe(value)
}

// Flush pushes the whole registry, replacing the job's previous push.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return errors.Wrap(err, "prompush: push")
	}
	return nil
}

// Registry exposes the underlying registry.
func (b *Backend) Registry() *prometheus.Registry { return b.registry }

// ParseGrouping parses "k=v,k=v"; malformed pairs are skipped.
func ParseGrouping(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Close pushes once more. The registry stays usable.
func (b *Backend) Close() error { return b.Flush() }
