// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Observations are buffered in memory and submitted on a ticker (once per
// minute by default) and one final time on Close. A long -performance run
// therefore shows up as a time series instead of a single spike at exit.
//
// Concurrency model:
//   - Report workers call IncCounter/ObserveHistogram at any time.
//   - Flush snapshots and resets the buffers under a mutex, then submits
//     outside the lock.
//   - The flush loop calls Flush periodically; Close stops the loop.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"docgen/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "runreport".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "engine:eu1"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf buffers
}

// buffers holds one collection window.
//
// Report maps are keyed by kindStatusKey; HTTP maps by status code string.
type buffers struct {
	reportCounts map[string]float64
	reportDur    map[string][]float64
	reportPages  map[string][]float64 // kind -> samples

	httpReqCounts map[string]float64
	httpErrCounts map[string]float64
	httpReqDur    map[string][]float64
	httpRespBytes map[string][]float64
}

func newBuffers() buffers {
	return buffers{
		reportCounts:  make(map[string]float64),
		reportDur:     make(map[string][]float64),
		reportPages:   make(map[string][]float64),
		httpReqCounts: make(map[string]float64),
		httpErrCounts: make(map[string]float64),
		httpReqDur:    make(map[string][]float64),
		httpRespBytes: make(map[string][]float64),
	}
}

func (s buffers) isEmpty() bool {
	return len(s.reportCounts) == 0 &&
		len(s.reportDur) == 0 &&
		len(s.reportPages) == 0 &&
		len(s.httpReqCounts) == 0 &&
		len(s.httpErrCounts) == 0 &&
		len(s.httpReqDur) == 0 &&
		len(s.httpRespBytes) == 0
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
//
// Errors:
//   - Returns any error from the final submission.
//   - Calling Close twice panics (stopCh is closed twice).
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// NewBackend constructs a Datadog backend using the official client. The
// API key and site come from DD_API_KEY / DD_SITE through the client's
// default context.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "runreport".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors:
//   - Client construction does not fail; network errors surface from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}
	job := opts.JobName
	if job == "" {
		job = "runreport"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		buf:        newBuffers(),
	}

	go b.loop()
	return b, nil
}

func statusLabel(labels metrics.Labels) string {
	if s := labels["status"]; s != "" {
		return s
	}
	return "unknown"
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.ReportTotal:
		b.buf.reportCounts[kindStatusKey(labels["kind"], labels["status"])] += delta
	case metrics.HTTPRequestsTotal:
		b.buf.httpReqCounts[statusLabel(labels)] += delta
	case metrics.HTTPErrorsTotal:
		b.buf.httpErrCounts[statusLabel(labels)] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.ReportDurationSeconds:
		k := kindStatusKey(labels["kind"], labels["status"])
		b.buf.reportDur[k] = append(b.buf.reportDur[k], value)
	case metrics.ReportPages:
		k := labels["kind"]
		b.buf.reportPages[k] = append(b.buf.reportPages[k], value)
	case metrics.HTTPRequestDurationSeconds:
		s := statusLabel(labels)
		b.buf.httpReqDur[s] = append(b.buf.httpReqDur[s], value)
	case metrics.HTTPResponseBytes:
		s := statusLabel(labels)
		b.buf.httpRespBytes[s] = append(b.buf.httpRespBytes[s], value)
	}
}

func (b *Backend) snapshotAndReset() buffers {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.buf
	b.buf = newBuffers()
	return s
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Edge cases:
//   - Returns nil without a request when nothing was recorded.
//   - Buffers are reset even if submission fails.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure: no locks, network or clocks.
func (b *Backend) buildSeries(s buffers, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, 64)

	for _, k := range sortedKeys(s.reportCounts) {
		kind, status := splitKindStatusKey(k)
		tags := withTags(b.baseTags, "kind:"+kind, "status:"+status)
		series = append(series, countSeries("docgen.report.total", s.reportCounts[k], tags, nowUnix))
	}
	for _, k := range sortedKeys(s.reportDur) {
		kind, status := splitKindStatusKey(k)
		tags := withTags(b.baseTags, "kind:"+kind, "status:"+status)
		addPercentiles(&series, "docgen.report.duration_seconds", s.reportDur[k], tags, nowUnix)
	}
	for _, kind := range sortedKeys(s.reportPages) {
		addPercentiles(&series, "docgen.report.pages", s.reportPages[kind], withTags(b.baseTags, "kind:"+kind), nowUnix)
	}

	for _, status := range sortedKeys(s.httpReqCounts) {
		series = append(series, countSeries("docgen.http.requests.total", s.httpReqCounts[status], withTags(b.baseTags, "status:"+status), nowUnix))
	}
	for _, status := range sortedKeys(s.httpErrCounts) {
		series = append(series, countSeries("docgen.http.errors.total", s.httpErrCounts[status], withTags(b.baseTags, "status:"+status), nowUnix))
	}
	for _, status := range sortedKeys(s.httpReqDur) {
		addPercentiles(&series, "docgen.http.request_duration_seconds", s.httpReqDur[status], withTags(b.baseTags, "status:"+status), nowUnix)
	}
	for _, status := range sortedKeys(s.httpRespBytes) {
		addPercentiles(&series, "docgen.http.response_bytes", s.httpRespBytes[status], withTags(b.baseTags, "status:"+status), nowUnix)
	}

	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges. It sorts a copy
// of samples and does nothing for an empty set.
func addPercentiles(series *[]datadogV2.MetricSeries, prefix string, samples []float64, tags []string, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(prefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(prefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(prefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(prefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(prefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(prefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func kindStatusKey(kind, status string) string {
	return kind + "\x00" + status
}

func splitKindStatusKey(k string) (kind, status string) {
	kind, status, ok := strings.Cut(k, "\x00")
	if !ok {
		return k, "unknown"
	}
	return kind, status
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,engine:eu1".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
