// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Observations are buffered in memory and submitted on a ticker (once a
// minute by default) plus one final time on Close. A search that walks many
// case pages therefore shows up as a time series instead of a single spike at
// exit.
//
// Concurrency model:
//   - expander goroutines call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets the buffers under the mutex, then submits
//     outside of it
//   - the flush loop calls Flush periodically; Close stops the loop
//
// If the process is killed with SIGKILL/OOM, Close won't run.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"eams/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "eams".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:eams"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams; production code never sets them.
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

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf buffers
}

// buffers is one collection window. Counter and sample maps are keyed by the
// tag suffix they will be submitted with.
type buffers struct {
	steps     map[string]float64 // step\x00status
	pages     map[string]float64 // kind
	records   map[string]float64 // kind
	stepDur   map[string][]float64
	httpReqs  map[string]float64 // status
	httpErrs  map[string]float64
	httpReqD  map[string][]float64
	httpRespD map[string][]float64
	httpBytes map[string][]float64
}

func newBuffers() buffers {
	return buffers{
		steps:     make(map[string]float64),
		pages:     make(map[string]float64),
		records:   make(map[string]float64),
		stepDur:   make(map[string][]float64),
		httpReqs:  make(map[string]float64),
		httpErrs:  make(map[string]float64),
		httpReqD:  make(map[string][]float64),
		httpRespD: make(map[string][]float64),
		httpBytes: make(map[string][]float64),
	}
}

func (s buffers) isEmpty() bool {
	return len(s.steps) == 0 &&
		len(s.pages) == 0 &&
		len(s.records) == 0 &&
		len(s.stepDur) == 0 &&
		len(s.httpReqs) == 0 &&
		len(s.httpErrs) == 0 &&
		len(s.httpReqD) == 0 &&
		len(s.httpRespD) == 0 &&
		len(s.httpBytes) == 0
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

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials and site come from the usual DD_*
// environment variables; network errors surface from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "eams"
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

// Close stops the flush loop and performs one final Flush. Calling it twice
// panics.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

func statusOrUnknown(l metrics.Labels) string {
	if s := l["status"]; s != "" {
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
	case metrics.StepTotal:
		b.buf.steps[stepStatusKey(labels["step"], labels["status"])] += delta
	case metrics.PagesTotal:
		if kind := labels["kind"]; kind != "" {
			b.buf.pages[kind] += delta
		}
	case metrics.RecordsTotal:
		if kind := labels["kind"]; kind != "" {
			b.buf.records[kind] += delta
		}
	case metrics.HTTPRequestsTotal:
		b.buf.httpReqs[statusOrUnknown(labels)] += delta
	case metrics.HTTPErrorsTotal:
		b.buf.httpErrs[statusOrUnknown(labels)] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var m map[string][]float64
	key := statusOrUnknown(labels)
	switch name {
	case metrics.StepDurationSeconds:
		m, key = b.buf.stepDur, stepStatusKey(labels["step"], labels["status"])
	case metrics.HTTPRequestDurationSeconds:
		m = b.buf.httpReqD
	case metrics.HTTPResponseDurationSeconds:
		m = b.buf.httpRespD
	case metrics.HTTPDownloadBytes:
		m = b.buf.httpBytes
	default:
		return
	}
	m[key] = append(m[key], value)
}

func (b *Backend) snapshotAndReset() buffers {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf
	b.buf = newBuffers()
	return s
}

// Flush submits buffered metrics to Datadog and resets local buffers. It
// returns nil without submitting when nothing was recorded. Buffers are reset
// even if submission fails.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries turns a snapshot into Datadog series at a fixed timestamp.
func (b *Backend) buildSeries(s buffers, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, 64)
	count := func(metric string, v float64, tags []string) {
		if v != 0 {
			series = append(series, countSeries(metric, v, tags, nowUnix))
		}
	}

	for k, v := range s.steps {
		step, status := splitStepStatusKey(k)
		count("eams.step.total", v, withTags(b.baseTags, "step:"+step, "status:"+status))
	}
	for kind, v := range s.pages {
		count("eams.pages.total", v, withTags(b.baseTags, "kind:"+kind))
	}
	for kind, v := range s.records {
		count("eams.records.total", v, withTags(b.baseTags, "kind:"+kind))
	}
	for k, samples := range s.stepDur {
		step, status := splitStepStatusKey(k)
		addPercentiles(&series, "eams.step.duration_seconds", withTags(b.baseTags, "step:"+step, "status:"+status), samples, nowUnix)
	}

	for status, v := range s.httpReqs {
		count("eams.http.requests.total", v, withTags(b.baseTags, "status:"+status))
	}
	for status, v := range s.httpErrs {
		count("eams.http.errors.total", v, withTags(b.baseTags, "status:"+status))
	}
	for status, samples := range s.httpReqD {
		addPercentiles(&series, "eams.http.request_duration_seconds", withTags(b.baseTags, "status:"+status), samples, nowUnix)
	}
	for status, samples := range s.httpRespD {
		addPercentiles(&series, "eams.http.response_duration_seconds", withTags(b.baseTags, "status:"+status), samples, nowUnix)
	}
	for status, samples := range s.httpBytes {
		addPercentiles(&series, "eams.http.download_bytes", withTags(b.baseTags, "status:"+status), samples, nowUnix)
	}
	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for samples. The
// input slice is not modified.
func addPercentiles(series *[]datadogV2.MetricSeries, prefix string, tags []string, samples []float64, nowUnix int64) {
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

func stepStatusKey(step, status string) string {
	return step + "\x00" + status
}

func splitStepStatusKey(k string) (step, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
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

// ParseTagsCSV parses comma-separated tags like "env:prod,service:eams".
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
