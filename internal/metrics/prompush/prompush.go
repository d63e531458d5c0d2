// Package prompush implements a metrics.Backend that keeps Prometheus
// collectors in a private registry and pushes them to a Pushgateway on Flush.
//
// A search run is a short-lived batch job, so scraping is not an option; the
// command calls metrics.Flush once before exit.
package prompush

import (
	"fmt"
	"strings"

	"eams/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var durationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Backend implements metrics.Backend.
type Backend struct {
	pusher *push.Pusher

	steps    *prometheus.CounterVec
	stepDur  *prometheus.HistogramVec
	pages    *prometheus.CounterVec
	records  *prometheus.CounterVec
	httpReqs *prometheus.CounterVec
	httpErrs *prometheus.CounterVec
	httpReqD *prometheus.HistogramVec
	httpResD *prometheus.HistogramVec
	httpSize *prometheus.HistogramVec
}

// NewBackend registers the collectors and prepares a pusher for gatewayURL
// under the given job name.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if job == "" {
		job = "eams"
	}

	b := &Backend{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal, Help: "Extraction steps by outcome.",
		}, []string{"step", "status"}),
		stepDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: metrics.StepDurationSeconds, Help: "Extraction step duration.", Buckets: durationBuckets,
		}, []string{"step", "status"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.PagesTotal, Help: "Portal pages fetched by kind.",
		}, []string{"kind"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal, Help: "Records extracted by kind.",
		}, []string{"kind"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.HTTPRequestsTotal, Help: "HTTP requests by status.",
		}, []string{"job", "status"}),
		httpErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.HTTPErrorsTotal, Help: "Failed HTTP requests by status.",
		}, []string{"job", "status"}),
		httpReqD: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: metrics.HTTPRequestDurationSeconds, Help: "Time until response headers.", Buckets: durationBuckets,
		}, []string{"job", "status"}),
		httpResD: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: metrics.HTTPResponseDurationSeconds, Help: "Time spent reading the body.", Buckets: durationBuckets,
		}, []string{"job", "status"}),
		httpSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: metrics.HTTPDownloadBytes, Help: "Response body size.", Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"job", "status"}),
	}

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		b.steps, b.stepDur, b.pages, b.records,
		b.httpReqs, b.httpErrs, b.httpReqD, b.httpResD, b.httpSize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	b.pusher = push.New(gatewayURL, job).Gatherer(reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(l["step"], l["status"]).Add(delta)
	case metrics.PagesTotal:
		b.pages.WithLabelValues(l["kind"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(l["kind"]).Add(delta)
	case metrics.HTTPRequestsTotal:
		b.httpReqs.WithLabelValues(l["job"], l["status"]).Add(delta)
	case metrics.HTTPErrorsTotal:
		b.httpErrs.WithLabelValues(l["job"], l["status"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, l metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDurationSeconds:
		b.stepDur.WithLabelValues(l["step"], l["status"]).Observe(value)
	case metrics.HTTPRequestDurationSeconds:
		b.httpReqD.WithLabelValues(l["job"], l["status"]).Observe(value)
	case metrics.HTTPResponseDurationSeconds:
		b.httpResD.WithLabelValues(l["job"], l["status"]).Observe(value)
	case metrics.HTTPDownloadBytes:
		b.httpSize.WithLabelValues(l["job"], l["status"]).Observe(value)
	}
}

// Flush pushes every collector, replacing the job's previous group.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
