// Package metrics is the backend-neutral metrics facade used by the extractor.
//
// Code records through the package-level helpers; a command picks the concrete
// backend once at startup with SetBackend. Until then every call goes to a nop
// backend, so libraries and tests never need to configure anything.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal           = "eams_step_total"
	StepDurationSeconds = "eams_step_duration_seconds"
	PagesTotal          = "eams_pages_total"
	RecordsTotal        = "eams_records_total"

	HTTPRequestsTotal           = "eams_http_requests_total"
	HTTPErrorsTotal             = "eams_http_errors_total"
	HTTPRequestDurationSeconds  = "eams_http_request_duration_seconds"
	HTTPResponseDurationSeconds = "eams_http_response_duration_seconds"
	HTTPDownloadBytes           = "eams_http_download_bytes"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the nop
// backend.
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

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered observations, if the backend buffers at all.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one pipeline step (search, listing, case, events...) and
// its duration. status is "ok" when err is nil and "error" otherwise.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordPage counts one fetched page of the given kind.
func RecordPage(kind string) {
	IncCounter(PagesTotal, 1, Labels{"kind": kind})
}

// RecordRecords counts n extracted records of the given kind.
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordHTTP records one HTTP exchange. status 0 means no response was
// received. Errors and statuses >= 400 also count as errors.
func RecordHTTP(job string, status int, err error, reqDur, respDur time.Duration, size int64) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	l := Labels{"job": job, "status": code}

	IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status >= 400 || status == 0 {
		IncCounter(HTTPErrorsTotal, 1, l)
	}
	ObserveHistogram(HTTPRequestDurationSeconds, reqDur.Seconds(), l)
	if respDur > 0 {
		ObserveHistogram(HTTPResponseDurationSeconds, respDur.Seconds(), l)
	}
	if size >= 0 {
		ObserveHistogram(HTTPDownloadBytes, float64(size), l)
	}
}
