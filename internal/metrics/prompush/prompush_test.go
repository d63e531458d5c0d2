package prompush

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"eams/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewBackend_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("eams", "  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestBackend_CountsByLabel(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("eams", "http://127.0.0.1:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.PagesTotal, 1, metrics.Labels{"kind": "case"})
	b.IncCounter(metrics.PagesTotal, 2, metrics.Labels{"kind": "case"})
	b.IncCounter(metrics.PagesTotal, 0, metrics.Labels{"kind": "case"})
	b.IncCounter(metrics.RecordsTotal, 4, metrics.Labels{"kind": "listing"})
	b.IncCounter("unknown_total", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "case", "status": "ok"})

	if got := testutil.ToFloat64(b.pages.WithLabelValues("case")); got != 3 {
		t.Fatalf("pages{case}=%v want 3", got)
	}
	if got := testutil.ToFloat64(b.records.WithLabelValues("listing")); got != 4 {
		t.Fatalf("records{listing}=%v want 4", got)
	}
	if got := testutil.CollectAndCount(b.stepDur); got != 0 {
		t.Fatalf("step duration series=%d want 0", got)
	}
}

// TestFlush_PushesToGateway verifies Flush PUTs the job group to the
// Pushgateway and the payload carries the recorded metric families.
func TestFlush_PushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("eams_test", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.PagesTotal, 1, metrics.Labels{"kind": "listing"})
	b.ObserveHistogram(metrics.HTTPRequestDurationSeconds, 0.2, metrics.Labels{"job": "eams_test", "status": "200"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Fatalf("method=%s want PUT", method)
	}
	if path != "/metrics/job/eams_test" {
		t.Fatalf("path=%s", path)
	}
	if !bytes.Contains(body, []byte(metrics.PagesTotal)) {
		t.Fatalf("payload missing %s", metrics.PagesTotal)
	}
}

func TestFlush_GatewayErrorIsWrapped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("eams", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatalf("expected push error")
	}
}
