package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndHandler(t *testing.T) {
	r := NewRegistry()
	r.EntriesCreated.Inc()
	r.ValidationFailures.WithLabelValues("amountPrimary").Inc()
	r.ObserveHTTP("/entries", http.MethodPost, 422, 5*time.Millisecond)
	r.ObserveExport("cron", errors.New("quota"), time.Second)

	obs := r.CacheObserver("summary")
	obs(true)
	obs(false)
	obs(false)

	if got := testutil.ToFloat64(r.EntriesCreated); got != 1 {
		t.Fatalf("entries created = %v", got)
	}
	if got := testutil.ToFloat64(r.CacheMisses.WithLabelValues("summary")); got != 2 {
		t.Fatalf("cache misses = %v", got)
	}
	if got := testutil.ToFloat64(r.Exports.WithLabelValues("cron", "error")); got != 1 {
		t.Fatalf("exports = %v", got)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"cambi_entries_created_total 1",
		`cambi_http_requests_total{method="POST",route="/entries",status="422"} 1`,
		`cambi_validation_failures_total{field="amountPrimary"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.EntriesDeleted.Inc()
	if got := testutil.ToFloat64(b.EntriesDeleted); got != 0 {
		t.Fatalf("registries share state: %v", got)
	}
}
