// Package metrics exposes the Prometheus collectors for cambi.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every cambi collector on its own prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	EntriesCreated     prometheus.Counter
	EntriesDeleted     prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	LedgerSize         prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	RateLimited  prometheus.Counter

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	Exports        *prometheus.CounterVec
	ExportDuration prometheus.Histogram
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		EntriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cambi_entries_created_total",
			Help: "Entries added to the ledger",
		}),
		EntriesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cambi_entries_deleted_total",
			Help: "Entries removed from the ledger",
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cambi_validation_failures_total",
			Help: "Rejected entry submissions by field",
		}, []string{"field"}),
		LedgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cambi_ledger_entries",
			Help: "Entries currently held by the ledger",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cambi_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cambi_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cambi_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cambi_cache_hits_total",
			Help: "Cache hits by cache name",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cambi_cache_misses_total",
			Help: "Cache misses by cache name",
		}, []string{"cache"}),

		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cambi_exports_total",
			Help: "Spreadsheet exports by trigger and result",
		}, []string{"trigger", "result"}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cambi_export_duration_seconds",
			Help:    "Duration of spreadsheet exports",
			Buckets: prometheus.DefBuckets,
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.EntriesCreated,
		r.EntriesDeleted,
		r.ValidationFailures,
		r.LedgerSize,
		r.HTTPRequests,
		r.HTTPDuration,
		r.RateLimited,
		r.CacheHits,
		r.CacheMisses,
		r.Exports,
		r.ExportDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// CacheObserver returns a callback suitable for cache.LRUCache.OnLookup.
func (r *Registry) CacheObserver(name string) func(hit bool) {
	hits := r.CacheHits.WithLabelValues(name)
	misses := r.CacheMisses.WithLabelValues(name)
	return func(hit bool) {
		if hit {
			hits.Inc()
		} else {
			misses.Inc()
		}
	}
}

func (r *Registry) ObserveHTTP(route, method string, status int, d time.Duration) {
	r.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveExport records one export attempt.
func (r *Registry) ObserveExport(trigger string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Exports.WithLabelValues(trigger, result).Inc()
	r.ExportDuration.Observe(d.Seconds())
}
