// Package metrics exposes Prometheus metrics for the compatibility service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "github_compatibility"

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
	CacheError = "error"
)

// Recorder owns a private registry and the counters recorded by the
// pipeline and the HTTP layer. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRecorder creates a Recorder on a fresh registry that also carries the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(registry)

	return &Recorder{
		registry: registry,
		cacheLookups: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Compatibility cache lookups by result",
		}, []string{"result"}),
		analyses: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Compatibility analyses by outcome",
		}, []string{"outcome"}),
		analysisDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		upstreamErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failures reported by GitHub or the narrative generator, by source and error code",
		}, []string{"source", "code"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status_code"}),
		httpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry returns the registry backing the recorder
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the Prometheus exposition format for this recorder
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// CacheLookup counts a cache lookup with one of the Cache* results
func (r *Recorder) CacheLookup(result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Analysis records a finished analysis. outcome is "cached", "computed" or a
// lower-cased error code.
func (r *Recorder) Analysis(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome = strings.ToLower(outcome)
	r.analyses.WithLabelValues(outcome).Inc()
	r.analysisDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// UpstreamError counts a failure from source ("github" or "narrative")
func (r *Recorder) UpstreamError(source, code string) {
	if r == nil {
		return
	}
	r.upstreamErrors.WithLabelValues(source, strings.ToLower(code)).Inc()
}

// HTTPRequest records one served request
func (r *Recorder) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
