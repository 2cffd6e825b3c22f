// Package metrics exposes Prometheus instruments for audits and outbound probes.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// --- Audit metrics ---
	AuditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webharden_audits_total",
			Help: "Total number of audits, by result (completed or fetch_failed).",
		},
		[]string{"result"},
	)
	AuditScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webharden_audit_score",
			Help:    "Distribution of hardening scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	ProbeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webharden_probe_failures_total",
			Help: "Soft probe failures, by probe (tls or redirect).",
		},
		[]string{"probe"},
	)

	// --- Outbound (client) metrics ---
	HTTPClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_client_requests_total",
			Help: "Total number of outbound HTTP requests.",
		},
		[]string{"method", "code"},
	)
	HTTPClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "Latency of outbound HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)

	// --- Inbound (API) metrics ---
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests processed by the API.",
		},
		[]string{"method", "route", "code"},
	)
)

// Registry returns a registry holding the process collectors and every
// instrument of this package.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		AuditsTotal,
		AuditScore,
		ProbeFailuresTotal,
		HTTPClientRequestsTotal,
		HTTPClientRequestDuration,
		HTTPRequestsTotal,
	)
	return reg
}

// InstrumentTransport wraps base with request counters and latency histograms.
func InstrumentTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperDuration(
		HTTPClientRequestDuration,
		promhttp.InstrumentRoundTripperCounter(HTTPClientRequestsTotal, base),
	)
}

// ObserveAudit records a finished audit.
func ObserveAudit(failed bool, score int) {
	result := "completed"
	if failed {
		result = "fetch_failed"
	}
	AuditsTotal.WithLabelValues(result).Inc()
	AuditScore.Observe(float64(score))
}

// ObserveProbeFailure records a soft probe failure.
func ObserveProbeFailure(probe string) {
	ProbeFailuresTotal.WithLabelValues(probe).Inc()
}

// Handler serves the instruments of Registry in the Prometheus text format.
func Handler() http.Handler {
	reg := Registry()
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// ObserveAPIRequest counts one request handled by the API.
func ObserveAPIRequest(method, route string, code int) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
