// Package observability provides Prometheus metrics for the application.
// All Record methods are safe to call on a nil *Metrics, which disables collection.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediafetch"

// Metrics holds all application metrics.
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsSucceeded prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	SessionsCancelled prometheus.Counter
	SessionsRunning   prometheus.Gauge
	SessionDuration   prometheus.Histogram
	DownloadBytes     prometheus.Counter
	EventsDropped     prometheus.Counter

	// History metrics
	HistoryRecords prometheus.Gauge

	// Format lister metrics
	FormatRequestsTotal *prometheus.CounterVec
	FormatDuration      prometheus.Histogram

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec

	// Dependency metrics
	DependencyChecks *prometheus.CounterVec
}

// New creates all application metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of download sessions started",
		}),
		SessionsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "succeeded_total",
			Help:      "Total number of download sessions that produced a file",
		}),
		SessionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "failed_total",
			Help:      "Total number of failed download sessions by error kind",
		}, []string{"kind"}),
		SessionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "cancelled_total",
			Help:      "Total number of cancelled download sessions",
		}),
		SessionsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "running",
			Help:      "Number of sessions currently running",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Histogram of session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "download_bytes_total",
			Help:      "Total size of downloaded files",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "events_dropped_total",
			Help:      "Progress events dropped because the consumer fell behind",
		}),

		HistoryRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "records_current",
			Help:      "Current number of history records",
		}),

		FormatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "formats",
			Name:      "requests_total",
			Help:      "Total number of format listings by result kind",
		}, []string{"kind"}),
		FormatDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "formats",
			Name:      "duration_seconds",
			Help:      "Histogram of format listing duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Histogram of HTTP response sizes in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
		}, []string{"method", "path"}),

		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of downloader runs made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),

		DependencyChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deps",
			Name:      "checks_total",
			Help:      "Total number of dependency checks by result",
		}, []string{"result"}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SessionTimer returns a function to record session duration.
func (m *Metrics) SessionTimer() func() {
	start := time.Now()

	return func() {
		if m == nil {
			return
		}

		m.SessionDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, size int) {
	if m == nil {
		return
	}

	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
}

// RecordSessionStarted increments the sessions started counter.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}

	m.SessionsStarted.Inc()
	m.SessionsRunning.Inc()
}

// RecordSessionSucceeded records a successful session and the size of its file.
func (m *Metrics) RecordSessionSucceeded(bytes int64) {
	if m == nil {
		return
	}

	m.SessionsSucceeded.Inc()
	m.SessionsRunning.Dec()
	m.DownloadBytes.Add(float64(max(bytes, 0)))
}

// RecordSessionFailed records a failed session.
func (m *Metrics) RecordSessionFailed(kind string) {
	if m == nil {
		return
	}

	m.SessionsFailed.WithLabelValues(kind).Inc()
	m.SessionsRunning.Dec()
}

// RecordSessionCancelled records a cancelled session.
func (m *Metrics) RecordSessionCancelled() {
	if m == nil {
		return
	}

	m.SessionsCancelled.Inc()
	m.SessionsRunning.Dec()
}

// RecordEventDropped records a progress event dropped for a slow consumer.
func (m *Metrics) RecordEventDropped() {
	if m == nil {
		return
	}

	m.EventsDropped.Inc()
}

// SetHistoryRecords sets the number of history records.
func (m *Metrics) SetHistoryRecords(count int) {
	if m == nil {
		return
	}

	m.HistoryRecords.Set(float64(count))
}

// RecordFormatRequest records a format listing.
func (m *Metrics) RecordFormatRequest(kind string, duration time.Duration) {
	if m == nil {
		return
	}

	m.FormatRequestsTotal.WithLabelValues(kind).Inc()
	m.FormatDuration.Observe(duration.Seconds())
}

// RecordProxyRequest records a downloader run through a proxy.
func (m *Metrics) RecordProxyRequest(proxy string) {
	if m == nil {
		return
	}

	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	if m == nil {
		return
	}

	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// RecordDependencyCheck records the result of a dependency check.
func (m *Metrics) RecordDependencyCheck(ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "missing"
	}

	m.DependencyChecks.WithLabelValues(result).Inc()
}
