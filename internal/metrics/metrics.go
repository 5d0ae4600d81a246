// Package metrics exposes Prometheus collectors for the worker node.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksTotal                 *prometheus.CounterVec
	taskDurationSeconds        *prometheus.HistogramVec
	queueDepth                 prometheus.Gauge
	activeWorkers              prometheus.Gauge
	resultsEmittedTotal        *prometheus.CounterVec
	crawlPagesTotal            *prometheus.CounterVec
	robotsChecksTotal          *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the Prometheus collectors with the default registry.
// It is safe to call this function multiple times; every observer calls it.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_tasks_total",
				Help: "Total number of task chunks processed, labeled by type and outcome.",
			},
			[]string{"type", "outcome"},
		)

		taskDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_task_duration_seconds",
				Help:    "Histogram of task chunk execution time, labeled by type.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"type"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_queue_depth",
				Help: "Number of task chunks waiting in the local queue.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_active_workers",
				Help: "Number of workers currently executing a task chunk.",
			},
		)

		resultsEmittedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_results_emitted_total",
				Help: "Total number of taskResult emissions, labeled by status.",
			},
			[]string{"status"},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		robotsChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_robots_checks_total",
				Help: "Total number of robots.txt permission checks, labeled by result.",
			},
			[]string{"result"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of ops HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of ops HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveTask records one finished task chunk. Unregistered types are folded
// into "unknown" so broker input cannot grow label cardinality.
func ObserveTask(taskType, outcome string, duration time.Duration) {
	Init()
	switch taskType {
	case "MEAN", "FACTORIZATION", "CRAWLER":
	default:
		taskType = "unknown"
	}
	tasksTotal.WithLabelValues(taskType, outcome).Inc()
	taskDurationSeconds.WithLabelValues(taskType).Observe(duration.Seconds())
}

// SetQueueDepth records the current local queue length.
func SetQueueDepth(n int) {
	Init()
	queueDepth.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveResultEmitted counts a taskResult emission attempt.
func ObserveResultEmitted(status string) {
	Init()
	resultsEmittedTotal.WithLabelValues(status).Inc()
}

// ObserveCrawl increments the page fetch counter.
func ObserveCrawl(site string, status string) {
	Init()
	crawlPagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveRobotsCheck counts a robots.txt decision ("allowed", "disallowed", "error").
func ObserveRobotsCheck(result string) {
	Init()
	robotsChecksTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit delay.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the ops HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
