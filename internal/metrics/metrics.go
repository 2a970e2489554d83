// Package metrics exposes Prometheus collectors for the news pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal                *prometheus.CounterVec
	cycleDurationSeconds       prometheus.Histogram
	itemsListedTotal           *prometheus.CounterVec
	itemsEnqueuedTotal         *prometheus.CounterVec
	itemsDuplicateTotal        *prometheus.CounterVec
	sourceFailuresTotal        *prometheus.CounterVec
	itemOutcomesTotal          *prometheus.CounterVec
	itemDurationSeconds        *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	pipelineState              prometheus.Gauge
	sinkFailuresTotal          *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	queueDepth atomic.Pointer[func() int]

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_cycles_total",
				Help: "Total number of producer cycles, labeled by result.",
			},
			[]string{"result"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "news_cycle_duration_seconds",
				Help:    "Histogram of producer cycle durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		itemsListedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_items_listed_total",
				Help: "Total number of listings returned by sources, labeled by kind.",
			},
			[]string{"kind"},
		)

		itemsEnqueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_items_enqueued_total",
				Help: "Total number of work items enqueued, labeled by kind.",
			},
			[]string{"kind"},
		)

		itemsDuplicateTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_items_duplicate_total",
				Help: "Total number of listings skipped by the per-cycle dedup set, labeled by kind.",
			},
			[]string{"kind"},
		)

		sourceFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_source_failures_total",
				Help: "Total number of sources abandoned mid-cycle after a lister error.",
			},
			[]string{"kind"},
		)

		itemOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_item_outcomes_total",
				Help: "Total number of processed items, labeled by kind, outcome and drop stage.",
			},
			[]string{"kind", "outcome", "stage"},
		)

		itemDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "news_item_duration_seconds",
				Help:    "Histogram of per-item processing time, labeled by kind.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"kind"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "news_active_workers",
				Help: "Number of workers currently processing an item.",
			},
		)

		pipelineState = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "news_pipeline_state",
				Help: "Pipeline lifecycle state: 0 running, 1 draining, 2 stopped.",
			},
		)

		sinkFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_sink_failures_total",
				Help: "Total number of best-effort sink writes that failed, labeled by sink.",
			},
			[]string{"sink"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "news_upstream_rate_limit_delay_seconds",
				Help:    "Time upstream requests waited on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)

		promauto.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "news_queue_depth",
				Help: "Number of items waiting in the work queue.",
			},
			func() float64 {
				if fn := queueDepth.Load(); fn != nil {
					return float64((*fn)())
				}
				return 0
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetQueueDepthSource installs the function sampled by the queue depth gauge.
func SetQueueDepthSource(fn func() int) {
	Init()
	queueDepth.Store(&fn)
}

// CycleStats is the subset of a producer cycle summary exported as metrics.
type CycleStats struct {
	Listed        map[string]int
	Enqueued      map[string]int
	Duplicates    map[string]int
	FailedSources []string
	Duration      time.Duration
}

// ObserveCycle records a completed producer cycle.
func ObserveCycle(stats CycleStats) {
	Init()
	cyclesTotal.WithLabelValues("completed").Inc()
	cycleDurationSeconds.Observe(stats.Duration.Seconds())
	for kind, n := range stats.Listed {
		itemsListedTotal.WithLabelValues(kind).Add(float64(n))
	}
	for kind, n := range stats.Enqueued {
		itemsEnqueuedTotal.WithLabelValues(kind).Add(float64(n))
	}
	for kind, n := range stats.Duplicates {
		itemsDuplicateTotal.WithLabelValues(kind).Add(float64(n))
	}
	for _, kind := range stats.FailedSources {
		sourceFailuresTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveCycleResult counts a cycle that did not complete normally
// ("skipped" or "failed").
func ObserveCycleResult(result string) {
	Init()
	cyclesTotal.WithLabelValues(result).Inc()
}

// ObserveItem records one worker outcome. stage is empty unless dropped.
func ObserveItem(kind, outcome, stage string, duration time.Duration) {
	Init()
	itemOutcomesTotal.WithLabelValues(kind, outcome, stage).Inc()
	itemDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveSinkFailure counts a failed best-effort sink write.
func ObserveSinkFailure(sink string) {
	Init()
	sinkFailuresTotal.WithLabelValues(sink).Inc()
}

// ObserveRateLimitDelay records how long a request to host was held back.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(delay.Seconds())
}

// SetPipelineState records the lifecycle state ordinal.
func SetPipelineState(state int) {
	Init()
	pipelineState.Set(float64(state))
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

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
