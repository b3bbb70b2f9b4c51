// Package metrics holds the Prometheus collectors shared by the API, worker
// and graph-writer binaries.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "product_crawler"

// Fetch latency buckets in seconds; the last bound matches the default fetch timeout.
var fetchLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

var commitLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics is nil-safe: every method is a no-op on a nil receiver so the crawl
// core can run without a registry.
type Metrics struct {
	pagesFetched *prometheus.CounterVec
	fetchLatency prometheus.Histogram
	domains      *prometheus.CounterVec
	productURLs  prometheus.Counter
	jobs         *prometheus.CounterVec
	graphWrites  *prometheus.CounterVec

	jobsInFlight  prometheus.Gauge
	commitPending prometheus.Gauge
	commitErrors  prometheus.Counter
	commitLatency prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Page fetches by outcome (ok, non_success, timeout, transport_error).",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_latency_seconds",
			Help:      "Page fetch latency.",
			Buckets:   fetchLatencyBuckets,
		}),
		domains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domains_total",
			Help:      "Domain crawls by result (completed, dropped).",
		}, []string{"result"}),
		productURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_urls_total",
			Help:      "Product URLs discovered across completed domain crawls.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Async crawl jobs handled by the worker, by result.",
		}, []string{"result"}),
		graphWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_writes_total",
			Help:      "Crawl results written to Neo4j, by result.",
		}, []string{"result"}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_jobs_in_flight",
			Help:      "Crawl sessions the worker is currently running.",
		}),
		commitPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_commit_pending",
			Help:      "Finished messages buffered until earlier offsets finish.",
		}),
		commitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_commit_errors_total",
			Help:      "Kafka offset commit failures.",
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_commit_latency_seconds",
			Help:      "Kafka offset commit latency.",
			Buckets:   commitLatencyBuckets,
		}),
	}
	reg.MustRegister(m.pagesFetched, m.fetchLatency, m.domains, m.productURLs, m.jobs, m.graphWrites,
		m.jobsInFlight, m.commitPending, m.commitErrors, m.commitLatency)
	return m
}

// ObserveFetch records one page fetch.
func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.fetchLatency.Observe(d.Seconds())
	}
}

// DomainCompleted records a domain crawl that produced a result.
func (m *Metrics) DomainCompleted(productURLs int) {
	if m == nil {
		return
	}
	m.domains.WithLabelValues("completed").Inc()
	m.productURLs.Add(float64(productURLs))
}

// DomainDropped records a domain crawl that failed and was omitted.
func (m *Metrics) DomainDropped() {
	if m == nil {
		return
	}
	m.domains.WithLabelValues("dropped").Inc()
}

// JobHandled records a worker job outcome (received, skipped, invalid, completed, failed).
func (m *Metrics) JobHandled(result string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(result).Inc()
}

// GraphWrite records a graph-writer outcome (written, failed, invalid).
func (m *Metrics) GraphWrite(result string) {
	if m == nil {
		return
	}
	m.graphWrites.WithLabelValues(result).Inc()
}

// JobsInFlight adjusts the in-flight session gauge by delta.
func (m *Metrics) JobsInFlight(delta int) {
	if m == nil {
		return
	}
	m.jobsInFlight.Add(float64(delta))
}

// CommitPending adjusts the buffered-commit gauge by delta.
func (m *Metrics) CommitPending(delta int) {
	if m == nil {
		return
	}
	m.commitPending.Add(float64(delta))
}

// ObserveCommit records one offset commit attempt.
func (m *Metrics) ObserveCommit(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.commitLatency.Observe(d.Seconds())
	if err != nil {
		m.commitErrors.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
}
