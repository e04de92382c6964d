// Package metrics exposes prometheus collectors for ingestion, sessions,
// alerts, the cache, write-behind, the scheduler and the HTTP surface.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/aggregator"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/alerting"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/consumer"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/session"
)

const namespace = "radmeter"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	readingsIngested *prometheus.CounterVec
	sessionOps       *prometheus.CounterVec
	alertsRaised     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  f,
		readingsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "ingested_total",
			Help:      "Sensor readings offered to the cache by source and result",
		}, []string{"source", "result"}),
		sessionOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "transitions_total",
			Help:      "Session transitions by action (start, resume, close) and result",
		}, []string{"action", "result"}),
		alertsRaised: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "raised_total",
			Help:      "Safety alerts created by type",
		}, []string{"type"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WatchCache exports cache occupancy, sampled on scrape.
func (m *Metrics) WatchCache(stats func() models.CacheStats) {
	gauge := func(name, help string, v func(models.CacheStats) int) {
		m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v(stats())) })
	}
	gauge("readings", "Readings held in the cache", func(s models.CacheStats) int { return s.Total })
	gauge("unsaved_readings", "Cached readings not yet persisted", func(s models.CacheStats) int { return s.Unsaved })
	gauge("failed_save_attempts", "Failed save attempts across cached readings", func(s models.CacheStats) int { return s.FailedSaves })
}

// WatchWriteBehind exports the write-behind counters.
func (m *Metrics) WatchWriteBehind(stats func() consumer.WriteBehindStats) {
	counter := func(name, help string, v func(consumer.WriteBehindStats) int64) {
		m.factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "write_behind",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v(stats())) })
	}
	counter("passes_total", "Write-behind passes", func(s consumer.WriteBehindStats) int64 { return s.Passes })
	counter("saved_total", "Readings persisted", func(s consumer.WriteBehindStats) int64 { return s.Saved })
	counter("failed_total", "Reading saves that failed", func(s consumer.WriteBehindStats) int64 { return s.Failed })
	counter("store_errors_total", "Passes aborted because the store was unreachable", func(s consumer.WriteBehindStats) int64 { return s.StoreErrors })
}

// WatchScheduler exports the aggregation scheduler state.
func (m *Metrics) WatchScheduler(status func() aggregator.Status) {
	gauge := func(name, help string, v func(aggregator.Status) float64) {
		m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      name,
			Help:      help,
		}, func() float64 { return v(status()) })
	}
	gauge("running", "1 while the scheduler loop runs", func(s aggregator.Status) float64 {
		if s.Running {
			return 1
		}
		return 0
	})
	gauge("last_pass_updated", "Summaries updated by the last pass", func(s aggregator.Status) float64 {
		if s.LastPass == nil {
			return 0
		}
		return float64(s.LastPass.Updated)
	})
	gauge("last_pass_failed", "Employees that failed in the last pass", func(s aggregator.Status) float64 {
		if s.LastPass == nil {
			return 0
		}
		return float64(s.LastPass.Failed)
	})
	gauge("last_pass_duration_seconds", "Duration of the last pass", func(s aggregator.Status) float64 {
		if s.LastPass == nil {
			return 0
		}
		return s.LastPass.Finished.Sub(s.LastPass.Started).Seconds()
	})
	gauge("stale_sessions_closed", "Stale sessions auto-closed since start", func(s aggregator.Status) float64 {
		return float64(s.StaleClosed)
	})
}

// Ingestor is anything that accepts sensor input.
type Ingestor interface {
	Add(in models.ReadingInput) (models.Reading, error)
}

type countingIngestor struct {
	next   Ingestor
	source string
	m      *Metrics
}

func (c countingIngestor) Add(in models.ReadingInput) (models.Reading, error) {
	r, err := c.next.Add(in)
	c.m.readingsIngested.WithLabelValues(c.source, resultLabel(err)).Inc()
	return r, err
}

// Ingestor counts readings offered through next under source.
func (m *Metrics) Ingestor(next Ingestor, source string) Ingestor {
	return countingIngestor{next: next, source: source, m: m}
}

// SessionOps opens and closes sessions.
type SessionOps interface {
	StartOrResume(ctx context.Context, employeeID string) (*session.StartResult, error)
	Close(ctx context.Context, employeeID string) (*session.CloseResult, error)
}

type countingSessions struct {
	next SessionOps
	m    *Metrics
}

func (c countingSessions) StartOrResume(ctx context.Context, employeeID string) (*session.StartResult, error) {
	res, err := c.next.StartOrResume(ctx, employeeID)
	action := "start"
	if res != nil && res.Resumed {
		action = "resume"
	}
	c.m.sessionOps.WithLabelValues(action, resultLabel(err)).Inc()
	return res, err
}

func (c countingSessions) Close(ctx context.Context, employeeID string) (*session.CloseResult, error) {
	res, err := c.next.Close(ctx, employeeID)
	c.m.sessionOps.WithLabelValues("close", resultLabel(err)).Inc()
	return res, err
}

// Sessions counts session transitions made through next.
func (m *Metrics) Sessions(next SessionOps) SessionOps {
	return countingSessions{next: next, m: m}
}

type countingChecker struct {
	next aggregator.AlertChecker
	m    *Metrics
}

func (c countingChecker) Check(ctx context.Context, in alerting.Input) ([]models.SafetyAlert, error) {
	created, err := c.next.Check(ctx, in)
	for _, a := range created {
		c.m.alertsRaised.WithLabelValues(a.AlertType).Inc()
	}
	return created, err
}

// AlertChecker counts alerts created through next.
func (m *Metrics) AlertChecker(next aggregator.AlertChecker) aggregator.AlertChecker {
	return countingChecker{next: next, m: m}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware times requests by the mux pattern that served them.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
