package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/pkg/db"
)

const (
	IngestOutcomeCompleted = "completed"
	IngestOutcomeFailed    = "failed"
	IngestOutcomeCanceled  = "canceled"
)

const (
	IngestRowAccepted = "accepted"
	IngestRowRejected = "rejected"
)

const (
	IngestFailureCanceled            = "canceled"
	IngestFailureDeadlineExceeded    = "deadline_exceeded"
	IngestFailureCacheNotReady       = "cache_not_initialized"
	IngestFailureStreamRead          = "stream_read"
	IngestFailureStrictRejection     = "strict_rejection"
	IngestFailureColumnLayout        = "column_layout"
	IngestFailureDBLockTimeout       = "db_lock_timeout"
	IngestFailureSerializationFailed = "serialization_failure"
	IngestFailureUniqueViolation     = "unique_violation"
	IngestFailureLoad                = "load"
	IngestFailureUnknown             = "unknown"
)

// IngestMetrics tracks bulk ingestion throughput and failure classes.
type IngestMetrics struct {
	runs         *prometheus.CounterVec
	rows         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	rowsPerRun   prometheus.Observer
	cacheLoads   *prometheus.CounterVec
	cacheEntries *prometheus.GaugeVec
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

// Ingest returns the process-wide ingest metrics registered on the default registry.
func Ingest() *IngestMetrics {
	return IngestWithConfig(Config{})
}

func IngestWithConfig(cfg Config) *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = NewIngestMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestMetrics
}

// NewIngestMetrics registers a fresh set of collectors. The loader CLI uses
// its own registry so the pushed payload only carries batch metrics.
func NewIngestMetrics(registerer prometheus.Registerer, cfg Config) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "replenish"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "replenish_ingest_runs_total",
		Help:        "Bulk ingestion runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "replenish_ingest_rows_total",
		Help:        "Records seen by the ingestion pipeline by result and rejection reason.",
		ConstLabels: constLabels,
	}, []string{"result", "reason"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "replenish_ingest_failures_total",
		Help:        "Aborted ingestion runs by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "replenish_ingest_run_duration_seconds",
		Help:        "Wall time of a bulk ingestion run.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	rowsPerRun := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "replenish_ingest_run_records",
		Help:        "Records processed per run.",
		Buckets:     prometheus.ExponentialBuckets(10, 10, 7),
		ConstLabels: constLabels,
	})
	cacheLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "replenish_dimension_cache_loads_total",
		Help:        "Dimension cache full loads by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	cacheEntries := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "replenish_dimension_cache_entries",
		Help:        "Entries in the published dimension snapshot.",
		ConstLabels: constLabels,
	}, []string{"dimension"})

	registerer.MustRegister(runs, rows, failures, runDuration, rowsPerRun, cacheLoads, cacheEntries)

	return &IngestMetrics{
		runs:         runs,
		rows:         rows,
		failures:     failures,
		runDuration:  runDuration,
		rowsPerRun:   rowsPerRun,
		cacheLoads:   cacheLoads,
		cacheEntries: cacheEntries,
	}
}

// ObserveRun records one finished run. err is nil for completed runs.
func (m *IngestMetrics) ObserveRun(summary ingestdomain.Summary, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := IngestOutcome(err)
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.rowsPerRun.Observe(float64(summary.Total()))

	if err != nil {
		m.failures.WithLabelValues(ClassifyIngestFailure(err)).Inc()
		return
	}
	if summary.Accepted > 0 {
		m.rows.WithLabelValues(IngestRowAccepted, "").Add(float64(summary.Accepted))
	}
	for reason, n := range summary.Rejections {
		if n > 0 {
			m.rows.WithLabelValues(IngestRowRejected, string(reason)).Add(float64(n))
		}
	}
}

func (m *IngestMetrics) ObserveCacheLoad(locations, products int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cacheLoads.WithLabelValues("error").Inc()
		return
	}
	m.cacheLoads.WithLabelValues("ok").Inc()
	m.cacheEntries.WithLabelValues("location").Set(float64(locations))
	m.cacheEntries.WithLabelValues("product").Set(float64(products))
}

// IngestOutcome maps a run error to its outcome label.
func IngestOutcome(err error) string {
	switch {
	case err == nil:
		return IngestOutcomeCompleted
	case errors.Is(err, context.Canceled):
		return IngestOutcomeCanceled
	default:
		return IngestOutcomeFailed
	}
}

// ClassifyIngestFailure buckets a run error into a bounded label set.
func ClassifyIngestFailure(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return IngestFailureCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return IngestFailureDeadlineExceeded
	case errors.Is(err, ingestdomain.ErrCacheNotInitialized):
		return IngestFailureCacheNotReady
	case errors.Is(err, ingestdomain.ErrStreamRead):
		return IngestFailureStreamRead
	case errors.Is(err, ingestdomain.ErrStrictRejection):
		return IngestFailureStrictRejection
	case errors.Is(err, ingestdomain.ErrColumnLayout):
		return IngestFailureColumnLayout
	case db.IsLockTimeout(err):
		return IngestFailureDBLockTimeout
	case db.IsSerializationFailure(err):
		return IngestFailureSerializationFailed
	case db.IsDuplicateKeyErr(err):
		return IngestFailureUniqueViolation
	case errors.Is(err, ingestdomain.ErrLoad):
		return IngestFailureLoad
	default:
		return IngestFailureUnknown
	}
}
