package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"gorm.io/gorm"
)

func TestClassifyIngestFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "canceled", err: fmt.Errorf("read: %w", context.Canceled), want: IngestFailureCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: IngestFailureDeadlineExceeded},
		{name: "cache", err: ingestdomain.ErrCacheNotInitialized, want: IngestFailureCacheNotReady},
		{name: "stream", err: fmt.Errorf("%w: unexpected EOF", ingestdomain.ErrStreamRead), want: IngestFailureStreamRead},
		{name: "strict", err: fmt.Errorf("%w: unknown_product", ingestdomain.ErrStrictRejection), want: IngestFailureStrictRejection},
		{name: "lock_timeout", err: fmt.Errorf("%w: %w", ingestdomain.ErrLoad, &pgconn.PgError{Code: "55P03"}), want: IngestFailureDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: IngestFailureSerializationFailed},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: IngestFailureUniqueViolation},
		{name: "load", err: fmt.Errorf("%w: broken pipe", ingestdomain.ErrLoad), want: IngestFailureLoad},
		{name: "unknown", err: errors.New("boom"), want: IngestFailureUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyIngestFailure(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObserveRunCountsRows(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewIngestMetrics(registry, Config{ServiceName: "replenish", Environment: "test"})

	summary := ingestdomain.Summary{
		Accepted: 4,
		Rejected: 3,
		Rejections: map[ingestdomain.RejectionReason]int64{
			ingestdomain.RejectUnknownLocation: 2,
			ingestdomain.RejectMissingField:    1,
		},
	}
	m.ObserveRun(summary, time.Second, nil)

	if got := testutil.ToFloat64(m.rows.WithLabelValues(IngestRowAccepted, "")); got != 4 {
		t.Fatalf("expected 4 accepted rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.rows.WithLabelValues(IngestRowRejected, "unknown_location")); got != 2 {
		t.Fatalf("expected 2 unknown_location rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(IngestOutcomeCompleted)); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
}

func TestObserveRunFailureDoesNotCountRows(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewIngestMetrics(registry, Config{})

	m.ObserveRun(ingestdomain.Summary{Accepted: 10}, time.Millisecond, context.Canceled)

	if got := testutil.ToFloat64(m.runs.WithLabelValues(IngestOutcomeCanceled)); got != 1 {
		t.Fatalf("expected 1 canceled run, got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues(IngestFailureCanceled)); got != 1 {
		t.Fatalf("expected 1 canceled failure, got %v", got)
	}
	if got := testutil.CollectAndCount(m.rows); got != 0 {
		t.Fatalf("expected no row series, got %d", got)
	}
}

func TestObserveCacheLoad(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewIngestMetrics(registry, Config{})

	m.ObserveCacheLoad(1000, 5000, nil)
	m.ObserveCacheLoad(0, 0, errors.New("db down"))

	if got := testutil.ToFloat64(m.cacheEntries.WithLabelValues("product")); got != 5000 {
		t.Fatalf("expected 5000 products, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLoads.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed load, got %v", got)
	}
}
