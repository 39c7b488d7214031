package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/replenish/internal/cache"
	"github.com/smallbiznis/replenish/internal/clock"
	"github.com/smallbiznis/replenish/internal/config"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/internal/ingest/validator"
	obscontext "github.com/smallbiznis/replenish/internal/observability/context"
	"github.com/smallbiznis/replenish/internal/observability/logger"
	"github.com/smallbiznis/replenish/internal/observability/metrics"
	"github.com/smallbiznis/replenish/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Lookup        cache.DimensionLookup
	Loader        ingestdomain.Loader
	Config        *config.IngestConfigHolder
	Metrics       *metrics.Metrics       `optional:"true"`
	IngestMetrics *metrics.IngestMetrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	lookup        cache.DimensionLookup
	validator     *validator.Validator
	loader        ingestdomain.Loader
	config        *config.IngestConfigHolder
	metrics       *metrics.Metrics
	ingestMetrics *metrics.IngestMetrics
	tracer        trace.Tracer
}

func New(p Params) ingestdomain.Service {
	return &Service{
		log:           p.Log.Named("ingest.service"),
		lookup:        p.Lookup,
		validator:     validator.New(p.Lookup, p.Clock),
		loader:        p.Loader,
		config:        p.Config,
		metrics:       p.Metrics,
		ingestMetrics: p.IngestMetrics,
		tracer:        otel.Tracer("replenish/ingest"),
	}
}

// Ingest pulls every record from source through validation into a single
// loader session. Rejected records are counted; infrastructure failures and
// cancellation abort the session so nothing from the run is committed.
func (s *Service) Ingest(ctx context.Context, source ingestdomain.RecordSource) (summary ingestdomain.Summary, err error) {
	runID := obscontext.IngestRunIDFromContext(ctx)
	if runID == "" {
		runID = ulid.Make().String()
		ctx = obscontext.WithIngestRunID(ctx, runID)
	}
	cfg := s.config.Get()

	ctx, span := s.tracer.Start(ctx, "ingest.run", trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("ingest.run_id", runID),
		attribute.String("ingest.policy", cfg.Policy),
	)...))
	start := time.Now()
	log := logger.WithContext(ctx, s.log)

	defer func() {
		elapsed := time.Since(start)
		s.ingestMetrics.ObserveRun(summary, elapsed, err)
		s.recordOtel(ctx, summary, err)

		span.SetAttributes(tracing.SafeAttributes(
			attribute.Int64("ingest.accepted", summary.Accepted),
			attribute.Int64("ingest.rejected", summary.Rejected),
			attribute.String("ingest.outcome", metrics.IngestOutcome(err)),
		)...)
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, metrics.ClassifyIngestFailure(err))
			log.Warn("ingest run aborted",
				zap.Int64("accepted", summary.Accepted),
				zap.Int64("rejected", summary.Rejected),
				zap.String("reason", metrics.ClassifyIngestFailure(err)),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
		} else {
			log.Info("ingest run completed",
				zap.Int64("accepted", summary.Accepted),
				zap.Int64("rejected", summary.Rejected),
				zap.Any("rejections", summary.Rejections),
				zap.Duration("elapsed", elapsed),
			)
		}
		span.End()
	}()

	if !s.lookup.Ready() {
		return ingestdomain.Summary{}, ingestdomain.ErrCacheNotInitialized
	}

	session, err := s.loader.Open(ctx, ingestdomain.Columns)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ingestdomain.Summary{}, ctxErr
		}
		if errors.Is(err, ingestdomain.ErrColumnLayout) {
			return ingestdomain.Summary{}, err
		}
		return ingestdomain.Summary{}, fmt.Errorf("%w: open session: %w", ingestdomain.ErrLoad, err)
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		if abortErr := session.Abort(context.WithoutCancel(ctx)); abortErr != nil {
			log.Warn("session abort failed", zap.Error(abortErr))
		}
	}()

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}

		// only a bare io.EOF ends the stream; wrapped EOFs are read failures
		rec, readErr := source.Next(ctx)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) {
				return summary, readErr
			}
			return summary, fmt.Errorf("%w: %w", ingestdomain.ErrStreamRead, readErr)
		}

		row, vErr := s.validator.Validate(rec)
		if vErr != nil {
			var reason ingestdomain.RejectionReason
			if !errors.As(vErr, &reason) {
				return summary, vErr
			}
			summary.Reject(reason)
			if cfg.Strict() {
				return summary, fmt.Errorf("%w: record %d: %w", ingestdomain.ErrStrictRejection, summary.Total(), reason)
			}
			continue
		}

		if wErr := session.WriteRow(ctx, row); wErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			return summary, fmt.Errorf("%w: write row: %w", ingestdomain.ErrLoad, wErr)
		}
		summary.Accepted++
	}

	if _, cErr := session.Complete(ctx); cErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		return summary, fmt.Errorf("%w: complete: %w", ingestdomain.ErrLoad, cErr)
	}
	completed = true
	return summary, nil
}

func (s *Service) recordOtel(ctx context.Context, summary ingestdomain.Summary, err error) {
	if s.metrics == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.metrics.RecordIngestRun(ctx, metrics.IngestOutcome(err))
	if err != nil {
		return
	}
	s.metrics.RecordIngestRows(ctx, metrics.IngestRowAccepted, "", summary.Accepted)
	for reason, n := range summary.Rejections {
		s.metrics.RecordIngestRows(ctx, metrics.IngestRowRejected, string(reason), n)
	}
}

var _ ingestdomain.Service = (*Service)(nil)
