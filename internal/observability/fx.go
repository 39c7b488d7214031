package observability

import (
	"github.com/smallbiznis/replenish/internal/observability/logger"
	"github.com/smallbiznis/replenish/internal/observability/metrics"
	"github.com/smallbiznis/replenish/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the OTel tracer and meter providers, and
// the prometheus collectors for HTTP and ingest runs.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		loggerConfig,
		logger.New,
		tracingConfig,
		tracing.NewProvider,
		metricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.IngestWithConfig,
	),
	// installs the global tracer provider and propagator
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func loggerConfig(cfg Config) logger.Config {
	debug := cfg.Debug()
	return logger.Config{
		ServiceName:         cfg.Service.Name,
		Environment:         cfg.Service.Environment,
		Version:             cfg.Service.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               debug,
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}

func tracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Traces.Enabled,
		ServiceName:      cfg.Service.Name,
		ServiceVersion:   cfg.Service.Version,
		Environment:      cfg.Service.Environment,
		ExporterEndpoint: cfg.Traces.Endpoint,
		ExporterProtocol: cfg.Traces.Protocol,
		SamplingRatio:    cfg.Traces.Ratio,
	}
}

func metricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Traces.Enabled,
		ExporterEndpoint: cfg.Traces.Endpoint,
		ExporterProtocol: cfg.Traces.Protocol,
		ServiceName:      cfg.Service.Name,
		Environment:      cfg.Service.Environment,
	}
}
