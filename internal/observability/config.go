package observability

import (
	"strings"

	"github.com/smallbiznis/replenish/internal/config"
)

// Service identifies the running binary in logs, spans and metric resources.
type Service struct {
	Name        string
	Environment string
	Version     string
}

// Config is the observability view of the application config.
type Config struct {
	Service Service

	LogLevel  string
	LogFormat string

	Traces TraceSettings
}

type TraceSettings struct {
	Enabled  bool
	Endpoint string
	Protocol string
	// Ratio is clamped to [0, 1].
	Ratio float64
}

var devEnvironments = map[string]struct{}{
	"dev":         {},
	"development": {},
	"local":       {},
	"test":        {},
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "replenish"
	}

	tel := cfg.Telemetry
	protocol := tel.OTLPProtocol
	if protocol == "" {
		protocol = "grpc"
	}

	return Config{
		Service: Service{
			Name:        name,
			Environment: strings.TrimSpace(cfg.Environment),
			Version:     strings.TrimSpace(cfg.AppVersion),
		},
		LogLevel:  orDefault(tel.LogLevel, "info"),
		LogFormat: orDefault(tel.LogFormat, "json"),
		Traces: TraceSettings{
			Enabled:  tel.TracesEnabled,
			Endpoint: strings.TrimSpace(cfg.OTLPEndpoint),
			Protocol: protocol,
			Ratio:    clampRatio(tel.SamplingRatio),
		},
	}
}

// Debug is true for debug logging or any development environment.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	_, ok := devEnvironments[strings.ToLower(strings.TrimSpace(c.Service.Environment))]
	return ok
}

func orDefault(value, def string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return def
	}
	return value
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}
