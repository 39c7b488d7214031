package observability

import (
	"testing"

	"github.com/smallbiznis/replenish/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:  " production ",
		OTLPEndpoint: "collector:4317",
	})

	assert.Equal(t, "replenish", cfg.Service.Name)
	assert.Equal(t, "production", cfg.Service.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "grpc", cfg.Traces.Protocol)
	assert.Equal(t, "collector:4317", cfg.Traces.Endpoint)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigClampsRatio(t *testing.T) {
	high := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{SamplingRatio: 4}})
	low := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{SamplingRatio: -1}})

	assert.Equal(t, 1.0, high.Traces.Ratio)
	assert.Equal(t, 0.0, low.Traces.Ratio)
}

func TestConfigDebug(t *testing.T) {
	cases := []struct {
		level string
		env   string
		want  bool
	}{
		{level: "DEBUG", env: "production", want: true},
		{level: "info", env: "Local", want: true},
		{level: "info", env: "test", want: true},
		{level: "warn", env: "staging", want: false},
	}
	for _, tc := range cases {
		cfg := Config{LogLevel: tc.level, Service: Service{Environment: tc.env}}
		assert.Equal(t, tc.want, cfg.Debug(), "%s/%s", tc.level, tc.env)
	}
}
