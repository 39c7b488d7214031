package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// PolicyLenient counts rejected records and keeps going.
	PolicyLenient = "lenient"
	// PolicyStrict aborts the whole run on the first rejected record.
	PolicyStrict = "strict"
)

// IngestConfig tunes the bulk ingestion pipeline. It is reloaded at runtime
// and read once at the start of every run.
type IngestConfig struct {
	Policy     string `mapstructure:"policy"`
	BufferRows int    `mapstructure:"bufferRows"`
	BatchSize  int    `mapstructure:"batchSize"`
}

func (c IngestConfig) Strict() bool {
	return c.Policy == PolicyStrict
}

func DefaultIngestConfig(d IngestDefaults) IngestConfig {
	return IngestConfig{
		Policy:     d.Policy,
		BufferRows: d.BufferRows,
		BatchSize:  d.BatchSize,
	}
}

type IngestConfigHolder struct {
	current atomic.Value // holds IngestConfig
}

// NewStaticIngestConfigHolder returns a holder that never reloads.
func NewStaticIngestConfigHolder(cfg IngestConfig) *IngestConfigHolder {
	holder := &IngestConfigHolder{}
	holder.current.Store(normalizeIngestConfig(cfg))
	return holder
}

func NewIngestConfigHolder(cfg Config, log *zap.Logger) (*IngestConfigHolder, error) {
	log = log.Named("ingest.config")
	v := viper.New()

	v.SetConfigName("ingest")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/replenish")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REPLENISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultIngestConfig(cfg.Ingest)
	v.SetDefault("ingest.policy", defaults.Policy)
	v.SetDefault("ingest.bufferRows", defaults.BufferRows)
	v.SetDefault("ingest.batchSize", defaults.BatchSize)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var loaded IngestConfig
	if err := v.UnmarshalKey("ingest", &loaded); err != nil {
		return nil, err
	}
	loaded = normalizeIngestConfig(loaded)
	if err := ValidateIngestConfig(loaded); err != nil {
		return nil, err
	}

	holder := &IngestConfigHolder{}
	holder.current.Store(loaded)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated IngestConfig
		if err := v.UnmarshalKey("ingest", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		updated = normalizeIngestConfig(updated)
		if err := ValidateIngestConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name), zap.String("policy", updated.Policy))
	})

	return holder, nil
}

func (h *IngestConfigHolder) Get() IngestConfig {
	return h.current.Load().(IngestConfig)
}

func normalizeIngestConfig(cfg IngestConfig) IngestConfig {
	cfg.Policy = strings.ToLower(strings.TrimSpace(cfg.Policy))
	if cfg.Policy == "" {
		cfg.Policy = PolicyLenient
	}
	return cfg
}

func ValidateIngestConfig(cfg IngestConfig) error {
	switch cfg.Policy {
	case PolicyLenient, PolicyStrict:
	default:
		return fmt.Errorf("ingest.policy must be %q or %q, got %q", PolicyLenient, PolicyStrict, cfg.Policy)
	}
	if cfg.BufferRows <= 0 {
		return errors.New("ingest.bufferRows must be positive")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("ingest.batchSize must be positive")
	}
	return nil
}
