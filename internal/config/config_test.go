package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("INGEST_POLICY", "")
	t.Setenv("RATE_LIMIT_BULK_WINDOW_SECONDS", "")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DBType)
	assert.True(t, cfg.IsPostgres())
	assert.Equal(t, PolicyLenient, cfg.Ingest.Policy)
	assert.Equal(t, time.Minute, cfg.RateLimit.BulkWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "SQLite")
	t.Setenv("INGEST_POLICY", "Strict")
	t.Setenv("BULK_MAX_CONNS", "3")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("INGEST_BUFFER_ROWS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.False(t, cfg.IsPostgres())
	assert.Equal(t, PolicyStrict, cfg.Ingest.Policy)
	assert.Equal(t, 3, cfg.BulkMaxConns)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 1024, cfg.Ingest.BufferRows)
}

func TestValidateIngestConfig(t *testing.T) {
	valid := IngestConfig{Policy: PolicyLenient, BufferRows: 1, BatchSize: 1}
	require.NoError(t, ValidateIngestConfig(valid))

	cases := map[string]IngestConfig{
		"unknown policy": {Policy: "sometimes", BufferRows: 1, BatchSize: 1},
		"zero buffer":    {Policy: PolicyStrict, BufferRows: 0, BatchSize: 1},
		"zero batch":     {Policy: PolicyStrict, BufferRows: 1, BatchSize: 0},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateIngestConfig(cfg))
		})
	}
}

func TestIngestConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	body := "ingest:\n  policy: STRICT\n  bufferRows: 64\n  batchSize: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingest.yml"), []byte(body), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewIngestConfigHolder(Config{Ingest: IngestDefaults{Policy: PolicyLenient, BufferRows: 1, BatchSize: 1}}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.True(t, got.Strict())
	assert.Equal(t, 64, got.BufferRows)
	assert.Equal(t, 10, got.BatchSize)
}

func TestIngestConfigHolderFallsBackToDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewIngestConfigHolder(Config{Ingest: IngestDefaults{Policy: "", BufferRows: 8, BatchSize: 4}}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.False(t, got.Strict())
	assert.Equal(t, PolicyLenient, got.Policy)
	assert.Equal(t, 8, got.BufferRows)
}
