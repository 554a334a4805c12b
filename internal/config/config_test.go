package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 15*time.Second, cfg.BatchPause)
	assert.Equal(t, 365*24*time.Hour, cfg.ReportRetention)
	assert.Equal(t, "redis", cfg.EventBackend)
	assert.Equal(t, []string{"deceptive", "fraudulent", "false"}, cfg.ViolationKeywords)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moderation.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  port: "9000"
domains:
  services_url: http://services.internal
moderation:
  batch_size: 4
  analysis_hour: 5
  violation_keywords: [scam, fake]
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("BATCH_PAUSE_SECONDS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "http://services.internal", cfg.ServicesDomainURL)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 5, cfg.AnalysisHour)
	assert.Equal(t, 2*time.Second, cfg.BatchPause)
	assert.Equal(t, []string{"scam", "fake"}, cfg.ViolationKeywords)
}

func TestLoad_RejectsKafkaWithoutBrokers(t *testing.T) {
	t.Setenv("EVENT_BACKEND", "kafka")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_ProductionHost(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("HOST", "https://backend.salvioris.com/api")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "backend.salvioris.com", cfg.AllowedHost)
}
