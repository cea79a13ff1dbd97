package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
project:
  id: docs
  root: /srv/docs
  include: ["**/*.md"]
graph:
  uri: bolt://graph:7687
embeddings:
  provider: ollama
  model: nomic-embed-text
  dimensions: 768
  endpoint: http://localhost:11434
`), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "docs", cfg.Project.ID)
	assert.Equal(t, []string{"**/*.md"}, cfg.Project.Include)
	assert.Equal(t, "bolt://graph:7687", cfg.Graph.URI)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)

	// Unset sections fall back to defaults.
	assert.Equal(t, DefaultDaemonHTTPPort, cfg.Daemon.HTTPPort)
	assert.Equal(t, DefaultPipelineConcurrency, cfg.Pipeline.Concurrency)
	assert.Equal(t, DefaultWatcherDebounceMs, cfg.Watcher.DebounceMs)
}

func TestLoadFromPath_InvalidProviderFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embeddings:
  provider: cohere
`), 0o600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "embeddings.provider")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"defaults are valid", func(cfg *Config) {}, ""},
		{
			"bad port",
			func(cfg *Config) { cfg.Daemon.HTTPPort = 0 },
			"daemon.http_port",
		},
		{
			"cache enabled without addr",
			func(cfg *Config) { cfg.Cache.Enabled = true; cfg.Cache.Addr = "" },
			"cache.addr",
		},
		{
			"entities threshold out of range",
			func(cfg *Config) { cfg.Entities.Enabled = true; cfg.Entities.ConfidenceThreshold = 1.5 },
			"entities.confidence_threshold",
		},
		{
			"delete grace below debounce",
			func(cfg *Config) { cfg.Watcher.DeleteGraceMs = 100 },
			"watcher.delete_grace_ms",
		},
		{
			"zero concurrency",
			func(cfg *Config) { cfg.Pipeline.Concurrency = 0 },
			"pipeline.concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := NewDefaultConfig()
	cfg.Project.ID = "docs"
	cfg.Embeddings.Provider = "tei"
	cfg.Embeddings.Model = "bge-base-en"
	cfg.Embeddings.Dimensions = 768

	require.NoError(t, Write(&cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", loaded.Project.ID)
	assert.Equal(t, "tei", loaded.Embeddings.Provider)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CODEGRAPH_LOG_LEVEL", "warn")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("TEST_GRAPH_PW", "s3cret")
	g := GraphConfig{PasswordEnv: "TEST_GRAPH_PW"}
	assert.Equal(t, "s3cret", g.ResolvePassword())

	inline := "inline-pw"
	g.Password = &inline
	assert.Equal(t, "inline-pw", g.ResolvePassword())

	t.Setenv("TEST_EMBED_KEY", "sk-env")
	e := EmbeddingsConfig{APIKeyEnv: "TEST_EMBED_KEY"}
	assert.Equal(t, "sk-env", e.ResolveAPIKey())
}
