package config

import "github.com/spf13/viper"

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "~/.config/codegraph/codegraph.log"

	DefaultDaemonHTTPPort        = 7610
	DefaultDaemonHTTPBind        = "127.0.0.1"
	DefaultDaemonShutdownTimeout = 30 // seconds
	DefaultDaemonPIDFile         = "~/.config/codegraph/daemon.pid"

	DefaultGraphURI         = "bolt://localhost:7687"
	DefaultGraphDatabase    = "neo4j"
	DefaultGraphUsername    = "neo4j"
	DefaultGraphPasswordEnv = "CODEGRAPH_NEO4J_PASSWORD"

	DefaultCacheEnabled     = false
	DefaultCacheAddr        = "localhost:6379"
	DefaultCachePasswordEnv = "CODEGRAPH_REDIS_PASSWORD"
	DefaultCacheTTLDays     = 30

	DefaultEmbeddingsProvider   = "openai"
	DefaultEmbeddingsModel      = "text-embedding-3-small"
	DefaultEmbeddingsDimensions = 1536
	DefaultEmbeddingsAPIKeyEnv  = "OPENAI_API_KEY"

	DefaultEntitiesEnabled             = false
	DefaultEntitiesURL                 = "http://localhost:8000"
	DefaultEntitiesConfidenceThreshold = 0.5

	DefaultPipelineConcurrency = 10
	DefaultPipelineMaxRetries  = 3

	DefaultWatcherEnabled       = true
	DefaultWatcherDebounceMs    = 500
	DefaultWatcherDeleteGraceMs = 2000
)

// NewDefaultConfig returns a Config populated entirely from defaults.
func NewDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		Daemon: DaemonConfig{
			HTTPPort:        DefaultDaemonHTTPPort,
			HTTPBind:        DefaultDaemonHTTPBind,
			ShutdownTimeout: DefaultDaemonShutdownTimeout,
			PIDFile:         DefaultDaemonPIDFile,
		},
		Graph: GraphConfig{
			URI:         DefaultGraphURI,
			Database:    DefaultGraphDatabase,
			Username:    DefaultGraphUsername,
			PasswordEnv: DefaultGraphPasswordEnv,
		},
		Cache: CacheConfig{
			Enabled:     DefaultCacheEnabled,
			Addr:        DefaultCacheAddr,
			PasswordEnv: DefaultCachePasswordEnv,
			TTLDays:     DefaultCacheTTLDays,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   DefaultEmbeddingsProvider,
			Model:      DefaultEmbeddingsModel,
			Dimensions: DefaultEmbeddingsDimensions,
			APIKeyEnv:  DefaultEmbeddingsAPIKeyEnv,
		},
		Entities: EntitiesConfig{
			Enabled:             DefaultEntitiesEnabled,
			URL:                 DefaultEntitiesURL,
			ConfidenceThreshold: DefaultEntitiesConfidenceThreshold,
		},
		Pipeline: PipelineConfig{
			Concurrency: DefaultPipelineConcurrency,
			MaxRetries:  DefaultPipelineMaxRetries,
		},
		Watcher: WatcherConfig{
			Enabled:       DefaultWatcherEnabled,
			DebounceMs:    DefaultWatcherDebounceMs,
			DeleteGraceMs: DefaultWatcherDeleteGraceMs,
		},
	}
}

// setViperDefaults registers all defaults with a viper instance.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	v.SetDefault("daemon.http_port", DefaultDaemonHTTPPort)
	v.SetDefault("daemon.http_bind", DefaultDaemonHTTPBind)
	v.SetDefault("daemon.shutdown_timeout", DefaultDaemonShutdownTimeout)
	v.SetDefault("daemon.pid_file", DefaultDaemonPIDFile)

	v.SetDefault("graph.uri", DefaultGraphURI)
	v.SetDefault("graph.database", DefaultGraphDatabase)
	v.SetDefault("graph.username", DefaultGraphUsername)
	v.SetDefault("graph.password_env", DefaultGraphPasswordEnv)

	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.addr", DefaultCacheAddr)
	v.SetDefault("cache.password_env", DefaultCachePasswordEnv)
	v.SetDefault("cache.ttl_days", DefaultCacheTTLDays)

	v.SetDefault("embeddings.provider", DefaultEmbeddingsProvider)
	v.SetDefault("embeddings.model", DefaultEmbeddingsModel)
	v.SetDefault("embeddings.dimensions", DefaultEmbeddingsDimensions)
	v.SetDefault("embeddings.api_key_env", DefaultEmbeddingsAPIKeyEnv)

	v.SetDefault("entities.enabled", DefaultEntitiesEnabled)
	v.SetDefault("entities.url", DefaultEntitiesURL)
	v.SetDefault("entities.confidence_threshold", DefaultEntitiesConfidenceThreshold)

	v.SetDefault("pipeline.concurrency", DefaultPipelineConcurrency)
	v.SetDefault("pipeline.max_retries", DefaultPipelineMaxRetries)

	v.SetDefault("watcher.enabled", DefaultWatcherEnabled)
	v.SetDefault("watcher.debounce_ms", DefaultWatcherDebounceMs)
	v.SetDefault("watcher.delete_grace_ms", DefaultWatcherDeleteGraceMs)
}
