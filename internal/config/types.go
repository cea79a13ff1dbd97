// Package config loads, validates and writes the application
// configuration. Files are YAML, discovered from CODEGRAPH_CONFIG_DIR,
// ~/.config/codegraph/ or the working directory, with CODEGRAPH_* environment
// variables overriding file values.
package config

import "os"

// Config is the root configuration structure.
type Config struct {
	LogLevel   string           `yaml:"log_level" mapstructure:"log_level"`
	LogFile    string           `yaml:"log_file" mapstructure:"log_file"`
	Project    ProjectConfig    `yaml:"project" mapstructure:"project"`
	Daemon     DaemonConfig     `yaml:"daemon" mapstructure:"daemon"`
	Graph      GraphConfig      `yaml:"graph" mapstructure:"graph"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Entities   EntitiesConfig   `yaml:"entities" mapstructure:"entities"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Watcher    WatcherConfig    `yaml:"watcher" mapstructure:"watcher"`
}

// ProjectConfig identifies the corpus being ingested.
type ProjectConfig struct {
	ID      string   `yaml:"id" mapstructure:"id"`
	Root    string   `yaml:"root" mapstructure:"root"`
	Include []string `yaml:"include,flow" mapstructure:"include"`
	Exclude []string `yaml:"exclude,flow" mapstructure:"exclude"`
}

// DaemonConfig holds daemon process settings.
type DaemonConfig struct {
	HTTPPort        int    `yaml:"http_port" mapstructure:"http_port"`
	HTTPBind        string `yaml:"http_bind" mapstructure:"http_bind"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	PIDFile         string `yaml:"pid_file" mapstructure:"pid_file"`
}

// GraphConfig holds Neo4j connection settings.
type GraphConfig struct {
	URI         string  `yaml:"uri" mapstructure:"uri"`
	Database    string  `yaml:"database" mapstructure:"database"`
	Username    string  `yaml:"username" mapstructure:"username"`
	Password    *string `yaml:"password,omitempty" mapstructure:"password"`
	PasswordEnv string  `yaml:"password_env" mapstructure:"password_env"`
}

// ResolvePassword returns the password from config or the environment.
func (c *GraphConfig) ResolvePassword() string {
	if c.Password != nil && *c.Password != "" {
		return *c.Password
	}
	return os.Getenv(c.PasswordEnv)
}

// CacheConfig holds Redis embedding-cache settings.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr        string `yaml:"addr" mapstructure:"addr"`
	DB          int    `yaml:"db" mapstructure:"db"`
	PasswordEnv string `yaml:"password_env" mapstructure:"password_env"`
	TTLDays     int    `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	Provider   string  `yaml:"provider" mapstructure:"provider"`
	Model      string  `yaml:"model" mapstructure:"model"`
	Dimensions int     `yaml:"dimensions" mapstructure:"dimensions"`
	Endpoint   string  `yaml:"endpoint,omitempty" mapstructure:"endpoint"` // ollama/tei base URL
	APIKey     *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv  string  `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// ResolveAPIKey returns the API key from config or the environment.
func (c *EmbeddingsConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// EntitiesConfig holds NER enrichment service settings.
type EntitiesConfig struct {
	Enabled             bool     `yaml:"enabled" mapstructure:"enabled"`
	URL                 string   `yaml:"url" mapstructure:"url"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	DisabledDomains     []string `yaml:"disabled_domains,flow" mapstructure:"disabled_domains"`
}

// PipelineConfig holds ingestion pipeline tuning.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
}

// WatcherConfig holds filesystem watcher tuning.
type WatcherConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	DebounceMs    int  `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	DeleteGraceMs int  `yaml:"delete_grace_ms" mapstructure:"delete_grace_ms"`
}
