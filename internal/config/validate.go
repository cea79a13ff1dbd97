package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is one config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// validEmbeddingsProviders lists recognized embedding providers.
var validEmbeddingsProviders = map[string]bool{
	"openai": true,
	"google": true,
	"ollama": true,
	"tei":    true,
}

// Validate checks the configuration for errors.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Daemon.HTTPPort < 1 || cfg.Daemon.HTTPPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "daemon.http_port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Daemon.HTTPPort),
		})
	}
	if cfg.Daemon.HTTPBind == "" {
		errs = append(errs, ValidationError{Field: "daemon.http_bind", Message: "must not be empty"})
	}
	if cfg.Daemon.ShutdownTimeout < 1 {
		errs = append(errs, ValidationError{
			Field:   "daemon.shutdown_timeout",
			Message: fmt.Sprintf("must be at least 1 second, got %d", cfg.Daemon.ShutdownTimeout),
		})
	}
	if cfg.Daemon.PIDFile == "" {
		errs = append(errs, ValidationError{Field: "daemon.pid_file", Message: "must not be empty"})
	}

	if cfg.Graph.URI == "" {
		errs = append(errs, ValidationError{Field: "graph.uri", Message: "must not be empty"})
	}
	if cfg.Graph.Database == "" {
		errs = append(errs, ValidationError{Field: "graph.database", Message: "must not be empty"})
	}

	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		errs = append(errs, ValidationError{
			Field:   "cache.addr",
			Message: "must not be empty when the cache is enabled",
		})
	}
	if cfg.Cache.TTLDays < 1 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl_days",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Cache.TTLDays),
		})
	}

	if cfg.Embeddings.Provider == "" {
		errs = append(errs, ValidationError{Field: "embeddings.provider", Message: "must not be empty"})
	} else if !validEmbeddingsProviders[cfg.Embeddings.Provider] {
		errs = append(errs, ValidationError{
			Field:   "embeddings.provider",
			Message: fmt.Sprintf("must be one of: openai, google, ollama, tei; got %q", cfg.Embeddings.Provider),
		})
	}
	if cfg.Embeddings.Model == "" {
		errs = append(errs, ValidationError{Field: "embeddings.model", Message: "must not be empty"})
	}
	if cfg.Embeddings.Dimensions < 1 {
		errs = append(errs, ValidationError{
			Field:   "embeddings.dimensions",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Embeddings.Dimensions),
		})
	}

	if cfg.Entities.Enabled {
		if cfg.Entities.URL == "" {
			errs = append(errs, ValidationError{
				Field:   "entities.url",
				Message: "must not be empty when entity extraction is enabled",
			})
		}
		if cfg.Entities.ConfidenceThreshold < 0 || cfg.Entities.ConfidenceThreshold > 1 {
			errs = append(errs, ValidationError{
				Field:   "entities.confidence_threshold",
				Message: fmt.Sprintf("must be between 0 and 1, got %g", cfg.Entities.ConfidenceThreshold),
			})
		}
	}

	if cfg.Pipeline.Concurrency < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.concurrency",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Pipeline.Concurrency),
		})
	}
	if cfg.Pipeline.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.max_retries",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Pipeline.MaxRetries),
		})
	}

	if cfg.Watcher.DebounceMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "watcher.debounce_ms",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Watcher.DebounceMs),
		})
	}
	if cfg.Watcher.DeleteGraceMs < cfg.Watcher.DebounceMs {
		errs = append(errs, ValidationError{
			Field:   "watcher.delete_grace_ms",
			Message: "must be at least the debounce window",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsValidationError reports whether err is a config validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
