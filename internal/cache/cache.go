// Package cache is an optional redis-backed store for embedding vectors,
// keyed by provider, model and content hash. The key shape makes a provider
// or model switch self-invalidating: old entries simply stop being asked
// for.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when an entry is not found.
var ErrCacheMiss = errors.New("cache miss")

// EmbeddingCache stores vectors in redis.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Config holds the redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DefaultConfig returns the local-redis defaults.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		TTL:  30 * 24 * time.Hour,
	}
}

// New creates an embedding cache over redis.
func New(cfg Config) *EmbeddingCache {
	return &EmbeddingCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:    cfg.TTL,
		logger: slog.Default().With("component", "cache"),
	}
}

// Ping verifies connectivity.
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed; %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *EmbeddingCache) Close() error {
	return c.client.Close()
}

func key(provider, model, hash string) string {
	return fmt.Sprintf("emb:%s:%s:%s", provider, model, hash)
}

// Get returns the cached vector for a content hash, or ErrCacheMiss.
func (c *EmbeddingCache) Get(ctx context.Context, provider, model, hash string) ([]float32, error) {
	raw, err := c.client.Get(ctx, key(provider, model, hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed; %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, fmt.Errorf("corrupt cache entry; %w", err)
	}
	return vector, nil
}

// GetBatch looks up many hashes in one round trip. Misses are simply absent
// from the result.
func (c *EmbeddingCache) GetBatch(ctx context.Context, provider, model string, hashes []string) (map[string][]float32, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = key(provider, model, h)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache mget failed; %w", err)
	}

	found := make(map[string][]float32)
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var vector []float32
		if err := json.Unmarshal([]byte(s), &vector); err != nil {
			continue
		}
		found[hashes[i]] = vector
	}
	return found, nil
}

// Put stores a vector.
func (c *EmbeddingCache) Put(ctx context.Context, provider, model, hash string, vector []float32) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector; %w", err)
	}
	if err := c.client.Set(ctx, key(provider, model, hash), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed; %w", err)
	}
	return nil
}

// PutBatch stores many vectors pipelined.
func (c *EmbeddingCache) PutBatch(ctx context.Context, provider, model string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for hash, vector := range vectors {
		raw, err := json.Marshal(vector)
		if err != nil {
			return fmt.Errorf("failed to encode vector; %w", err)
		}
		pipe.Set(ctx, key(provider, model, hash), raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline failed; %w", err)
	}
	return nil
}
