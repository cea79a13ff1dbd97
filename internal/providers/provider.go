// Package providers defines the external-service provider abstraction and
// its registry. Concrete embedding backends live in the embeddings
// subpackage.
package providers

// Provider is the base interface for all external-service providers.
type Provider interface {
	// Name returns the provider's unique identifier.
	Name() string

	// Available returns true if the provider is configured and ready.
	Available() bool

	// RateLimit returns the rate limit configuration for this provider.
	RateLimit() RateLimitConfig
}

// RateLimitConfig defines rate limiting parameters for a provider.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
}
