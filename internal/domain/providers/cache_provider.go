package providers

import (
	"context"
)

// CacheProvider abstracts the byte cache used for pattern lookups, analytics
// aggregates, and HTTP response caching. Get returns an error on a miss;
// callers treat any Get error as a miss and fall through to the source.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL in seconds; zero means no expiry.
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}
