// Package store provides the TTL key-value port used by the login guard,
// with Redis and in-memory implementations.
package store

import (
	"context"
	"time"
)

// Remaining-TTL sentinels, mirroring Redis TTL reply semantics.
const (
	// TTLMissing is returned when the key does not exist.
	TTLMissing = time.Duration(-2)
	// TTLNoExpiry is returned when the key exists but carries no expiry.
	TTLNoExpiry = time.Duration(-1)
)

// TTLStore is a key-value store with per-key expiry. Implementations must be
// safe for concurrent use.
type TTLStore interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key=value with the given expiry. A non-positive ttl stores
	// the key without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the given keys in a single operation and returns the
	// number actually removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// TTL returns the remaining lifetime of key, or one of the negative
	// sentinels above.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
