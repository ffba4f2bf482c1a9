package cache

import (
	"context"
	"time"
)

// Store persists encoded cache entries with a time to live.
type Store interface {
	// Get returns the entry for key; ok is false on a miss or expiry.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Kind groups cached values that share a lifetime.
type Kind string

const (
	KindDirectorySearch Kind = "directory_search"
)

// DefaultTTL applies when a caller passes a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// Durations lists the lifetime of each kind of cached value.
var Durations = map[Kind]time.Duration{
	KindDirectorySearch: time.Hour,
}

// TTL returns the lifetime configured for kind, or DefaultTTL.
func TTL(kind Kind) time.Duration {
	if d, ok := Durations[kind]; ok {
		return d
	}
	return DefaultTTL
}
