// Package cache provides byte storage backends for rendered images and
// fetched fonts.
//
// # Overview
//
// Every backend implements [Cache], a minimal key/value interface with
// per-entry expiry:
//
//   - [NullCache]: stores nothing (caching disabled)
//   - [MemoryCache]: in-process map, for tests and single-instance servers
//   - [FileCache]: JSON envelopes on disk, for the CLI and prerendering
//   - [RedisCache]: shared cache for multi-instance deployments
//   - [MongoCache]: shared cache with a TTL index
//
// # Namespaces
//
// Keys are scoped with [Namespaced] to "<root>/<version>/", where version is
// derived from the engine versions compiled into the binary (see
// buildinfo.Namespace). Upgrading an engine changes the version, so earlier
// entries are never read again and expire on their own.
//
// # Fingerprints
//
// [Fingerprint] derives an image key from everything that affects the
// output bytes: template content hash, render options, props and namespace.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Default lifetimes.
const (
	// TTLFont is the lifetime of fetched font files.
	TTLFont = 30 * 24 * time.Hour
)
