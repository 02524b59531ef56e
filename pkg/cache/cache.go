// Package cache stores converter output so that re-rendering an unchanged
// document skips the compiler and converter runs.
//
// Entries hold the raw SVG bytes produced by the converter, before any id
// rewriting. Merging always happens after the cache lookup, so two renders
// served from the same entry still receive disjoint identifier sets.
//
// Backends:
//   - [FileCache]: hashed file tree under the XDG cache directory (CLI default)
//   - [RedisCache]: shared cache for the HTTP server
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// TTLRender is the default lifetime of a cached converter output.
const TTLRender = 7 * 24 * time.Hour

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and whether it was found.
	// A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// RenderKey identifies the converter output for a fully assembled
	// LaTeX document compiled by the named toolchain family.
	RenderKey(family, document string) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RenderKey returns "render:<sha256(family, document)>".
func (DefaultKeyer) RenderKey(family, document string) string {
	return hashKey("render", family, document)
}
