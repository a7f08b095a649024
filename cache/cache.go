// Package cache defines a generic cache interface compatible with
// Ristretto and other backends.
package cache

import "time"

// Cache is a generic cache interface compatible with Ristretto.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, cost int64) bool
	SetWithTTL(key K, value V, cost int64, ttl time.Duration) bool
}
