// Package ristretto adapts github.com/dgraph-io/ristretto/v2 to
// cache.Cache[string, V], used for the GET /status completed-job cache.
package ristretto

import (
	"fmt"
	"time"

	ristr "github.com/dgraph-io/ristretto/v2"

	"github.com/QuyenFunc/vietcmc/cache"
)

// Cache wraps a ristretto.Cache specialized to string keys, generic over
// the value type.
type Cache[V any] struct {
	c *ristr.Cache[string, V]
}

var _ cache.Cache[string, any] = (*Cache[any])(nil)

func (rc *Cache[V]) Get(key string) (V, bool) {
	value, found := rc.c.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	return value, true
}

func (rc *Cache[V]) Set(key string, value V, cost int64) bool {
	return rc.c.Set(key, value, cost)
}

func (rc *Cache[V]) SetWithTTL(key string, value V, cost int64, ttl time.Duration) bool {
	return rc.c.SetWithTTL(key, value, cost, ttl)
}

// New creates a Ristretto cache sized by a total cost budget in bytes,
// matching config.Cache.MaxCostBytes.
func New[V any](maxCostBytes int64) (cache.Cache[string, V], error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("ristretto: max cost bytes must be positive, got %d", maxCostBytes)
	}

	// NumCounters should track roughly 10x the expected number of items;
	// with no item-count config knob we derive it from the cost budget,
	// assuming an average cached status response of ~256 bytes.
	numCounters := (maxCostBytes / 256) * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	ristrettoCache, err := ristr.NewCache[string, V](&ristr.Config[string, V]{
		NumCounters: numCounters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: new cache: %w", err)
	}

	return &Cache[V]{c: ristrettoCache}, nil
}
