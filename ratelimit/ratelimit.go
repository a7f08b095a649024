// Package ratelimit implements per-tenant token-bucket rate limiting for
// the submit and status endpoints.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Tier names the two rate-limited endpoint classes of spec.md §4.1.
type Tier string

const (
	TierSubmit Tier = "submit"
	TierStatus Tier = "status"
)

// Limiter holds one token bucket per (tier, key) pair, where key is
// usually a tenant's api_key but falls back to the caller's remote
// address for unauthenticated requests.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[Tier]map[string]*rate.Limiter
	ratesPM  map[Tier]int // requests per minute, used to size new buckets
}

// New creates a Limiter with the given per-minute rate for each tier.
func New(submitPerMinute, statusPerMinute int) *Limiter {
	return &Limiter{
		buckets: map[Tier]map[string]*rate.Limiter{
			TierSubmit: make(map[string]*rate.Limiter),
			TierStatus: make(map[string]*rate.Limiter),
		},
		ratesPM: map[Tier]int{
			TierSubmit: submitPerMinute,
			TierStatus: statusPerMinute,
		},
	}
}

// Allow reports whether the request identified by key is allowed under
// tier's token bucket, creating the bucket on first use.
func (l *Limiter) Allow(tier Tier, key string) bool {
	return l.limiterFor(tier, key).Allow()
}

func (l *Limiter) limiterFor(tier Tier, key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[tier][key]
	if !ok {
		perMinute := l.ratesPM[tier]
		limit := rate.Limit(float64(perMinute) / 60.0)
		burst := perMinute
		if burst < 1 {
			burst = 1
		}
		bucket = rate.NewLimiter(limit, burst)
		l.buckets[tier][key] = bucket
	}
	return bucket
}
