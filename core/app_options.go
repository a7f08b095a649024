package core

import (
	"log/slog"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/cache"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/ratelimit"
	"github.com/QuyenFunc/vietcmc/router"
	"github.com/QuyenFunc/vietcmc/store"
)

// Option configures an App built by NewApp.
type Option func(*App)

func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

func WithBroker(b broker.Broker) Option {
	return func(a *App) { a.broker = b }
}

// WithCache sets the optional completed-job status cache. Omitting it is
// valid: the cache "short-circuit[s] repeated GET /status for completed
// jobs" but is "not required for correctness" (spec.md §6).
func WithCache(c cache.Cache[string, []byte]) Option {
	return func(a *App) { a.cache = c }
}

func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

func WithRouter(r *router.Router) Option {
	return func(a *App) { a.router = r }
}

func WithConfigProvider(p *config.Provider) Option {
	return func(a *App) { a.config = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}
