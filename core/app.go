package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/cache"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/ratelimit"
	"github.com/QuyenFunc/vietcmc/router"
	"github.com/QuyenFunc/vietcmc/store"
)

// App is the API front-end's application-wide context: the store, broker,
// optional status cache, rate limiter, router, and hot-swappable config it
// needs to serve every endpoint in spec.md §6. All handlers and middleware
// hang off App so they share one set of long-lived dependencies.
type App struct {
	store   store.Store
	broker  broker.Broker
	cache   cache.Cache[string, []byte] // completed-job status responses, GET /status
	limiter *ratelimit.Limiter
	router  *router.Router
	config  *config.Provider
	logger  *slog.Logger
}

// NewApp builds an App from options, wires the routes, and returns it
// ready to serve. Every dependency except cache is required.
func NewApp(opts ...Option) (*App, error) {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		return nil, fmt.Errorf("core: store is required")
	}
	if a.broker == nil {
		return nil, fmt.Errorf("core: broker is required")
	}
	if a.limiter == nil {
		return nil, fmt.Errorf("core: rate limiter is required")
	}
	if a.router == nil {
		return nil, fmt.Errorf("core: router is required")
	}
	if a.config == nil {
		return nil, fmt.Errorf("core: config provider is required")
	}
	if a.logger == nil {
		return nil, fmt.Errorf("core: logger is required")
	}

	a.registerRoutes()
	return a, nil
}

// Router returns the underlying router, so a caller can hand it to
// http.Server as the handler.
func (a *App) Router() *router.Router {
	return a.router
}

// Close releases the store and broker, used on process shutdown.
func (a *App) Close() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("core: close store: %w", err)
	}
	return a.broker.Close()
}

// statusCacheTTL is how long a completed job's GET /status response is
// cached per spec.md §4.1 ("Completed results are cacheable for 1 hour").
const statusCacheTTL = time.Hour

func statusCacheKey(tenantID int64, jobID string) string {
	return fmt.Sprintf("status:%d:%s", tenantID, jobID)
}

// CheckHealth pings the store and broker, matching GET /health's
// "reports reachability of the store and the broker as up|down".
func (a *App) CheckHealth(ctx context.Context) (storeUp, brokerUp bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	storeUp = a.store.Ping(ctx) == nil

	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := a.broker.(pinger); ok {
		brokerUp = p.Ping(ctx) == nil
	} else {
		brokerUp = true
	}
	return storeUp, brokerUp
}
