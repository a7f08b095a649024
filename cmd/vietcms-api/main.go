// Command vietcms-api runs the moderation backbone's API front-end:
// tenant registration, job submission, status lookups, webhook
// configuration, and health reporting (spec.md §4.1).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/QuyenFunc/vietcmc/broker/redisstream"
	"github.com/QuyenFunc/vietcmc/cache/ristretto"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/core"
	"github.com/QuyenFunc/vietcmc/ratelimit"
	"github.com/QuyenFunc/vietcmc/router"
	"github.com/QuyenFunc/vietcmc/server"
	sqlitestore "github.com/QuyenFunc/vietcmc/store/sqlite"
)

// closerDaemon runs app.Close() (store + broker teardown) as part of the
// server's ordinary graceful-shutdown sequence, so it happens alongside
// the HTTP listener shutdown rather than after os.Exit would already
// have fired.
type closerDaemon struct {
	app *core.App
}

func (closerDaemon) Name() string    { return "app-closer" }
func (closerDaemon) Start() error    { return nil }
func (c closerDaemon) Stop(ctx context.Context) error {
	return c.app.Close()
}

func newLogger(cfg *config.Logging) *slog.Logger {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file overlaying the embedded defaults")
	flag.Parse()

	initialCfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(&initialCfg.Logging)
	configProvider := config.NewProvider(initialCfg)

	ctx := context.Background()

	store, err := sqlitestore.New(ctx, initialCfg.Store.Path)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	broker, err := redisstream.New(ctx, &initialCfg.Broker, logger)
	if err != nil {
		logger.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}

	statusCache, err := ristretto.New[[]byte](initialCfg.Cache.MaxCostBytes)
	if err != nil {
		logger.Error("failed to build status cache", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(initialCfg.RateLimits.SubmitPerMinute, initialCfg.RateLimits.StatusPerMinute)

	app, err := core.NewApp(
		core.WithStore(store),
		core.WithBroker(broker),
		core.WithCache(statusCache),
		core.WithRateLimiter(limiter),
		core.WithRouter(router.New()),
		core.WithConfigProvider(configProvider),
		core.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	srv := server.New(configProvider, app.Handler(), logger)
	srv.AddDaemon(closerDaemon{app: app})
	srv.OnReload(func() {
		newCfg, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to reload config on SIGHUP", "error", err)
			return
		}
		configProvider.Update(newCfg)
	})

	logger.Info("vietcms-api starting", "addr", initialCfg.Server.Addr)
	srv.Run()
}
