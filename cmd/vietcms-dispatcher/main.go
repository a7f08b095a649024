// Command vietcms-dispatcher delivers signed webhook POSTs for completed
// moderation jobs (spec.md §4.3).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/QuyenFunc/vietcmc/broker/redisstream"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/server"
	sqlitestore "github.com/QuyenFunc/vietcmc/store/sqlite"
	"github.com/QuyenFunc/vietcmc/webhook"
)

func newLogger(cfg *config.Logging) *slog.Logger {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

type closerDaemon struct {
	close func() error
}

func (closerDaemon) Name() string                 { return "store-closer" }
func (closerDaemon) Start() error                 { return nil }
func (c closerDaemon) Stop(context.Context) error { return c.close() }

func main() {
	configPath := flag.String("config", "", "path to a TOML config file overlaying the embedded defaults")
	consumerName := flag.String("consumer-name", "", "consumer name for the job_completed consumer group (defaults to hostname)")
	flag.Parse()

	initialCfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(&initialCfg.Logging)
	configProvider := config.NewProvider(initialCfg)

	name := *consumerName
	if name == "" {
		if host, err := os.Hostname(); err == nil {
			name = host
		} else {
			name = "vietcms-dispatcher"
		}
	}

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

	dispatcher := &webhook.Dispatcher{
		Store:      store,
		Broker:     broker,
		HTTPClient: &http.Client{Timeout: initialCfg.Webhook.Timeout.Duration},
		Config:     initialCfg.Webhook,
		Logger:     logger,

		ConsumerName: name,
	}

	srv := server.New(configProvider, nil, logger)
	srv.AddDaemon(server.NewRunnerDaemon("webhook-dispatcher", dispatcher.Run))
	srv.AddDaemon(closerDaemon{close: func() error {
		if err := store.Close(); err != nil {
			return err
		}
		return broker.Close()
	}})
	srv.OnReload(func() {
		newCfg, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to reload config on SIGHUP", "error", err)
			return
		}
		configProvider.Update(newCfg)
	})

	logger.Info("vietcms-dispatcher starting", "consumer_name", name)
	srv.Run()
}
