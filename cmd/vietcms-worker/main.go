// Command vietcms-worker runs the moderation worker pool: it drains
// moderation_jobs, classifies each job, and publishes job_completed
// (spec.md §4.2).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/QuyenFunc/vietcmc/broker/redisstream"
	"github.com/QuyenFunc/vietcmc/classifier"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/server"
	sqlitestore "github.com/QuyenFunc/vietcmc/store/sqlite"
	"github.com/QuyenFunc/vietcmc/worker"
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

// wasmInferenceTimeout bounds each PredictBatch call into the WASM sandbox.
const wasmInferenceTimeout = 5 * time.Second

// buildModel selects the Layer C model: a compiled WASM classifier when
// one is configured, else the dependency-free HeuristicModel fallback.
func buildModel(ctx context.Context, cfg *config.Classifier, logger *slog.Logger) classifier.Model {
	if cfg.WasmModelPath == "" {
		logger.Info("no wasm_model_path configured, using heuristic model")
		return classifier.HeuristicModel{}
	}
	model, err := classifier.NewWasmModel(ctx, cfg.WasmModelPath, wasmInferenceTimeout)
	if err != nil {
		logger.Error("failed to load wasm model, falling back to heuristic model", "error", err)
		return classifier.HeuristicModel{}
	}
	return model
}

type closerDaemon struct {
	close func() error
}

func (closerDaemon) Name() string                 { return "store-closer" }
func (closerDaemon) Start() error                 { return nil }
func (c closerDaemon) Stop(context.Context) error { return c.close() }

func main() {
	configPath := flag.String("config", "", "path to a TOML config file overlaying the embedded defaults")
	consumerName := flag.String("consumer-name", "", "consumer name for the moderation_jobs consumer group (defaults to hostname)")
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
			name = "vietcms-worker"
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

	model := buildModel(ctx, &initialCfg.Classifier, logger)
	textPipeline := classifier.NewPipeline(model, initialCfg.Classifier.LabelThresholds)

	pool := &worker.Pool{
		Store:        store,
		Broker:       broker,
		Text:         textPipeline,
		Config:       initialCfg.Worker,
		Logger:       logger,
		ConsumerName: name,
	}

	srv := server.New(configProvider, nil, logger)
	srv.AddDaemon(server.NewRunnerDaemon("worker-pool", pool.Run))
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

	logger.Info("vietcms-worker starting", "consumer_name", name)
	srv.Run()
}
