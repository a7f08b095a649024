// Package config holds the VietCMS moderation backbone's runtime
// configuration and a hot-swappable Provider used by every long-running
// process (API front-end, worker pool, webhook dispatcher).
package config

import (
	"sync/atomic"
	"time"
)

// Duration wraps time.Duration so it can be decoded from TOML strings like
// "200ms" or "5s" instead of raw nanosecond integers.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Store configures the relational store (sqlite file).
type Store struct {
	Path string
}

// Broker configures the durable message broker (Redis Streams).
type Broker struct {
	Addr     string
	Password string
	DB       int
}

// Cache configures the completed-job status cache.
type Cache struct {
	MaxCostBytes int64
}

// Server configures the HTTP listener shared by the API front-end.
type Server struct {
	Addr                    string
	ReadTimeout             Duration
	ReadHeaderTimeout       Duration
	WriteTimeout            Duration
	IdleTimeout             Duration
	ShutdownGracefulTimeout Duration
	ClientIPProxyHeader     string
}

// RateLimits configures the per-tenant token buckets of spec.md §4.1.
type RateLimits struct {
	SubmitPerMinute int
	StatusPerMinute int
}

// Jwt configures the short-lived bearer issued by POST /client/login.
type Jwt struct {
	ClientSecret        []byte
	ClientTokenDuration Duration
}

// Webhook configures the outbound dispatcher of spec.md §4.3.
type Webhook struct {
	Timeout     Duration
	MaxRetries  int
	BackoffBase Duration
}

// Worker configures the batching moderation pipeline of spec.md §4.2.
type Worker struct {
	Concurrency  int
	BatchSize    int
	BatchTimeout Duration
}

// Classifier configures the Layer C ML capability and its thresholds.
type Classifier struct {
	ConfidenceThreshold float64
	LabelThresholds     map[string]float64
	WasmModelPath       string
}

// Logging configures the shared slog construction.
type Logging struct {
	Level  string
	Format string // "text" or "json"
}

// CORS configures cross-origin access for the API front-end.
type CORS struct {
	AllowedOrigins []string
	AllowMethods   []string
	AllowHeaders   []string
	MaxAge         int
}

// Config is the full process configuration, decoded from TOML with
// environment-variable overrides for secrets. Long-running processes share
// it through a Provider so a SIGHUP reload swaps it atomically.
type Config struct {
	Store      Store
	Broker     Broker
	Cache      Cache
	Server     Server
	RateLimits RateLimits
	Jwt        Jwt
	Webhook    Webhook
	Worker     Worker
	Classifier Classifier
	Logging    Logging
	CORS       CORS
}

// Provider holds the current configuration and allows atomic hot swaps on
// SIGHUP without taking a lock on the read path.
type Provider struct {
	value atomic.Value // holds *Config
}

// NewProvider creates a Provider seeded with the given config. It panics if
// c is nil, matching the teacher's NewProvider contract.
func NewProvider(c *Config) *Provider {
	if c == nil {
		panic("config: initial config cannot be nil")
	}
	p := &Provider{}
	p.value.Store(c)
	return p
}

// Get returns the current configuration snapshot. Safe for concurrent use.
func (p *Provider) Get() *Config {
	return p.value.Load().(*Config)
}

// Update atomically swaps in a new configuration. The caller must validate
// newConfig (see Validate) before calling Update.
func (p *Provider) Update(newConfig *Config) {
	p.value.Store(newConfig)
}
