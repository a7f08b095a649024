package config

import "time"

// Default returns a Config populated with every fallback value. Load()
// starts from this and then layers the TOML file and environment on top,
// matching the teacher's config/default.go + Load() split.
func Default() *Config {
	return &Config{
		Store: Store{Path: "vietcmc.db"},
		Broker: Broker{
			Addr: "127.0.0.1:6379",
			DB:   0,
		},
		Cache: Cache{MaxCostBytes: 64 << 20},
		Server: Server{
			Addr:                    ":8080",
			ReadTimeout:             Duration{2 * time.Second},
			ReadHeaderTimeout:       Duration{2 * time.Second},
			WriteTimeout:            Duration{5 * time.Second},
			IdleTimeout:             Duration{60 * time.Second},
			ShutdownGracefulTimeout: Duration{15 * time.Second},
		},
		RateLimits: RateLimits{
			SubmitPerMinute: 100,
			StatusPerMinute: 10000,
		},
		Jwt: Jwt{
			ClientTokenDuration: Duration{15 * time.Minute},
		},
		Webhook: Webhook{
			Timeout:     Duration{10 * time.Second},
			MaxRetries:  3,
			BackoffBase: Duration{5 * time.Second},
		},
		Worker: Worker{
			Concurrency:  4,
			BatchSize:    32,
			BatchTimeout: Duration{200 * time.Millisecond},
		},
		Classifier: Classifier{
			ConfidenceThreshold: 0.7,
			LabelThresholds: map[string]float64{
				"hate":      0.5,
				"profanity": 0.7,
			},
		},
		Logging: Logging{Level: "info", Format: "text"},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowMethods:   []string{"GET", "POST", "PUT"},
			AllowHeaders:   []string{"Content-Type", "X-API-Key", "X-Hub-Signature-256", "Authorization"},
			MaxAge:         600,
		},
	}
}
