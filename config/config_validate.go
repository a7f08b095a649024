package config

import (
	"fmt"
	"net/url"
)

// MinJwtSecretLength is the smallest acceptable Jwt.ClientSecret length, in
// bytes. HMAC-signed client bearer tokens derive their strength entirely
// from this secret, so an under-length key is rejected at load time rather
// than allowed to silently weaken every issued token.
const MinJwtSecretLength = 32

// Validate checks the entire configuration for correctness, aggregating
// per-section checks the way the teacher's config_validate.go does.
func Validate(cfg *Config) error {
	if err := validateStore(&cfg.Store); err != nil {
		return fmt.Errorf("store config validation failed: %w", err)
	}
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := validateJwt(&cfg.Jwt); err != nil {
		return fmt.Errorf("jwt config validation failed: %w", err)
	}
	if err := validateWebhook(&cfg.Webhook); err != nil {
		return fmt.Errorf("webhook config validation failed: %w", err)
	}
	if err := validateWorker(&cfg.Worker); err != nil {
		return fmt.Errorf("worker config validation failed: %w", err)
	}
	if err := validateRateLimits(&cfg.RateLimits); err != nil {
		return fmt.Errorf("rate_limits config validation failed: %w", err)
	}
	if err := validateClassifier(&cfg.Classifier); err != nil {
		return fmt.Errorf("classifier config validation failed: %w", err)
	}
	return nil
}

func validateStore(s *Store) error {
	if s.Path == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	return nil
}

func validateServer(s *Server) error {
	if s.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if s.ReadTimeout.Duration <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if s.WriteTimeout.Duration <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if s.ShutdownGracefulTimeout.Duration <= 0 {
		return fmt.Errorf("server.shutdown_graceful_timeout must be positive")
	}
	return nil
}

func validateJwt(j *Jwt) error {
	if len(j.ClientSecret) < MinJwtSecretLength {
		return fmt.Errorf("jwt.client_secret must be at least %d bytes, got %d", MinJwtSecretLength, len(j.ClientSecret))
	}
	if j.ClientTokenDuration.Duration <= 0 {
		return fmt.Errorf("jwt.client_token_duration must be positive")
	}
	return nil
}

func validateWebhook(w *Webhook) error {
	if w.MaxRetries < 0 {
		return fmt.Errorf("webhook.max_retries cannot be negative")
	}
	if w.Timeout.Duration <= 0 {
		return fmt.Errorf("webhook.timeout must be positive")
	}
	if w.BackoffBase.Duration <= 0 {
		return fmt.Errorf("webhook.backoff_base must be positive")
	}
	return nil
}

// ValidateWebhookURL checks the shape of a tenant webhook URL. It is not
// called at config-load time (the URL lives in the store, not in Config),
// and core's handlers use their own core.ValidateWebhookURL instead; it is
// kept here alongside the rest of the webhook validation it shares a shape
// with.
func ValidateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed webhook url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("webhook url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url must have a host")
	}
	return nil
}

func validateWorker(w *Worker) error {
	if w.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive")
	}
	if w.BatchSize <= 0 {
		return fmt.Errorf("worker.batch_size must be positive")
	}
	if w.BatchTimeout.Duration <= 0 {
		return fmt.Errorf("worker.batch_timeout must be positive")
	}
	return nil
}

func validateRateLimits(r *RateLimits) error {
	if r.SubmitPerMinute <= 0 {
		return fmt.Errorf("rate_limits.submit_per_minute must be positive")
	}
	if r.StatusPerMinute <= 0 {
		return fmt.Errorf("rate_limits.status_per_minute must be positive")
	}
	return nil
}

func validateClassifier(c *Classifier) error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier.confidence_threshold must be in [0,1]")
	}
	for label, threshold := range c.LabelThresholds {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("classifier.label_thresholds[%s] must be in [0,1], got %v", label, threshold)
		}
	}
	return nil
}
