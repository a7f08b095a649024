// Package webhook implements the outbound delivery half of the completion
// pipeline: one signed HTTP POST per completed job, with bounded
// exponential backoff and a full per-attempt audit trail.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/crypto"
	"github.com/QuyenFunc/vietcmc/store"
)

const userAgent = "VietCMS-Moderation/1.0"
const maxResponseSnippet = 1024
const defaultConcurrency = 50

// payload is the outbound webhook body, matching spec.md §6's outbound
// webhook body exactly; field order doesn't matter for signing since the
// signature covers the marshaled bytes as sent.
type payload struct {
	JobID                string    `json:"job_id"`
	CommentID            string    `json:"comment_id,omitempty"`
	Text                 string    `json:"text"`
	Sentiment            string    `json:"sentiment"`
	ModerationResult     string    `json:"moderation_result"`
	Confidence           float64   `json:"confidence"`
	Reasoning            string    `json:"reasoning"`
	DetectedLabels       []string  `json:"detected_labels,omitempty"`
	SeverityScore        int       `json:"severity_score,omitempty"`
	ProcessingDurationMs int64     `json:"processing_duration_ms"`
	CompletedAt          time.Time `json:"completed_at"`
}

func buildPayload(job *store.Job) payload {
	return payload{
		JobID:                job.JobID,
		CommentID:            job.ClientSuppliedCommentID,
		Text:                 job.PayloadText,
		Sentiment:            string(job.Sentiment),
		ModerationResult:     string(job.ModerationAction),
		Confidence:           job.Confidence,
		Reasoning:            job.Reasoning,
		DetectedLabels:       job.Labels,
		SeverityScore:        job.Severity,
		ProcessingDurationMs: job.ProcessingDurationMs,
		CompletedAt:          job.CompletedAt,
	}
}

// Dispatcher delivers one signed HTTP POST per completed job, grounded on
// the teacher's notify/discord.Notifier (goroutine-dispatched HTTP sender
// with its own timeout context, independent of the caller's), generalized
// to per-tenant HMAC signing, bounded retries, and a store.WebhookAttempt
// audit row per try in place of Discord's best-effort single send.
type Dispatcher struct {
	Store      store.Store
	Broker     broker.Broker
	HTTPClient *http.Client
	Config     config.Webhook
	Logger     *slog.Logger

	// ConsumerName identifies this process to the broker's consumer group.
	ConsumerName string
	// Concurrency bounds in-flight deliveries (spec.md's "prefetch ≈ 50").
	Concurrency int
}

func (d *Dispatcher) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

// Run consumes job_completed deliveries until ctx is cancelled, dispatching
// each on its own goroutine bounded by Concurrency in-flight at once.
func (d *Dispatcher) Run(ctx context.Context) error {
	deliveries, err := d.Broker.ConsumeCompleted(ctx, d.ConsumerName)
	if err != nil {
		return fmt.Errorf("webhook: consume completed: %w", err)
	}

	limit := d.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	sem := make(chan struct{}, limit)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			go func(delivery broker.CompletedDelivery) {
				defer func() { <-sem }()
				// A fresh background context: the delivery's own timeouts
				// bound it, so a dispatcher shutdown doesn't abandon an
				// attempt that's already mid-flight mid-backoff.
				d.deliver(context.Background(), delivery)
			}(delivery)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, delivery broker.CompletedDelivery) {
	msg := delivery.Message

	tenant, err := d.Store.GetTenant(ctx, msg.TenantID)
	if err != nil {
		d.Logger.Error("webhook: tenant lookup failed", "job_id", msg.JobID, "tenant_id", msg.TenantID, "err", err)
		d.ack(ctx, delivery)
		return
	}

	job, err := d.Store.GetJob(ctx, msg.JobID, msg.TenantID)
	if err != nil {
		d.Logger.Error("webhook: job lookup failed", "job_id", msg.JobID, "err", err)
		d.ack(ctx, delivery)
		return
	}

	body, err := json.Marshal(buildPayload(job))
	if err != nil {
		d.Logger.Error("webhook: marshal payload failed", "job_id", msg.JobID, "err", err)
		d.ack(ctx, delivery)
		return
	}

	maxAttempts := d.Config.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	base := d.Config.BackoffBase.Duration
	if base <= 0 {
		base = 5 * time.Second
	}
	timeout := d.Config.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = base * time.Duration(uint64(1)<<uint(maxAttempts))
	bo.MaxElapsedTime = 0
	bo.Reset()
	bounded := backoff.WithMaxRetries(bo, uint64(maxAttempts-1))

	attemptNumber := 0
	backoff.Retry(func() error {
		attemptNumber++
		return d.attempt(ctx, tenant, job, body, attemptNumber, maxAttempts, timeout)
	}, bounded)

	d.ack(ctx, delivery)
}

// attempt performs one POST and records the audit row. It returns nil on
// success (so backoff.Retry stops) and a non-nil error on any failure (so
// backoff.Retry schedules the next attempt, unless attemptNumber has
// already reached maxAttempts).
func (d *Dispatcher) attempt(ctx context.Context, tenant *store.Tenant, job *store.Job, body []byte, attemptNumber, maxAttempts int, timeout time.Duration) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sig := crypto.SignHMACHeader([]byte(tenant.HMACSecret), body)
	headers := map[string]string{
		"Content-Type":        "application/json",
		"User-Agent":          userAgent,
		"X-Hub-Signature-256": sig,
	}
	headerJSON, _ := json.Marshal(headers)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, tenant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		d.record(ctx, job, tenant, body, headerJSON, 0, "", 0, attemptNumber, maxAttempts, err)
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.httpClient().Do(req)
	elapsed := time.Since(start)
	if err != nil {
		d.record(ctx, job, tenant, body, headerJSON, 0, "", elapsed, attemptNumber, maxAttempts, err)
		return err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnippet))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("webhook: non-2xx response %d", resp.StatusCode)
		d.record(ctx, job, tenant, body, headerJSON, resp.StatusCode, string(snippet), elapsed, attemptNumber, maxAttempts, statusErr)
		return statusErr
	}

	d.record(ctx, job, tenant, body, headerJSON, resp.StatusCode, string(snippet), elapsed, attemptNumber, maxAttempts, nil)
	return nil
}

func (d *Dispatcher) record(ctx context.Context, job *store.Job, tenant *store.Tenant, body, headers []byte, statusCode int, snippet string, elapsed time.Duration, attemptNumber, maxAttempts int, attemptErr error) {
	status := store.AttemptSuccess
	errMsg := ""
	if attemptErr != nil {
		status = store.AttemptRetrying
		if attemptNumber >= maxAttempts {
			status = store.AttemptFailed
		}
		errMsg = attemptErr.Error()
	}

	row := &store.WebhookAttempt{
		AttemptID:           uuid.NewString(),
		JobID:               job.JobID,
		TenantID:            tenant.TenantID,
		WebhookURL:          tenant.WebhookURL,
		RequestPayload:      body,
		RequestHeaders:      headers,
		ResponseStatusCode:  statusCode,
		ResponseBodySnippet: snippet,
		ResponseTimeMs:      elapsed.Milliseconds(),
		AttemptNumber:       attemptNumber,
		Status:              status,
		ErrorMessage:        errMsg,
		SentAt:              time.Now(),
	}

	if err := d.Store.InsertWebhookAttempt(ctx, row); err != nil {
		d.Logger.Error("webhook: insert attempt audit row failed", "job_id", job.JobID, "attempt", attemptNumber, "err", err)
	}
	if attemptErr != nil {
		d.Logger.Warn("webhook: delivery attempt failed", "job_id", job.JobID, "attempt", attemptNumber, "status", status, "err", attemptErr)
	} else {
		d.Logger.Info("webhook: delivery succeeded", "job_id", job.JobID, "attempt", attemptNumber)
	}
}

func (d *Dispatcher) ack(ctx context.Context, delivery broker.CompletedDelivery) {
	if err := d.Broker.AckCompleted(ctx, delivery.Handle); err != nil {
		d.Logger.Error("webhook: ack completed failed", "job_id", delivery.Message.JobID, "err", err)
	}
}
