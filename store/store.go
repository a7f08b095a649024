package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a unique constraint (email, api_key, app_id,
// job_id) would be violated.
var ErrConflict = errors.New("store: conflict")

// Store is the relational persistence contract shared by the API
// front-end, worker pool, and webhook dispatcher. A single implementation
// (store/sqlite) backs all three processes against one database file or
// server.
type Store interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenantByAPIKey(ctx context.Context, apiKey string) (*Tenant, error)
	GetTenantByAppID(ctx context.Context, appID string) (*Tenant, error)
	GetTenantByEmail(ctx context.Context, email string) (*Tenant, error)
	GetTenant(ctx context.Context, tenantID int64) (*Tenant, error)
	UpdateWebhookURL(ctx context.Context, tenantID int64, webhookURL string) error
	TouchLastUsed(ctx context.Context, tenantID int64) error

	InsertJob(ctx context.Context, j *Job) error
	MarkProcessing(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID string, result *JobResult) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	GetJob(ctx context.Context, jobID string, tenantID int64) (*Job, error)
	ListJobsByTenant(ctx context.Context, tenantID int64, limit int) ([]*Job, error)

	InsertWebhookAttempt(ctx context.Context, a *WebhookAttempt) error
	ListWebhookAttempts(ctx context.Context, jobID string) ([]*WebhookAttempt, error)

	Ping(ctx context.Context) error
	Close() error
}

// JobResult carries everything the worker writes back on completion, in
// one atomic update, matching the "result fields are null iff status in
// {queued, processing}" invariant.
type JobResult struct {
	ModerationAction     ModerationAction
	Sentiment            Sentiment
	Confidence           float64
	Reasoning            string
	Labels               []string
	Severity             int
	ProcessingDurationMs int64
}
