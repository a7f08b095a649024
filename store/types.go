// Package store defines the relational data model and persistence
// interface shared by the API front-end, worker pool, and webhook
// dispatcher.
package store

import "time"

// TenantStatus is the lifecycle status of a Tenant.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// Tenant represents one API consumer (client).
type Tenant struct {
	TenantID         int64
	AppID            string
	Email            string
	OrganizationName string
	PasswordHash     string // empty if the tenant never set a password

	APIKey     string
	HMACSecret string

	WebhookURL string
	Status     TenantStatus

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt time.Time
}

// JobType distinguishes the payload shape carried by a Job.
type JobType string

const (
	JobTypeText  JobType = "text"
	JobTypeImage JobType = "image"
	JobTypeAudio JobType = "audio"
)

// JobStatus is a node in the queued -> processing -> {completed, failed} DAG.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ModerationAction is the worker's verdict on a Job.
type ModerationAction string

const (
	ActionAllowed ModerationAction = "allowed"
	ActionReview  ModerationAction = "review"
	ActionReject  ModerationAction = "reject"
)

// Sentiment is the worker's polarity verdict on a Job.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Job is one moderation request and its eventual result.
type Job struct {
	JobID                  string
	TenantID               int64
	ClientSuppliedCommentID string
	PayloadText            string
	JobType                JobType
	Metadata               []byte // opaque JSON bag, stored and returned verbatim

	Status JobStatus

	// Result fields, populated once on completion. Must be the zero value
	// while Status is queued or processing.
	ModerationAction    ModerationAction
	Sentiment           Sentiment
	Confidence          float64
	Reasoning           string
	Labels              []string
	Severity            int
	ProcessingDurationMs int64

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// WebhookAttemptStatus is the outcome of one dispatch attempt.
type WebhookAttemptStatus string

const (
	AttemptSuccess  WebhookAttemptStatus = "success"
	AttemptRetrying WebhookAttemptStatus = "retrying"
	AttemptFailed   WebhookAttemptStatus = "failed"
)

// WebhookAttempt is one POST attempt against a tenant's webhook_url.
type WebhookAttempt struct {
	AttemptID           string
	JobID               string
	TenantID            int64
	WebhookURL          string
	RequestPayload      []byte
	RequestHeaders      []byte
	ResponseStatusCode  int // 0 means no response (network error)
	ResponseBodySnippet string
	ResponseTimeMs      int64
	AttemptNumber       int
	Status              WebhookAttemptStatus
	ErrorMessage        string
	SentAt              time.Time
}
