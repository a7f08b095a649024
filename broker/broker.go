// Package broker defines the durable message-broker contract the API
// front-end, worker pool, and webhook dispatcher share. broker/redisstream
// is the production implementation, backed by Redis Streams; Fake is an
// in-memory implementation for tests.
package broker

import "context"

// JobMessage is published to the moderation_jobs stream on job accept and
// consumed by the worker pool.
type JobMessage struct {
	JobID    string
	TenantID int64
}

// CompletedMessage is published to the job_completed stream when the
// worker finishes a job (successfully or not) and consumed by the webhook
// dispatcher.
type CompletedMessage struct {
	JobID    string
	TenantID int64
}

// Handle identifies one delivered message for Ack/Nack. Callers treat it as
// opaque (a Redis Streams entry ID under the hood) and pass it straight
// back into AckJob/NackJob/AckCompleted/NackCompleted.
type Handle any

// JobDelivery pairs a decoded JobMessage with the handle needed to
// Ack/Nack it.
type JobDelivery struct {
	Message JobMessage
	Handle  Handle
}

// CompletedDelivery pairs a decoded CompletedMessage with the handle
// needed to Ack/Nack it.
type CompletedDelivery struct {
	Message CompletedMessage
	Handle  Handle
}

// Broker is the at-least-once, durable, manual-ack message transport
// spec.md §4.4 requires. Two logical queues stand in for the
// moderation/moderation_jobs/job_completed exchange contract.
type Broker interface {
	PublishJob(ctx context.Context, msg JobMessage) error
	ConsumeJobs(ctx context.Context, consumerName string) (<-chan JobDelivery, error)
	AckJob(ctx context.Context, h Handle) error
	NackJob(ctx context.Context, h Handle) error

	PublishCompleted(ctx context.Context, msg CompletedMessage) error
	ConsumeCompleted(ctx context.Context, consumerName string) (<-chan CompletedDelivery, error)
	AckCompleted(ctx context.Context, h Handle) error
	NackCompleted(ctx context.Context, h Handle) error

	Close() error
}
