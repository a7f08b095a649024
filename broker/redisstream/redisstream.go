// Package redisstream implements broker.Broker on Redis Streams
// (XADD/XREADGROUP/XACK/XAUTOCLAIM), giving at-least-once delivery with
// consumer groups standing in for the spec's abstract broker contract.
package redisstream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/config"
)

const (
	jobsStream      = "vietcmc:moderation_jobs"
	jobsGroup       = "vietcmc:moderation_jobs:workers"
	completedStream = "vietcmc:job_completed"
	completedGroup  = "vietcmc:job_completed:dispatchers"

	fieldJobID    = "job_id"
	fieldTenantID = "tenant_id"

	// claimIdleTime is how long an entry must sit unacked before another
	// consumer is allowed to steal it via XAUTOCLAIM, handling a crashed
	// worker/dispatcher without waiting forever.
	claimIdleTime = 30 * time.Second
)

type handle struct {
	stream string
	entry  string
}

// Broker implements broker.Broker on a single Redis connection, with two
// streams/consumer groups for the jobs and completed queues.
type Broker struct {
	client *redis.Client
	logger *slog.Logger
}

var _ broker.Broker = (*Broker)(nil)

// New connects to Redis and ensures both consumer groups exist.
func New(ctx context.Context, cfg *config.Broker, logger *slog.Logger) (*Broker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisstream: ping: %w", err)
	}

	b := &Broker{client: client, logger: logger}
	if err := b.ensureGroup(ctx, jobsStream, jobsGroup); err != nil {
		return nil, err
	}
	if err := b.ensureGroup(ctx, completedStream, completedGroup); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broker) ensureGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("redisstream: create group %s on %s: %w", group, stream, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (b *Broker) PublishJob(ctx context.Context, msg broker.JobMessage) error {
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: jobsStream,
		Values: map[string]any{fieldJobID: msg.JobID, fieldTenantID: msg.TenantID},
	}).Err()
}

func (b *Broker) PublishCompleted(ctx context.Context, msg broker.CompletedMessage) error {
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: completedStream,
		Values: map[string]any{fieldJobID: msg.JobID, fieldTenantID: msg.TenantID},
	}).Err()
}

func (b *Broker) ConsumeJobs(ctx context.Context, consumerName string) (<-chan broker.JobDelivery, error) {
	out := make(chan broker.JobDelivery)
	go b.consumeLoop(ctx, jobsStream, jobsGroup, consumerName, func(id string, values map[string]any) {
		msg := broker.JobMessage{
			JobID:    fmt.Sprint(values[fieldJobID]),
			TenantID: toInt64(values[fieldTenantID]),
		}
		select {
		case out <- broker.JobDelivery{Message: msg, Handle: handle{stream: jobsStream, entry: id}}:
		case <-ctx.Done():
		}
	})
	return out, nil
}

func (b *Broker) ConsumeCompleted(ctx context.Context, consumerName string) (<-chan broker.CompletedDelivery, error) {
	out := make(chan broker.CompletedDelivery)
	go b.consumeLoop(ctx, completedStream, completedGroup, consumerName, func(id string, values map[string]any) {
		msg := broker.CompletedMessage{
			JobID:    fmt.Sprint(values[fieldJobID]),
			TenantID: toInt64(values[fieldTenantID]),
		}
		select {
		case out <- broker.CompletedDelivery{Message: msg, Handle: handle{stream: completedStream, entry: id}}:
		case <-ctx.Done():
		}
	})
	return out, nil
}

// consumeLoop blocks on XREADGROUP, handing each entry to emit, until ctx
// is cancelled. A crashed consumer's unacked entries are reclaimed via
// XAUTOCLAIM once they've sat idle past claimIdleTime.
func (b *Broker) consumeLoop(ctx context.Context, stream, group, consumer string, emit func(id string, values map[string]any)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    32,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if err == redis.Nil {
				b.reclaimStale(ctx, stream, group, consumer, emit)
				continue
			}
			b.logger.Error("redisstream: read group failed", "stream", stream, "group", group, "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range res {
			for _, msg := range s.Messages {
				emit(msg.ID, msg.Values)
			}
		}

		b.reclaimStale(ctx, stream, group, consumer, emit)
	}
}

func (b *Broker) reclaimStale(ctx context.Context, stream, group, consumer string, emit func(id string, values map[string]any)) {
	claimed, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  claimIdleTime,
		Start:    "0",
		Count:    32,
	}).Result()
	if err != nil || len(claimed) == 0 {
		return
	}
	for _, msg := range claimed {
		emit(msg.ID, msg.Values)
	}
}

func (b *Broker) AckJob(ctx context.Context, h broker.Handle) error {
	return b.ack(ctx, jobsStream, jobsGroup, h)
}

func (b *Broker) NackJob(ctx context.Context, h broker.Handle) error {
	// A nack is a no-op: the entry stays in the group's pending list and
	// is reclaimed by reclaimStale once it goes idle, giving the
	// redelivery at-least-once semantics require.
	return nil
}

func (b *Broker) AckCompleted(ctx context.Context, h broker.Handle) error {
	return b.ack(ctx, completedStream, completedGroup, h)
}

func (b *Broker) NackCompleted(ctx context.Context, h broker.Handle) error {
	return nil
}

func (b *Broker) ack(ctx context.Context, stream, group string, h broker.Handle) error {
	hd, ok := h.(handle)
	if !ok {
		return fmt.Errorf("redisstream: ack: wrong handle type %T", h)
	}
	return b.client.XAck(ctx, stream, group, hd.entry).Err()
}

func (b *Broker) Close() error {
	return b.client.Close()
}

// Ping reports whether the Redis connection is reachable, used by
// GET /health (spec.md §4.1).
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		var n int64
		fmt.Sscanf(t, "%d", &n)
		return n
	default:
		return 0
	}
}
