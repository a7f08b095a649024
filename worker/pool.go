// Package worker implements the moderation job pipeline: one ingest loop
// feeding a bounded internal queue, and one batch-processor loop draining
// it for up to BatchTimeout or BatchSize items, grouping by job type and
// running the classifier before writing results back and publishing the
// completion event.
package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/classifier"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/store"
)

// jobTimeout bounds the store/broker I/O around a job and each classifier
// call (one text batch, or one image or audio job).
const jobTimeout = 30 * time.Second

const defaultBatchSize = 32
const defaultBatchTimeout = 200 * time.Millisecond

// Pool consumes moderation_jobs, classifies them in grouped batches, and
// writes results back, matching spec.md §4.2/§5's ingest-plus-batch shape.
type Pool struct {
	Store  store.Store
	Broker broker.Broker

	Text  *classifier.Pipeline
	Image *classifier.ImagePipeline
	Audio *classifier.AudioPipeline

	Config config.Worker
	Logger *slog.Logger

	// ConsumerName identifies this process to the broker's consumer group.
	ConsumerName string
}

type queuedJob struct {
	delivery broker.JobDelivery
}

// Run consumes deliveries into a bounded queue and drains them in batches
// until ctx is cancelled. It returns once the in-flight batch has been
// fully processed.
func (p *Pool) Run(ctx context.Context) error {
	deliveries, err := p.Broker.ConsumeJobs(ctx, p.ConsumerName)
	if err != nil {
		return fmt.Errorf("worker: consume jobs: %w", err)
	}

	size := p.Config.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	queue := make(chan queuedJob, size*4)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.ingest(gctx, deliveries, queue)
	})
	g.Go(func() error {
		p.batchLoop(gctx, queue)
		return nil
	})
	return g.Wait()
}

func (p *Pool) ingest(ctx context.Context, deliveries <-chan broker.JobDelivery, queue chan<- queuedJob) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			select {
			case queue <- queuedJob{delivery: d}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Pool) batchLoop(ctx context.Context, queue <-chan queuedJob) {
	size := p.Config.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	timeout := p.Config.BatchTimeout.Duration
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	for {
		batch, keepGoing := drainBatch(ctx, queue, size, timeout)
		if len(batch) > 0 {
			p.processBatch(batch)
		}
		if !keepGoing {
			return
		}
	}
}

// drainBatch collects up to size items from queue, waiting at most timeout
// since the first item arrived. keepGoing is false once the caller should
// stop looping after this batch (ctx cancelled or queue closed); any items
// already collected are still returned so shutdown drains in-flight work.
func drainBatch(ctx context.Context, queue <-chan queuedJob, size int, timeout time.Duration) (batch []queuedJob, keepGoing bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case item, ok := <-queue:
		if !ok {
			return nil, false
		}
		batch = append(batch, item)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for len(batch) < size {
		select {
		case <-ctx.Done():
			return batch, false
		case <-timer.C:
			return batch, true
		case item, ok := <-queue:
			if !ok {
				return batch, false
			}
			batch = append(batch, item)
		}
	}
	return batch, true
}

type jobOutcome struct {
	result *store.JobResult
	err    error
}

// processBatch fetches each queued job, marks it processing, classifies
// the batch grouped by job type, then durably writes every outcome before
// acking or nacking. It uses a context independent of the pool's own
// lifecycle context so a batch already pulled off the queue still drains
// during shutdown.
func (p *Pool) processBatch(batch []queuedJob) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	jobs := make([]*store.Job, 0, len(batch))
	deliveries := make([]broker.JobDelivery, 0, len(batch))

	for _, qj := range batch {
		job, err := p.Store.GetJob(ctx, qj.delivery.Message.JobID, qj.delivery.Message.TenantID)
		if err != nil {
			p.Logger.Error("worker: fetch job failed", "job_id", qj.delivery.Message.JobID, "err", err)
			p.nackJob(qj.delivery)
			continue
		}
		if err := p.Store.MarkProcessing(ctx, job.JobID); err != nil {
			p.Logger.Error("worker: mark processing failed", "job_id", job.JobID, "err", err)
			p.nackJob(qj.delivery)
			continue
		}
		jobs = append(jobs, job)
		deliveries = append(deliveries, qj.delivery)
	}

	if len(jobs) == 0 {
		return
	}

	outcomes := p.classifyGrouped(jobs)
	for i, job := range jobs {
		p.finish(job, deliveries[i], outcomes[i])
	}
}

// classifyGrouped groups jobs by JobType: every text job is batched into
// one classifier.Pipeline.ClassifyBatch call (spec.md's "single tokenized
// forward pass"), while image and audio jobs are classified individually,
// concurrently up to Config.Concurrency, inside the same batch boundary.
func (p *Pool) classifyGrouped(jobs []*store.Job) []jobOutcome {
	outcomes := make([]jobOutcome, len(jobs))

	var textIdx []int
	var textInputs []string
	for i, job := range jobs {
		if job.JobType == store.JobTypeText {
			textIdx = append(textIdx, i)
			textInputs = append(textInputs, job.PayloadText)
		}
	}

	if len(textIdx) > 0 {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		results, err := p.Text.ClassifyBatch(ctx, textInputs)
		cancel()
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			for _, idx := range textIdx {
				outcomes[idx] = jobOutcome{err: fmt.Errorf("worker: text batch: %w", err)}
			}
		} else {
			for slot, idx := range textIdx {
				outcomes[idx] = jobOutcome{result: toJobResult(results[slot], elapsed)}
			}
		}
	}

	g, _ := errgroup.WithContext(context.Background())
	if p.Config.Concurrency > 0 {
		g.SetLimit(p.Config.Concurrency)
	}
	for i, job := range jobs {
		if job.JobType == store.JobTypeText {
			continue
		}
		i, job := i, job
		g.Go(func() error {
			outcomes[i] = p.classifyOne(job)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func (p *Pool) classifyOne(job *store.Job) jobOutcome {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	payload, err := base64.StdEncoding.DecodeString(job.PayloadText)
	if err != nil {
		return jobOutcome{err: fmt.Errorf("worker: decode %s payload: %w", job.JobType, err)}
	}

	switch job.JobType {
	case store.JobTypeImage:
		if p.Image == nil {
			return jobOutcome{err: fmt.Errorf("worker: no image pipeline configured")}
		}
		res, err := p.Image.Classify(ctx, payload)
		if err != nil {
			return jobOutcome{err: fmt.Errorf("worker: image classify: %w", err)}
		}
		return jobOutcome{result: &store.JobResult{
			ModerationAction:     toStoreAction(res.Action),
			Sentiment:            store.SentimentNeutral,
			Confidence:           res.Confidence,
			Reasoning:            res.Reasoning,
			Labels:               toStoreLabels(res.Labels),
			Severity:             actionSeverity(res.Action),
			ProcessingDurationMs: time.Since(start).Milliseconds(),
		}}
	case store.JobTypeAudio:
		if p.Audio == nil {
			return jobOutcome{err: fmt.Errorf("worker: no audio pipeline configured")}
		}
		res, err := p.Audio.Classify(ctx, payload)
		if err != nil {
			return jobOutcome{err: fmt.Errorf("worker: audio classify: %w", err)}
		}
		return jobOutcome{result: &store.JobResult{
			ModerationAction:     toStoreAction(res.Action),
			Sentiment:            store.SentimentNeutral,
			Confidence:           res.Confidence,
			Reasoning:            res.Reasoning,
			Labels:               toStoreLabels(res.Labels),
			Severity:             actionSeverity(res.Action),
			ProcessingDurationMs: time.Since(start).Milliseconds(),
		}}
	default:
		return jobOutcome{err: fmt.Errorf("worker: unknown job type %q", job.JobType)}
	}
}

// finish writes the outcome back and, only once that write and the
// completion event both succeed, acks the job message. Any failure along
// the way nacks instead, so the broker's at-least-once redelivery takes
// over rather than silently dropping the job.
func (p *Pool) finish(job *store.Job, delivery broker.JobDelivery, outcome jobOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if outcome.err != nil {
		p.Logger.Error("worker: classification failed", "job_id", job.JobID, "err", outcome.err)
		if err := p.Store.MarkFailed(ctx, job.JobID, outcome.err.Error()); err != nil {
			p.Logger.Error("worker: mark failed write failed", "job_id", job.JobID, "err", err)
		}
		p.nackJob(delivery)
		return
	}

	if err := p.Store.MarkCompleted(ctx, job.JobID, outcome.result); err != nil {
		p.Logger.Error("worker: mark completed write failed", "job_id", job.JobID, "err", err)
		p.nackJob(delivery)
		return
	}

	if err := p.Broker.PublishCompleted(ctx, broker.CompletedMessage{JobID: job.JobID, TenantID: job.TenantID}); err != nil {
		p.Logger.Error("worker: publish completed failed", "job_id", job.JobID, "err", err)
		p.nackJob(delivery)
		return
	}

	if err := p.Broker.AckJob(ctx, delivery.Handle); err != nil {
		p.Logger.Error("worker: ack failed", "job_id", job.JobID, "err", err)
	}
}

func (p *Pool) nackJob(delivery broker.JobDelivery) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := p.Broker.NackJob(ctx, delivery.Handle); err != nil {
		p.Logger.Error("worker: nack failed", "job_id", delivery.Message.JobID, "err", err)
	}
}

func actionSeverity(a classifier.Action) int {
	switch a {
	case classifier.ActionReject:
		return int(classifier.SeveritySevere)
	case classifier.ActionReview:
		return int(classifier.SeverityModerate)
	default:
		return int(classifier.SeverityClean)
	}
}
