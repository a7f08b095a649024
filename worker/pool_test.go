package worker

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/classifier"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/store"
)

// fakeStore is a minimal in-memory store.Store for worker tests, avoiding
// a real sqlite file the way spec.md's ambient testing section calls for.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]*store.Job
}

func newFakeStore(jobs ...*store.Job) *fakeStore {
	fs := &fakeStore{jobs: make(map[string]*store.Job)}
	for _, j := range jobs {
		fs.jobs[j.JobID] = j
	}
	return fs
}

func (f *fakeStore) CreateTenant(ctx context.Context, t *store.Tenant) error { return nil }
func (f *fakeStore) GetTenantByAPIKey(ctx context.Context, apiKey string) (*store.Tenant, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) GetTenantByAppID(ctx context.Context, appID string) (*store.Tenant, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) GetTenantByEmail(ctx context.Context, email string) (*store.Tenant, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) GetTenant(ctx context.Context, tenantID int64) (*store.Tenant, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) UpdateWebhookURL(ctx context.Context, tenantID int64, webhookURL string) error {
	return nil
}
func (f *fakeStore) TouchLastUsed(ctx context.Context, tenantID int64) error { return nil }

func (f *fakeStore) InsertJob(ctx context.Context, j *store.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[j.JobID] = j
	return nil
}

func (f *fakeStore) MarkProcessing(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status != store.JobQueued && j.Status != store.JobProcessing {
		return store.ErrNotFound
	}
	j.Status = store.JobProcessing
	return nil
}

func (f *fakeStore) MarkCompleted(ctx context.Context, jobID string, result *store.JobResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = store.JobCompleted
	j.ModerationAction = result.ModerationAction
	j.Sentiment = result.Sentiment
	j.Confidence = result.Confidence
	j.Reasoning = result.Reasoning
	j.Labels = result.Labels
	j.Severity = result.Severity
	j.ProcessingDurationMs = result.ProcessingDurationMs
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, jobID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = store.JobFailed
	j.Reasoning = reason
	return nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string, tenantID int64) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ListJobsByTenant(ctx context.Context, tenantID int64, limit int) ([]*store.Job, error) {
	return nil, nil
}

func (f *fakeStore) InsertWebhookAttempt(ctx context.Context, a *store.WebhookAttempt) error {
	return nil
}
func (f *fakeStore) ListWebhookAttempts(ctx context.Context, jobID string) ([]*store.WebhookAttempt, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) get(jobID string) *store.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.jobs[jobID]
	return &cp
}

func newTestPool(t *testing.T, fs *fakeStore, b *broker.Fake) *Pool {
	t.Helper()
	return &Pool{
		Store:        fs,
		Broker:       b,
		Text:         classifier.NewPipeline(classifier.HeuristicModel{}, nil),
		Config:       config.Worker{Concurrency: 2, BatchSize: 8, BatchTimeout: config.Duration{Duration: 20 * time.Millisecond}},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ConsumerName: "test-worker",
	}
}

func runPoolUntilProcessed(t *testing.T, p *Pool, fs *fakeStore, jobID string, want store.JobStatus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if fs.get(jobID).Status == want {
			break
		}
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatalf("job %s never reached status %q (got %q)", jobID, want, fs.get(jobID).Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestPool_ProcessesTextJobAndPublishesCompletion(t *testing.T) {
	job := &store.Job{JobID: "job-1", TenantID: 7, PayloadText: "Sản phẩm rất tốt, tôi rất hài lòng!", JobType: store.JobTypeText, Status: store.JobQueued}
	fs := newFakeStore(job)
	b := broker.NewFake()
	p := newTestPool(t, fs, b)

	if err := b.PublishJob(context.Background(), broker.JobMessage{JobID: job.JobID, TenantID: job.TenantID}); err != nil {
		t.Fatalf("PublishJob: %v", err)
	}

	runPoolUntilProcessed(t, p, fs, job.JobID, store.JobCompleted)

	got := fs.get(job.JobID)
	if got.ModerationAction != store.ActionAllowed {
		t.Errorf("ModerationAction = %q, want allowed", got.ModerationAction)
	}
	if len(b.Completed) != 1 || b.Completed[0].JobID != job.JobID {
		t.Errorf("Completed = %v, want one completion for %s", b.Completed, job.JobID)
	}
}

func TestPool_RejectedTextJobIsMarkedAccordingly(t *testing.T) {
	job := &store.Job{JobID: "job-2", TenantID: 7, PayloadText: "Bọn da đen bẩn thỉu cút về nước đi", JobType: store.JobTypeText, Status: store.JobQueued}
	fs := newFakeStore(job)
	b := broker.NewFake()
	p := newTestPool(t, fs, b)
	b.PublishJob(context.Background(), broker.JobMessage{JobID: job.JobID, TenantID: job.TenantID})

	runPoolUntilProcessed(t, p, fs, job.JobID, store.JobCompleted)

	got := fs.get(job.JobID)
	if got.ModerationAction != store.ActionReject {
		t.Errorf("ModerationAction = %q, want reject", got.ModerationAction)
	}
}

func TestPool_RedeliveredProcessingJobStillCompletes(t *testing.T) {
	// Simulates a broker claimed-idle redelivery: the job is already
	// status=processing (a prior consumer crashed after MarkProcessing but
	// before the ack) when the message is handed to a new consumer.
	job := &store.Job{JobID: "job-4", TenantID: 7, PayloadText: "Sản phẩm rất tốt, tôi rất hài lòng!", JobType: store.JobTypeText, Status: store.JobProcessing}
	fs := newFakeStore(job)
	b := broker.NewFake()
	p := newTestPool(t, fs, b)
	b.PublishJob(context.Background(), broker.JobMessage{JobID: job.JobID, TenantID: job.TenantID})

	runPoolUntilProcessed(t, p, fs, job.JobID, store.JobCompleted)

	if len(b.Completed) != 1 || b.Completed[0].JobID != job.JobID {
		t.Errorf("Completed = %v, want one completion for %s", b.Completed, job.JobID)
	}
}

func TestPool_ImageJobWithoutPipelineMarksFailed(t *testing.T) {
	job := &store.Job{JobID: "job-3", TenantID: 7, PayloadText: base64.StdEncoding.EncodeToString([]byte("x")), JobType: store.JobTypeImage, Status: store.JobQueued}
	fs := newFakeStore(job)
	b := broker.NewFake()
	p := newTestPool(t, fs, b) // no Image pipeline configured
	b.PublishJob(context.Background(), broker.JobMessage{JobID: job.JobID, TenantID: job.TenantID})

	runPoolUntilProcessed(t, p, fs, job.JobID, store.JobFailed)
}

func TestDrainBatch_StopsAtSizeLimit(t *testing.T) {
	queue := make(chan queuedJob, 10)
	for i := 0; i < 5; i++ {
		queue <- queuedJob{}
	}
	batch, keepGoing := drainBatch(context.Background(), queue, 3, time.Second)
	if len(batch) != 3 {
		t.Errorf("len(batch) = %d, want 3", len(batch))
	}
	if !keepGoing {
		t.Errorf("keepGoing = false, want true")
	}
}

func TestDrainBatch_StopsAtTimeoutWithFewerThanSize(t *testing.T) {
	queue := make(chan queuedJob, 10)
	queue <- queuedJob{}
	batch, keepGoing := drainBatch(context.Background(), queue, 10, 10*time.Millisecond)
	if len(batch) != 1 {
		t.Errorf("len(batch) = %d, want 1", len(batch))
	}
	if !keepGoing {
		t.Errorf("keepGoing = false, want true")
	}
}

func TestDrainBatch_ContextCancelledBeforeAnyItemReturnsNotKeepGoing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queue := make(chan queuedJob)
	batch, keepGoing := drainBatch(ctx, queue, 10, time.Second)
	if batch != nil {
		t.Errorf("batch = %v, want nil", batch)
	}
	if keepGoing {
		t.Errorf("keepGoing = true, want false")
	}
}
