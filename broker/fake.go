package broker

import "context"

// Fake is an in-memory Broker for unit tests of worker, webhook, and core,
// avoiding a real Redis instance the way spec.md's ambient testing section
// calls for ("in-memory fakes for store.Store/broker.Broker").
type Fake struct {
	Jobs      []JobMessage
	Completed []CompletedMessage

	jobCh       chan JobDelivery
	completedCh chan CompletedDelivery
}

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{
		jobCh:       make(chan JobDelivery, 1024),
		completedCh: make(chan CompletedDelivery, 1024),
	}
}

var _ Broker = (*Fake)(nil)

func (f *Fake) PublishJob(ctx context.Context, msg JobMessage) error {
	f.Jobs = append(f.Jobs, msg)
	f.jobCh <- JobDelivery{Message: msg, Handle: msg.JobID}
	return nil
}

func (f *Fake) ConsumeJobs(ctx context.Context, consumerName string) (<-chan JobDelivery, error) {
	return f.jobCh, nil
}

func (f *Fake) AckJob(ctx context.Context, h Handle) error  { return nil }
func (f *Fake) NackJob(ctx context.Context, h Handle) error { return nil }

func (f *Fake) PublishCompleted(ctx context.Context, msg CompletedMessage) error {
	f.Completed = append(f.Completed, msg)
	f.completedCh <- CompletedDelivery{Message: msg, Handle: msg.JobID}
	return nil
}

func (f *Fake) ConsumeCompleted(ctx context.Context, consumerName string) (<-chan CompletedDelivery, error) {
	return f.completedCh, nil
}

func (f *Fake) AckCompleted(ctx context.Context, h Handle) error  { return nil }
func (f *Fake) NackCompleted(ctx context.Context, h Handle) error { return nil }

func (f *Fake) Close() error { return nil }
