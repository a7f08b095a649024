package server

import (
	"context"
)

// RunnerDaemon adapts a blocking Run(ctx) error component — worker.Pool,
// webhook.Dispatcher — into the Daemon interface Server manages: Start
// launches Run in a goroutine, Stop cancels its context and waits for it
// to return.
type RunnerDaemon struct {
	name string
	run  func(ctx context.Context) error

	cancel context.CancelFunc
	done   chan error
}

// NewRunnerDaemon wraps run under the given name.
func NewRunnerDaemon(name string, run func(ctx context.Context) error) *RunnerDaemon {
	return &RunnerDaemon{name: name, run: run}
}

func (d *RunnerDaemon) Name() string { return d.name }

func (d *RunnerDaemon) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan error, 1)
	go func() {
		d.done <- d.run(ctx)
	}()
	return nil
}

func (d *RunnerDaemon) Stop(ctx context.Context) error {
	if d.cancel == nil {
		return nil // never started
	}
	d.cancel()
	select {
	case err := <-d.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
