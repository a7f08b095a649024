package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/QuyenFunc/vietcmc/config"
)

type fakeDaemon struct {
	name             string
	startShouldError error
	stopShouldError  error
	startCalledChan  chan bool
	stopCalledChan   chan bool
	startDelay       time.Duration
}

func newFakeDaemon(name string) *fakeDaemon {
	return &fakeDaemon{
		name:            name,
		startCalledChan: make(chan bool, 1),
		stopCalledChan:  make(chan bool, 1),
	}
}

func (fd *fakeDaemon) Name() string { return fd.name }

func (fd *fakeDaemon) Start() error {
	if fd.startDelay > 0 {
		time.Sleep(fd.startDelay)
	}
	fd.startCalledChan <- true
	return fd.startShouldError
}

func (fd *fakeDaemon) Stop(ctx context.Context) error {
	fd.stopCalledChan <- true
	return fd.stopShouldError
}

func newTestServer(t *testing.T) (*Server, *config.Provider) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownGracefulTimeout = config.Duration{Duration: 200 * time.Millisecond}
	provider := config.NewProvider(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return New(provider, handler, logger), provider
}

func TestServer_Run_FullLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	d := newFakeDaemon("test-daemon")
	srv.AddDaemon(d)

	exitCalled := make(chan int, 1)
	srv.exitFunc = func(code int) { exitCalled <- code }

	go srv.Run()

	select {
	case <-d.startCalledChan:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for daemon to start")
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send SIGINT: %v", err)
	}

	select {
	case <-d.stopCalledChan:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for daemon to stop")
	}

	select {
	case code := <-exitCalled:
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for server to exit")
	}
}

func TestServer_Run_DaemonStartFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	d1 := newFakeDaemon("daemon1-ok")
	d2 := newFakeDaemon("daemon2-fail")
	d2.startShouldError = errors.New("startup failed")
	srv.AddDaemon(d1)
	srv.AddDaemon(d2)

	exitCalled := make(chan int, 1)
	srv.exitFunc = func(code int) { exitCalled <- code }

	go srv.Run()

	select {
	case <-d1.startCalledChan:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for daemon1 to start")
	}
	select {
	case <-d2.startCalledChan:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for daemon2 start")
	}
	select {
	case <-d1.stopCalledChan:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for daemon1 to be stopped during cleanup")
	}
	select {
	case code := <-exitCalled:
		if code == 0 {
			t.Error("expected non-zero exit code after daemon start failure")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for server to exit")
	}
}

func TestServer_Run_HandlesSIGHUP(t *testing.T) {
	srv, _ := newTestServer(t)
	reloadCalled := make(chan bool, 1)
	srv.OnReload(func() { reloadCalled <- true })

	exitCalled := make(chan int, 1)
	srv.exitFunc = func(code int) { exitCalled <- code }

	go srv.Run()
	time.Sleep(30 * time.Millisecond)

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("send SIGHUP: %v", err)
	}

	select {
	case <-reloadCalled:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for reload callback")
	}

	select {
	case code := <-exitCalled:
		t.Fatalf("server exited with code %d after SIGHUP, should keep running", code)
	default:
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send SIGINT for cleanup: %v", err)
	}
	select {
	case <-exitCalled:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for server to exit during cleanup")
	}
}

func TestAddDaemon_Nil(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.AddDaemon(nil)
	if len(srv.daemons) != 0 {
		t.Error("expected daemon list to stay empty after adding nil")
	}
}

func TestRunnerDaemon_StopNeverStarted(t *testing.T) {
	d := NewRunnerDaemon("never-started", func(ctx context.Context) error { return nil })
	if err := d.Stop(context.Background()); err != nil {
		t.Errorf("Stop on a never-started daemon returned %v, want nil", err)
	}
}

func TestRunnerDaemon_StartThenStop(t *testing.T) {
	started := make(chan struct{})
	d := NewRunnerDaemon("runner", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err == nil {
		t.Error("expected Stop to surface the context-cancellation error from run")
	}
}
