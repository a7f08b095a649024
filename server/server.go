// Package server implements the shared process lifecycle used by all
// three VietCMS binaries: start an optional HTTP listener plus a set of
// background daemons, wait for a termination signal or a fatal error,
// then shut everything down within a bounded grace period.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/QuyenFunc/vietcmc/config"
)

// Daemon is a background component whose lifecycle the Server manages
// alongside the optional HTTP listener.
type Daemon interface {
	Name() string
	Start() error
	Stop(ctx context.Context) error
}

// Server runs an optional HTTP listener plus any number of daemons under
// one signal-driven graceful-shutdown loop.
type Server struct {
	configProvider *config.Provider
	handler        http.Handler // nil for non-HTTP processes (worker, dispatcher)
	logger         *slog.Logger
	daemons        []Daemon
	onReload       func() // invoked on SIGHUP, after configProvider is refreshed by the caller
	exitFunc       func(code int)
}

// New constructs a Server. handler may be nil for a process with no HTTP
// surface (cmd/vietcms-worker, cmd/vietcms-dispatcher); daemons are added
// via AddDaemon.
func New(provider *config.Provider, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		configProvider: provider,
		handler:        handler,
		logger:         logger,
		exitFunc:       os.Exit,
	}
}

// AddDaemon registers a daemon whose Start/Stop the Server will call.
func (s *Server) AddDaemon(d Daemon) {
	if d == nil {
		s.logger.Warn("attempted to add a nil daemon")
		return
	}
	s.logger.Info("adding daemon", "daemon_name", d.Name())
	s.daemons = append(s.daemons, d)
}

// OnReload sets the callback invoked when SIGHUP arrives, after the
// caller's own config-reload logic has already run.
func (s *Server) OnReload(fn func()) {
	s.onReload = fn
}

func (s *Server) handleSIGHUP() {
	s.logger.Info("received SIGHUP - reloading configuration")
	if s.onReload != nil {
		s.onReload()
	}
}

// Run starts the HTTP listener (if any) and every daemon, blocks until a
// termination signal or a fatal startup/runtime error arrives, then shuts
// everything down within the configured grace period. It calls os.Exit
// and never returns.
func (s *Server) Run() {
	serverCfg := s.configProvider.Get().Server

	var httpServer *http.Server
	// Buffered to 2: an HTTP listener failure and a daemon start failure
	// can both fire before either is drained, and a full buffer would
	// make the second send block forever.
	serverErr := make(chan error, 2)

	if s.handler != nil {
		httpServer = &http.Server{
			Addr:              serverCfg.Addr,
			Handler:           s.handler,
			ReadTimeout:       serverCfg.ReadTimeout.Duration,
			ReadHeaderTimeout: serverCfg.ReadHeaderTimeout.Duration,
			WriteTimeout:      serverCfg.WriteTimeout.Duration,
			IdleTimeout:       serverCfg.IdleTimeout.Duration,
		}
		s.logger.Info("starting HTTP server", "addr", serverCfg.Addr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	s.logger.Info("starting daemons", "count", len(s.daemons))
	for _, d := range s.daemons {
		if err := d.Start(); err != nil {
			s.logger.Error("daemon failed to start", "daemon_name", d.Name(), "error", err)
			serverErr <- fmt.Errorf("daemon %q failed to start: %w", d.Name(), err)
			break
		}
		s.logger.Info("daemon started", "daemon_name", d.Name())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)

	running := true
	fatal := false
	for running {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGINT, syscall.SIGQUIT:
				s.logger.Info("received termination signal, shutting down", "signal", sig.String())
				running = false
			case syscall.SIGHUP:
				s.handleSIGHUP()
			}
		case err := <-serverErr:
			s.logger.Error("fatal error, shutting down", "error", err)
			running = false
			fatal = true
		}
	}
	signal.Stop(sigChan)
	close(sigChan)

	shutdownTimeout := s.configProvider.Get().Server.ShutdownGracefulTimeout.Duration
	gracefulCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownGroup, _ := errgroup.WithContext(gracefulCtx)

	if httpServer != nil {
		shutdownGroup.Go(func() error {
			s.logger.Info("shutting down HTTP server")
			if err := httpServer.Shutdown(gracefulCtx); err != nil {
				s.logger.Error("HTTP server shutdown error", "error", err)
				return err
			}
			return nil
		})
	}

	for _, d := range s.daemons {
		daemon := d
		shutdownGroup.Go(func() error {
			s.logger.Info("stopping daemon", "daemon_name", daemon.Name())
			if err := daemon.Stop(gracefulCtx); err != nil {
				s.logger.Error("daemon stop error", "daemon_name", daemon.Name(), "error", err)
				return fmt.Errorf("daemon %q failed to stop: %w", daemon.Name(), err)
			}
			return nil
		})
	}

	if err := shutdownGroup.Wait(); err != nil {
		s.logger.Error("shutdown completed with errors", "error", err)
		s.exitFunc(1)
		return
	}
	if fatal {
		s.logger.Error("stopped after a fatal error")
		s.exitFunc(1)
		return
	}
	s.logger.Info("all systems stopped gracefully")
	s.exitFunc(0)
}
