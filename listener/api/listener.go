package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/HaKr/token-server/logger"
)

// ApiListener owns the HTTP listener's lifecycle (spec §4.2, C7). The
// handler it's given is expected to already carry its own middleware
// chain (internal/httpapi.Handler applies RealIP/Recoverer/request-ID
// itself), so this type is only responsible for bind/serve/shutdown.
type ApiListener struct {
	logger  *logger.GatedLogger
	server  *http.Server
	stopped atomic.Bool
}

type ApiListenerConfig struct {
	Logger  *logger.GatedLogger
	Address string
}

func NewApiListener(cfg ApiListenerConfig, httpHandler http.Handler) (*ApiListener, error) {
	server := &http.Server{
		Addr:         cfg.Address,
		Handler:      httpHandler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &ApiListener{
		logger: cfg.Logger,
		server: server,
	}, nil
}

func (l *ApiListener) Addr() string {
	return l.server.Addr
}

func (l *ApiListener) Type() string {
	return "api"
}

// Start begins the HTTP server and blocks until ctx is canceled or the
// server fails. It returns the serving error, or the result of Stop once
// ctx is canceled.
func (l *ApiListener) Start(ctx context.Context) error {
	l.logger.Info("starting HTTP server")

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		err := l.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		l.logger.Info("shutdown signal received")
		return l.Stop()
	case err := <-errChan:
		l.logger.Error("HTTP Server error", logger.Err(err))
		return err
	}
}

func (l *ApiListener) Stop() error {
	// Check if already stopped, return early if so
	if !l.stopped.CompareAndSwap(false, true) {
		l.logger.Info("HTTP server already stopped, skipping")
		return nil
	}

	l.logger.Info("shutting down HTTP server")

	// Create a context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := l.server.Shutdown(ctx)
	if err != nil {
		l.logger.Error("error when shutting down the http server", logger.Err(err))
		return err
	}

	l.logger.Info("HTTP server stopped gracefully")
	return nil
}
