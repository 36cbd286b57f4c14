// Package run owns process lifecycle: signal handling and exit codes.
package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const defaultGrace = 15 * time.Second

type Runner struct {
	Logger *zap.Logger
	// Grace bounds how long a signalled process may spend shutting
	// down before the runner gives up waiting.
	Grace time.Duration
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log, Grace: defaultGrace}
}

// WithSignals runs start until it returns or SIGINT/SIGTERM arrives.
// On a signal the context is cancelled and the runner waits up to
// Grace for start to unwind. http.ErrServerClosed counts as a clean
// exit.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
		grace := r.Grace
		if grace <= 0 {
			grace = defaultGrace
		}
		select {
		case err := <-errCh:
			return r.exitCode(err)
		case <-time.After(grace):
			r.Logger.Warn("shutdown grace period elapsed, exiting anyway")
			return 0
		}
	case err := <-errCh:
		return r.exitCode(err)
	}
}

func (r *Runner) exitCode(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
