// Package shutdown runs a long-lived component until it finishes, its
// context is canceled, or the process receives SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// Run starts runner and blocks. When a signal arrives or ctx is canceled,
// runner's context is canceled, shutdown is called with a context bounded by
// timeout, and Run waits for runner to return within the same bound. A
// runner that returns on its own ends Run with its error.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	runner func(ctx context.Context) error,
	shutdown func(ctx context.Context) error,
) error {
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runDone := make(chan error, 1)
	go func() {
		runDone <- runner(runCtx)
	}()

	var runErr error
	finished := false
	select {
	case runErr = <-runDone:
		if runCtx.Err() == nil {
			return runErr
		}
		finished = true
	case <-runCtx.Done():
	}

	if ctx.Err() != nil {
		logger.Info("context canceled, initiating shutdown")
	} else {
		logger.Info("received signal, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if shutdown != nil {
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}

	if !finished {
		select {
		case runErr = <-runDone:
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded", "timeout", timeout)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	logger.Info("shutdown complete")
	return nil
}
