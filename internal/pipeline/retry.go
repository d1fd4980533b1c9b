package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"go.uber.org/zap"
)

// StepFunc is one unit of work that needs a live destination connection.
type StepFunc func(ctx context.Context, conn core.Conn) error

// FatalError is returned when a step fails MaxRetries consecutive times.
// Record is the in-flight source record, nil for end-of-stream steps.
type FatalError struct {
	Record   models.Record
	Step     string
	Attempts int
	Cause    error
	// Pending holds the rows still buffered when the run aborted
	Pending models.Batch
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("transfer aborted after %d consecutive failures in %s step: %v", e.Attempts, e.Step, e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// RetryingWriter owns the single destination connection and runs steps
// against it. A failed step closes the connection, waits RetryDelay, reopens
// and runs the whole step again. The MaxRetries-th consecutive failure is
// fatal and no further attempt is made. Any success resets the count.
type RetryingWriter struct {
	dest       core.Destination
	conn       core.Conn
	maxRetries int
	retryDelay time.Duration
	failures   int
	reopening  bool

	logger   *zap.Logger
	observer Observer
	stats    *Stats
}

// NewRetryingWriter creates a writer. No connection is opened until the first step.
func NewRetryingWriter(dest core.Destination, maxRetries int, retryDelay time.Duration, logger *zap.Logger, observer Observer) *RetryingWriter {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &RetryingWriter{
		dest:       dest,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With(zap.String("component", "retrying_writer"), zap.String("destination", dest.Name())),
		observer:   observer,
		stats:      &Stats{},
	}
}

// Failures returns the current consecutive failure count.
func (w *RetryingWriter) Failures() int {
	return w.failures
}

// Do runs step until it succeeds, the retry budget is exhausted or ctx is done.
func (w *RetryingWriter) Do(ctx context.Context, record models.Record, name string, step StepFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "transfer cancelled")
		}

		err := w.attempt(ctx, step)
		if err == nil {
			w.failures = 0
			return nil
		}
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "transfer cancelled")
		}

		w.failures++
		if w.failures >= w.maxRetries {
			w.logger.Error("retry budget exhausted",
				zap.String("step", name),
				zap.Int("attempts", w.failures),
				zap.Error(err))
			w.observer.Observe(ctx, Event{
				Type:    EventFatal,
				Time:    time.Now(),
				Step:    name,
				Attempt: w.failures,
				Err:     err,
			})
			return &FatalError{Record: record, Step: name, Attempts: w.failures, Cause: err}
		}

		w.stats.Retries++
		w.logger.Warn("destination step failed, reconnecting",
			zap.String("step", name),
			zap.Int("attempt", w.failures),
			zap.Int("max_retries", w.maxRetries),
			zap.Duration("retry_delay", w.retryDelay),
			zap.Error(err))
		w.observer.Observe(ctx, Event{
			Type:    EventRetry,
			Time:    time.Now(),
			Step:    name,
			Attempt: w.failures,
			Err:     err,
		})

		w.closeConn(ctx)
		w.reopening = true

		timer := time.NewTimer(w.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "transfer cancelled during retry delay")
		case <-timer.C:
		}
	}
}

func (w *RetryingWriter) attempt(ctx context.Context, step StepFunc) error {
	if w.conn == nil {
		conn, err := w.dest.Open(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to open destination connection")
		}
		w.conn = conn
		if w.reopening {
			w.reopening = false
			w.stats.Reconnects++
			w.logger.Info("destination connection reopened")
			w.observer.Observe(ctx, Event{Type: EventReconnected, Time: time.Now()})
		}
	}
	return step(ctx, w.conn)
}

func (w *RetryingWriter) closeConn(ctx context.Context) {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(ctx); err != nil {
		w.logger.Debug("error closing failed connection", zap.Error(err))
	}
	w.conn = nil
}

// Close releases the destination connection.
func (w *RetryingWriter) Close(ctx context.Context) error {
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close(ctx)
	w.conn = nil
	return err
}
