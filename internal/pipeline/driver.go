// Package pipeline implements the chunked streaming transfer engine.
//
// A Driver pulls pages from a source cursor, projects every record onto a
// fixed field schema, buffers the rows and, whenever the buffer crosses the
// threshold of the configured strategy, flushes them to the destination
// staging area and conditionally triggers the destination merge procedure.
// At end of stream the remainder is flushed and a final merge always runs.
//
// Everything happens on the calling goroutine in strict sequence. All work
// that touches the destination goes through a RetryingWriter which reconnects
// and replays the whole per-record step after a failure, so staged rows may be
// duplicated; the merge procedure is expected to be idempotent.
//
// # Basic Usage
//
//	cursor, _ := registry.CreateSource(ctx, cfg.Source)
//	dest, _ := registry.CreateDestination(cfg.Destination)
//
//	driver := pipeline.NewDriver(cfg, dest, logger, pipeline.WithObserver(obs))
//	stats, err := driver.Run(ctx, cursor)
package pipeline

import (
	"context"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"go.uber.org/zap"
)

const (
	stepConnect  = "connect"
	stepRecord   = "record"
	stepFinalize = "finalize"
)

// Option configures a Driver.
type Option func(*Driver)

// WithObserver routes diagnostics events to o.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.observer = o
		}
	}
}

// Driver orchestrates a single transfer run.
type Driver struct {
	strategy  config.Strategy
	chunkSize int

	projector *Projector
	buffer    *StagingBuffer
	policy    ThresholdPolicy
	flusher   Flusher
	merger    MergeCoordinator
	writer    *RetryingWriter

	// records processed since the last merge trigger
	sinceMerge int

	stats    *Stats
	observer Observer
	logger   *zap.Logger
}

// NewDriver creates a driver for cfg writing to dest. cfg must already be
// validated.
func NewDriver(cfg config.Config, dest core.Destination, logger *zap.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := cfg.Transfer
	d := &Driver{
		strategy:  t.Strategy,
		chunkSize: t.ChunkSize,
		projector: NewProjector(t.Fields),
		buffer:    NewStagingBuffer(t.ChunkSize),
		policy:    PolicyFor(t.Strategy, t.ChunkSize),
		flusher:   FlusherFor(t.Strategy, cfg.Destination),
		merger:    MergeCoordinator{Procedure: cfg.Destination.MergeProcedure},
		stats:     &Stats{},
		observer:  nopObserver{},
		logger:    logger.With(zap.String("component", "driver")),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.writer = NewRetryingWriter(dest, t.MaxRetries, t.RetryDelay, logger, d.observer)
	d.writer.stats = d.stats
	return d
}

// Schema returns the field schema of the run, empty until the first record
// when it is inferred.
func (d *Driver) Schema() models.FieldSchema {
	return d.projector.Schema()
}

// Run transfers every record of cursor. The cursor is not closed. Stats are
// returned even when the run fails; a fatal destination failure is reported
// as *FatalError.
func (d *Driver) Run(ctx context.Context, cursor core.Cursor) (*Stats, error) {
	d.stats.StartTime = time.Now()
	defer func() {
		d.stats.Duration = time.Since(d.stats.StartTime)
		if err := d.writer.Close(ctx); err != nil {
			d.logger.Warn("failed to close destination connection", zap.Error(err))
		}
	}()

	d.logger.Info("starting transfer",
		zap.String("strategy", string(d.strategy)),
		zap.Int("chunk_size", d.chunkSize),
		zap.String("flush_target", d.flusher.Target()),
		zap.Bool("merge_enabled", d.merger.Enabled()))

	if err := d.writer.Do(ctx, nil, stepConnect, func(context.Context, core.Conn) error { return nil }); err != nil {
		return d.stats, d.abort(err)
	}

	for cursor.HasMore() {
		if err := ctx.Err(); err != nil {
			return d.stats, errors.Wrap(err, errors.ErrorTypeTimeout, "transfer cancelled")
		}

		page, err := cursor.NextPage(ctx)
		if err != nil {
			if !errors.IsType(err, errors.ErrorTypeSourceUnavailable) {
				err = errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to fetch source page")
			}
			d.logger.Error("source page fetch failed", zap.Error(err))
			return d.stats, err
		}

		d.stats.Pages++
		d.observer.Observe(ctx, Event{
			Type:        EventPageFetched,
			Phase:       PhaseFetching,
			Time:        time.Now(),
			PageRecords: len(page),
			Buffered:    d.buffer.Size(),
		})

		for _, record := range page {
			if err := d.processRecord(ctx, record); err != nil {
				return d.stats, d.abort(err)
			}
		}
	}

	if err := d.finalize(ctx); err != nil {
		return d.stats, d.abort(err)
	}

	d.stats.Duration = time.Since(d.stats.StartTime)
	d.logger.Info("transfer completed",
		zap.Int64("records_read", d.stats.RecordsRead),
		zap.Int64("pages", d.stats.Pages),
		zap.Int64("flushes", d.stats.Flushes),
		zap.Int64("rows_flushed", d.stats.RowsFlushed),
		zap.Int64("merges", d.stats.Merges),
		zap.Int64("retries", d.stats.Retries),
		zap.Duration("duration", d.stats.Duration),
		zap.Float64("throughput_rps", d.stats.Throughput()))
	d.observer.Observe(ctx, Event{
		Type:     EventRunCompleted,
		Time:     time.Now(),
		Duration: d.stats.Duration,
		Stats:    d.stats,
	})
	return d.stats, nil
}

// processRecord counts the record once and runs its step through the writer.
// A retried step projects and appends the record again.
func (d *Driver) processRecord(ctx context.Context, record models.Record) error {
	d.stats.RecordsRead++
	d.sinceMerge++

	return d.writer.Do(ctx, record, stepRecord, func(ctx context.Context, conn core.Conn) error {
		row := d.projector.Project(record)
		d.buffer.SetSchema(d.projector.Schema())
		d.buffer.Append(row)
		d.observer.Observe(ctx, Event{
			Type:     EventRecordBuffered,
			Phase:    PhaseFetching,
			Time:     time.Now(),
			Buffered: d.buffer.Size(),
		})

		if !d.buffer.IsAtThreshold(d.policy) {
			return nil
		}
		if err := d.flush(ctx, conn, PhaseFetching); err != nil {
			return err
		}

		if d.strategy == config.StrategyStructured && d.sinceMerge >= d.chunkSize {
			if err := d.merge(ctx, conn, PhaseFetching); err != nil {
				return err
			}
			d.sinceMerge = 0
		}
		return nil
	})
}

// finalize flushes whatever is left and always merges.
func (d *Driver) finalize(ctx context.Context) error {
	d.observer.Observe(ctx, Event{
		Type:     EventRecordBuffered,
		Phase:    PhaseFinalizing,
		Time:     time.Now(),
		Buffered: d.buffer.Size(),
	})

	return d.writer.Do(ctx, nil, stepFinalize, func(ctx context.Context, conn core.Conn) error {
		if d.buffer.Size() > 0 {
			if err := d.flush(ctx, conn, PhaseFinalizing); err != nil {
				return err
			}
		}
		if err := d.merge(ctx, conn, PhaseFinalizing); err != nil {
			return err
		}
		d.sinceMerge = 0
		return nil
	})
}

// flush writes the buffered rows and clears the buffer only on success so a
// failed flush keeps its rows for the retried step.
func (d *Driver) flush(ctx context.Context, conn core.Conn, phase Phase) error {
	batch := d.buffer.Batch()
	d.observer.Observe(ctx, Event{
		Type:   EventFlushStarted,
		Phase:  phase,
		Time:   time.Now(),
		Rows:   batch.Len(),
		Target: d.flusher.Target(),
	})

	start := time.Now()
	if err := d.flusher.Flush(ctx, conn, batch); err != nil {
		return err
	}
	d.buffer.Drain()

	d.stats.Flushes++
	d.stats.RowsFlushed += int64(batch.Len())
	d.logger.Debug("batch flushed",
		zap.String("phase", string(phase)),
		zap.Int("rows", batch.Len()),
		zap.Duration("duration", time.Since(start)))
	d.observer.Observe(ctx, Event{
		Type:     EventFlushCompleted,
		Phase:    phase,
		Time:     time.Now(),
		Rows:     batch.Len(),
		Target:   d.flusher.Target(),
		Duration: time.Since(start),
	})
	return nil
}

func (d *Driver) merge(ctx context.Context, conn core.Conn, phase Phase) error {
	if !d.merger.Enabled() {
		return nil
	}

	d.observer.Observe(ctx, Event{
		Type:   EventMergeStarted,
		Phase:  phase,
		Time:   time.Now(),
		Target: d.merger.Procedure,
	})

	start := time.Now()
	if err := d.merger.Merge(ctx, conn); err != nil {
		return err
	}

	d.stats.Merges++
	d.logger.Debug("merge completed",
		zap.String("phase", string(phase)),
		zap.Duration("duration", time.Since(start)))
	d.observer.Observe(ctx, Event{
		Type:     EventMergeCompleted,
		Phase:    phase,
		Time:     time.Now(),
		Target:   d.merger.Procedure,
		Duration: time.Since(start),
	})
	return nil
}

// abort attaches the pending rows to a fatal error.
func (d *Driver) abort(err error) error {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		pending := d.buffer.Batch()
		rows := make([]models.Row, len(pending.Rows))
		copy(rows, pending.Rows)
		fatal.Pending = models.Batch{Schema: pending.Schema, Rows: rows}

		fields := []zap.Field{
			zap.String("step", fatal.Step),
			zap.Int("attempts", fatal.Attempts),
			zap.Int("pending_rows", len(rows)),
			zap.Error(fatal.Cause),
		}
		if fatal.Record != nil {
			fields = append(fields, zap.ByteString("record", models.RecordJSON(fatal.Record)))
		}
		d.logger.Error("transfer aborted", fields...)
	}
	return err
}
