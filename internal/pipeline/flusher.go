package pipeline

import (
	"context"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
)

// Flusher writes a staging batch to the destination. A flush is not
// idempotent: repeating it after a partial failure may stage the same rows
// twice, which the merge procedure must absorb.
type Flusher interface {
	Flush(ctx context.Context, conn core.Conn, batch models.Batch) error
	// Target names the staging table or procedure written to.
	Target() string
}

// BulkFlusher loads batches into a staging table with the destination's
// set-oriented transfer.
type BulkFlusher struct {
	Table string
}

// Flush implements Flusher.
func (f BulkFlusher) Flush(ctx context.Context, conn core.Conn, batch models.Batch) error {
	if err := conn.BulkLoad(ctx, f.Table, batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWriteFailed, "bulk load into staging table failed").
			WithDetail("table", f.Table).
			WithDetail("rows", batch.Len())
	}
	return nil
}

// Target implements Flusher.
func (f BulkFlusher) Target() string { return f.Table }

// StructuredFlusher passes each batch as a single table-shaped parameter to a
// staging procedure.
type StructuredFlusher struct {
	Procedure string
}

// Flush implements Flusher.
func (f StructuredFlusher) Flush(ctx context.Context, conn core.Conn, batch models.Batch) error {
	if err := conn.CallWithBatch(ctx, f.Procedure, batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWriteFailed, "staging procedure call failed").
			WithDetail("procedure", f.Procedure).
			WithDetail("rows", batch.Len())
	}
	return nil
}

// Target implements Flusher.
func (f StructuredFlusher) Target() string { return f.Procedure }

// FlusherFor returns the flusher matching the configured strategy.
func FlusherFor(strategy config.Strategy, dest config.DestinationConfig) Flusher {
	if strategy == config.StrategyStructured {
		return StructuredFlusher{Procedure: dest.StagingProcedure}
	}
	return BulkFlusher{Table: dest.StagingTable}
}
