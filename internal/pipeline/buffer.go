package pipeline

import (
	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/models"
)

// StructuredBoundary is the row count at which the structured policy flushes
// regardless of the chunk size. Table-valued procedure parameters degrade
// sharply beyond roughly a thousand rows.
const StructuredBoundary = 1000

// ThresholdPolicy decides when the staging buffer is ready to flush.
type ThresholdPolicy interface {
	Ready(size int) bool
	Name() string
}

// BulkPolicy flushes once the buffer holds ChunkSize rows.
type BulkPolicy struct {
	ChunkSize int
}

// Ready implements ThresholdPolicy.
func (p BulkPolicy) Ready(size int) bool {
	return size >= p.ChunkSize
}

// Name implements ThresholdPolicy.
func (p BulkPolicy) Name() string { return string(config.StrategyBulk) }

// StructuredPolicy flushes on every multiple of StructuredBoundary and once
// the buffer holds ChunkSize rows.
type StructuredPolicy struct {
	ChunkSize int
}

// Ready implements ThresholdPolicy.
func (p StructuredPolicy) Ready(size int) bool {
	if size <= 0 {
		return false
	}
	return size%StructuredBoundary == 0 || size >= p.ChunkSize
}

// Name implements ThresholdPolicy.
func (p StructuredPolicy) Name() string { return string(config.StrategyStructured) }

// PolicyFor returns the threshold policy of a strategy.
func PolicyFor(strategy config.Strategy, chunkSize int) ThresholdPolicy {
	if strategy == config.StrategyStructured {
		return StructuredPolicy{ChunkSize: chunkSize}
	}
	return BulkPolicy{ChunkSize: chunkSize}
}

// StagingBuffer accumulates projected rows between flushes. It is owned by a
// single driver goroutine and is not safe for concurrent use.
type StagingBuffer struct {
	schema   models.FieldSchema
	rows     []models.Row
	capacity int
}

// NewStagingBuffer creates a buffer sized for one chunk.
func NewStagingBuffer(capacity int) *StagingBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &StagingBuffer{
		rows:     make([]models.Row, 0, capacity),
		capacity: capacity,
	}
}

// SetSchema records the schema attached to batches handed out by the buffer.
func (b *StagingBuffer) SetSchema(schema models.FieldSchema) {
	b.schema = schema
}

// Append adds a row.
func (b *StagingBuffer) Append(row models.Row) {
	b.rows = append(b.rows, row)
}

// Size returns the number of buffered rows.
func (b *StagingBuffer) Size() int {
	return len(b.rows)
}

// Batch returns a view of the buffered rows without clearing them. The view
// is only valid until the next Append or Drain.
func (b *StagingBuffer) Batch() models.Batch {
	return models.Batch{Schema: b.schema, Rows: b.rows}
}

// Drain returns the buffered rows and empties the buffer.
func (b *StagingBuffer) Drain() models.Batch {
	batch := models.Batch{Schema: b.schema, Rows: b.rows}
	b.rows = make([]models.Row, 0, b.capacity)
	return batch
}

// IsAtThreshold reports whether policy considers the buffer ready to flush.
func (b *StagingBuffer) IsAtThreshold(policy ThresholdPolicy) bool {
	return policy.Ready(len(b.rows))
}
