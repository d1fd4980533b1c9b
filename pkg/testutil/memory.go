package testutil

import (
	"context"
	"sync"

	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
)

// MemoryDestination is an in-memory core.Destination with a staging area and
// a final table keyed by KeyField. Its merge upserts every staged row into
// the final table, so merging twice or merging duplicates is harmless.
// Failures can be injected per operation.
type MemoryDestination struct {
	KeyField string

	mu         sync.Mutex
	schema     models.FieldSchema
	staged     []models.Row
	final      map[string]models.Row
	flushSizes []int
	flushCalls int
	mergeCalls int
	procedures []string
	opens      int
	closes     int

	failFlush int
	failMerge int
	failOpen  int
}

// NewMemoryDestination creates a destination keyed by the "id" column.
func NewMemoryDestination() *MemoryDestination {
	return &MemoryDestination{
		KeyField: "id",
		final:    make(map[string]models.Row),
	}
}

// FailFlushes makes the next n flushes fail. A negative n fails every flush.
func (m *MemoryDestination) FailFlushes(n int) *MemoryDestination {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFlush = n
	return m
}

// FailMerges makes the next n merge calls fail. A negative n fails every merge.
func (m *MemoryDestination) FailMerges(n int) *MemoryDestination {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMerge = n
	return m
}

// FailOpens makes the next n Open calls fail. A negative n fails every open.
func (m *MemoryDestination) FailOpens(n int) *MemoryDestination {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen = n
	return m
}

// Name implements core.Destination.
func (m *MemoryDestination) Name() string { return "memory" }

// Open implements core.Destination.
func (m *MemoryDestination) Open(context.Context) (core.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if consume(&m.failOpen) {
		return nil, errors.New(errors.ErrorTypeConnection, "memory destination unreachable")
	}
	m.opens++
	return &memoryConn{dest: m}, nil
}

// Staged returns a copy of every row written to the staging area.
func (m *MemoryDestination) Staged() []models.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Row, len(m.staged))
	copy(out, m.staged)
	return out
}

// StagedSchema returns the schema of the last staged batch.
func (m *MemoryDestination) StagedSchema() models.FieldSchema {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schema
}

// Final returns a copy of the merged table.
func (m *MemoryDestination) Final() map[string]models.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Row, len(m.final))
	for k, v := range m.final {
		out[k] = v
	}
	return out
}

// FlushSizes returns the row count of every successful flush in order.
func (m *MemoryDestination) FlushSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.flushSizes))
	copy(out, m.flushSizes)
	return out
}

// FlushCalls returns the number of flush attempts, failed ones included.
func (m *MemoryDestination) FlushCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushCalls
}

// MergeCalls returns the number of merge attempts, failed ones included.
func (m *MemoryDestination) MergeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergeCalls
}

// Procedures returns the staging procedure names called with batches.
func (m *MemoryDestination) Procedures() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.procedures...)
}

// Opens returns the number of successful Open calls.
func (m *MemoryDestination) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Closes returns the number of connection Close calls.
func (m *MemoryDestination) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Merge applies the staged rows to the final table, like the merge procedure.
func (m *MemoryDestination) Merge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merge()
}

func (m *MemoryDestination) merge() {
	key := 0
	for i, f := range m.schema {
		if f == m.KeyField {
			key = i
			break
		}
	}
	for _, row := range m.staged {
		if key < len(row) {
			m.final[row[key]] = row
		}
	}
}

func (m *MemoryDestination) stage(batch models.Batch) error {
	m.flushCalls++
	if consume(&m.failFlush) {
		return errors.New(errors.ErrorTypeConnection, "connection reset while staging rows")
	}
	m.schema = batch.Schema
	for _, row := range batch.Rows {
		m.staged = append(m.staged, append(models.Row(nil), row...))
	}
	m.flushSizes = append(m.flushSizes, batch.Len())
	return nil
}

// consume reports whether an injected failure fires and decrements the budget.
func consume(budget *int) bool {
	switch {
	case *budget < 0:
		return true
	case *budget > 0:
		*budget--
		return true
	default:
		return false
	}
}

type memoryConn struct {
	dest   *MemoryDestination
	closed bool
}

func (c *memoryConn) BulkLoad(_ context.Context, _ string, batch models.Batch) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	return c.dest.stage(batch)
}

func (c *memoryConn) CallWithBatch(_ context.Context, procedure string, batch models.Batch) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	c.dest.procedures = append(c.dest.procedures, procedure)
	return c.dest.stage(batch)
}

func (c *memoryConn) Call(context.Context, string) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	c.dest.mergeCalls++
	if consume(&c.dest.failMerge) {
		return errors.New(errors.ErrorTypeConnection, "connection reset during merge")
	}
	c.dest.merge()
	return nil
}

func (c *memoryConn) Truncate(context.Context, string) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	c.dest.staged = nil
	return nil
}

func (c *memoryConn) Close(context.Context) error {
	c.dest.mu.Lock()
	defer c.dest.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.dest.closes++
	}
	return nil
}
