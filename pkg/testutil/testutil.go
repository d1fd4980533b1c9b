// Package testutil provides testing utilities for stagesync
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Records generates n documents with keys id, name and value. ids start at 1.
func Records(n int) []models.Record {
	out := make([]models.Record, n)
	for i := 0; i < n; i++ {
		out[i] = models.DocumentFromPairs(
			"id", i+1,
			"name", fmt.Sprintf("record-%d", i+1),
			"value", float64(i)*1.5,
		)
	}
	return out
}

// SliceCursor is an in-memory core.Cursor serving fixed pages.
type SliceCursor struct {
	pages  [][]models.Record
	next   int
	failAt int
	closed bool
}

// NewSliceCursor splits records into pages of pageSize.
func NewSliceCursor(records []models.Record, pageSize int) *SliceCursor {
	c := &SliceCursor{failAt: -1}
	for start := 0; start < len(records); start += pageSize {
		end := start + pageSize
		if end > len(records) {
			end = len(records)
		}
		c.pages = append(c.pages, records[start:end])
	}
	return c
}

// FailAt makes the page with the given index fail with a source_unavailable error.
func (c *SliceCursor) FailAt(page int) *SliceCursor {
	c.failAt = page
	return c
}

// HasMore implements core.Cursor.
func (c *SliceCursor) HasMore() bool {
	return !c.closed && c.next < len(c.pages)
}

// NextPage implements core.Cursor.
func (c *SliceCursor) NextPage(ctx context.Context) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.next == c.failAt {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "page %d unavailable", c.next)
	}
	if c.next >= len(c.pages) {
		return nil, nil
	}
	page := c.pages[c.next]
	c.next++
	return page, nil
}

// Close implements core.Cursor.
func (c *SliceCursor) Close(context.Context) error {
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *SliceCursor) Closed() bool {
	return c.closed
}
