package pipeline

import (
	"context"
	"time"
)

// EventType identifies a diagnostics event emitted by the driver.
type EventType string

const (
	EventPageFetched    EventType = "page_fetched"
	EventRecordBuffered EventType = "record_buffered"
	EventFlushStarted   EventType = "flush_started"
	EventFlushCompleted EventType = "flush_completed"
	EventMergeStarted   EventType = "merge_started"
	EventMergeCompleted EventType = "merge_completed"
	EventRetry          EventType = "retry"
	EventReconnected    EventType = "reconnected"
	EventFatal          EventType = "fatal"
	EventRunCompleted   EventType = "run_completed"
)

// Phase distinguishes events raised while paging from those raised while
// flushing the remainder at end of stream.
type Phase string

const (
	PhaseFetching   Phase = "fetching"
	PhaseFinalizing Phase = "finalizing"
)

// Event is a diagnostics notification. Only the fields relevant to Type are set.
type Event struct {
	Type  EventType
	Phase Phase
	Time  time.Time

	// PageRecords is the number of records in a fetched page
	PageRecords int
	// Buffered is the staging buffer size after the event
	Buffered int
	// Rows is the batch size of a flush
	Rows int
	// Target is the staging table or procedure of a flush, or the merge procedure
	Target string
	// Step names the writer step that failed for retry and fatal events
	Step string
	// Attempt is the consecutive failure count for retry and fatal events
	Attempt  int
	Duration time.Duration
	Err      error
	// Stats is set on EventRunCompleted
	Stats *Stats
}

// Observer receives driver events synchronously on the driver goroutine.
// Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, e Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// Stats are the diagnostics totals of a run. They never influence control flow.
type Stats struct {
	RecordsRead int64         `json:"records_read"`
	Pages       int64         `json:"pages"`
	Flushes     int64         `json:"flushes"`
	RowsFlushed int64         `json:"rows_flushed"`
	Merges      int64         `json:"merges"`
	Retries     int64         `json:"retries"`
	Reconnects  int64         `json:"reconnects"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
}

// Throughput returns records read per second.
func (s *Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.RecordsRead) / s.Duration.Seconds()
}
