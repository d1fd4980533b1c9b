package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/stagesync/internal/pipeline"
	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/testutil"
)

func TestMulti(t *testing.T) {
	var a, b []pipeline.EventType
	o := Multi(
		pipeline.ObserverFunc(func(_ context.Context, e pipeline.Event) { a = append(a, e.Type) }),
		nil,
		pipeline.ObserverFunc(func(_ context.Context, e pipeline.Event) { b = append(b, e.Type) }),
	)

	o.Observe(context.Background(), pipeline.Event{Type: pipeline.EventRetry})
	o.Observe(context.Background(), pipeline.Event{Type: pipeline.EventFatal})

	want := []pipeline.EventType{pipeline.EventRetry, pipeline.EventFatal}
	assert.Equal(t, want, a)
	assert.Equal(t, want, b)
}

func TestLogObserver_Progress(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	o := NewLogObserver(zap.New(core))
	ctx := context.Background()

	o.Observe(ctx, pipeline.Event{Type: pipeline.EventPageFetched, Phase: pipeline.PhaseFetching, Buffered: 120, PageRecords: 40})
	o.Observe(ctx, pipeline.Event{Type: pipeline.EventRecordBuffered, Phase: pipeline.PhaseFetching, Buffered: 121})
	o.Observe(ctx, pipeline.Event{Type: pipeline.EventRecordBuffered, Phase: pipeline.PhaseFinalizing, Buffered: 37})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "buffered 120 (fetching)", entries[0].Message)
	assert.Equal(t, int64(40), entries[0].ContextMap()["page_records"])
	assert.Equal(t, "buffered 37 (finalizing)", entries[1].Message)
}

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func TestTracingObserver_Run(t *testing.T) {
	sr, tp := newRecorder()
	o := NewTracingObserver(tp.Tracer("test"))

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := config.Default()
	cfg.Destination.StagingTable = "staging_rows"
	cfg.Destination.MergeProcedure = "merge_rows"
	cfg.Transfer.ChunkSize = 10
	cfg.Transfer.RetryDelay = 0

	dest := testutil.NewMemoryDestination().FailFlushes(1)
	driver := pipeline.NewDriver(cfg, dest, testutil.TestLogger(t), pipeline.WithObserver(o))
	_, err := driver.Run(ctx, testutil.NewSliceCursor(testutil.Records(25), 10))
	require.NoError(t, err)

	spans := sr.Ended()
	names := map[string]int{}
	var root sdktrace.ReadOnlySpan
	for _, s := range spans {
		names[s.Name()]++
		if s.Name() == "stagesync.transfer" {
			root = s
		}
	}
	// 11 and 10 rows while paging, 5 at end of stream
	assert.Equal(t, 3, names["stagesync.flush"])
	assert.Equal(t, 1, names["stagesync.merge"])
	require.NotNil(t, root)

	var events []string
	for _, e := range root.Events() {
		events = append(events, e.Name)
	}
	assert.Equal(t, []string{"retry", "reconnected"}, events)
	assert.Equal(t, codes.Unset, root.Status().Code)

	for _, s := range spans {
		if s.Name() != "stagesync.transfer" {
			assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
		}
	}
}

func TestTracingObserver_Fatal(t *testing.T) {
	sr, tp := newRecorder()
	o := NewTracingObserver(tp.Tracer("test"))

	now := time.Now()
	o.Observe(context.Background(), pipeline.Event{Type: pipeline.EventPageFetched, Time: now})
	o.Observe(context.Background(), pipeline.Event{Type: pipeline.EventFatal, Time: now, Attempt: 3, Err: assert.AnError})
	o.Finish(nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
