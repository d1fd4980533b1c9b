package observability

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/stagesync/internal/pipeline"
	"github.com/ajitpratap0/stagesync/pkg/errors"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64
	// Output receives the exported spans as JSON
	Output io.Writer
}

// InitTracing installs a global tracer provider exporting to cfg.Output and
// returns its shutdown function.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create trace resource")
	}

	opts := []stdouttrace.Option{}
	if cfg.Output != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Output))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create stdout exporter")
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// TracingObserver turns a run into one transfer span with a child span per
// flush and merge. Retries and reconnects become span events. It serves a
// single run.
type TracingObserver struct {
	tracer  trace.Tracer
	root    trace.Span
	rootCtx context.Context
}

// NewTracingObserver creates an observer using tracer. A nil tracer uses the
// global provider.
func NewTracingObserver(tracer trace.Tracer) *TracingObserver {
	if tracer == nil {
		tracer = otel.Tracer("github.com/ajitpratap0/stagesync")
	}
	return &TracingObserver{tracer: tracer}
}

// Observe implements pipeline.Observer.
func (o *TracingObserver) Observe(ctx context.Context, e pipeline.Event) {
	if o.root == nil {
		o.rootCtx, o.root = o.tracer.Start(ctx, "stagesync.transfer", trace.WithTimestamp(e.Time))
	}

	switch e.Type {
	case pipeline.EventFlushCompleted:
		o.child("stagesync.flush", e,
			attribute.String("stagesync.target", e.Target),
			attribute.Int("stagesync.rows", e.Rows))
	case pipeline.EventMergeCompleted:
		o.child("stagesync.merge", e, attribute.String("stagesync.procedure", e.Target))
	case pipeline.EventRetry:
		o.root.AddEvent("retry", trace.WithTimestamp(e.Time), trace.WithAttributes(
			attribute.String("stagesync.step", e.Step),
			attribute.Int("stagesync.attempt", e.Attempt),
			attribute.String("error", errString(e.Err)),
		))
	case pipeline.EventReconnected:
		o.root.AddEvent("reconnected", trace.WithTimestamp(e.Time))
	case pipeline.EventFatal:
		o.root.SetAttributes(attribute.Int("stagesync.attempts", e.Attempt))
		o.Finish(e.Err)
	case pipeline.EventRunCompleted:
		if e.Stats != nil {
			o.root.SetAttributes(
				attribute.Int64("stagesync.records_read", e.Stats.RecordsRead),
				attribute.Int64("stagesync.rows_flushed", e.Stats.RowsFlushed),
				attribute.Int64("stagesync.merges", e.Stats.Merges),
				attribute.Int64("stagesync.retries", e.Stats.Retries),
			)
		}
		o.Finish(nil)
	}
}

// Finish ends the transfer span if it is still open, recording err.
func (o *TracingObserver) Finish(err error) {
	if o.root == nil || !o.root.IsRecording() {
		return
	}
	if err != nil {
		o.root.RecordError(err)
		o.root.SetStatus(codes.Error, err.Error())
	}
	o.root.End()
}

func (o *TracingObserver) child(name string, e pipeline.Event, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("stagesync.phase", string(e.Phase)))
	_, span := o.tracer.Start(o.rootCtx, name,
		trace.WithTimestamp(e.Time.Add(-e.Duration)),
		trace.WithAttributes(attrs...))
	span.End(trace.WithTimestamp(e.Time))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
