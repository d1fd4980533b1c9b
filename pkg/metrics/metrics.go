// Package metrics exports transfer engine events as Prometheus metrics.
//
// A Collector is a pipeline.Observer. Register it on a prometheus.Registerer
// and pass it to the driver; Handler serves the registry in the exposition
// format.
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector(reg, "mongodb", "postgresql")
//	driver := pipeline.NewDriver(cfg, dest, log, pipeline.WithObserver(collector))
//	go metrics.Serve(ctx, ":9102", reg, log)
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagesync/internal/pipeline"
)

const namespace = "stagesync"

// Collector holds the metric vectors of one run.
type Collector struct {
	recordsRead   prometheus.Counter
	pages         prometheus.Counter
	buffered      prometheus.Gauge
	flushes       *prometheus.CounterVec
	rowsFlushed   *prometheus.CounterVec
	flushLatency  *prometheus.HistogramVec
	merges        *prometheus.CounterVec
	mergeLatency  *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	reconnects    prometheus.Counter
	fatal         prometheus.Counter
	runDuration   prometheus.Gauge
	runThroughput prometheus.Gauge
}

// NewCollector registers the engine metrics on reg. source and destination
// are attached as constant labels.
func NewCollector(reg prometheus.Registerer, source, destination string) *Collector {
	f := promauto.With(reg)
	labels := prometheus.Labels{"source": source, "destination": destination}
	latencyBuckets := prometheus.ExponentialBuckets(0.005, 2, 14)

	return &Collector{
		recordsRead: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "records_read_total",
			Help:        "Records received from the source cursor.",
			ConstLabels: labels,
		}),
		pages: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pages_fetched_total",
			Help:        "Pages fetched from the source cursor.",
			ConstLabels: labels,
		}),
		buffered: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "buffered_rows",
			Help:        "Rows held in the staging buffer.",
			ConstLabels: labels,
		}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "flushes_total",
			Help:        "Successful staging flushes.",
			ConstLabels: labels,
		}, []string{"phase"}),
		rowsFlushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_flushed_total",
			Help:        "Rows written to the staging area, duplicates from replayed flushes included.",
			ConstLabels: labels,
		}, []string{"phase"}),
		flushLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "flush_duration_seconds",
			Help:        "Duration of successful staging flushes.",
			Buckets:     latencyBuckets,
			ConstLabels: labels,
		}, []string{"phase"}),
		merges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "merges_total",
			Help:        "Successful merge procedure calls.",
			ConstLabels: labels,
		}, []string{"phase"}),
		mergeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "merge_duration_seconds",
			Help:        "Duration of successful merge procedure calls.",
			Buckets:     latencyBuckets,
			ConstLabels: labels,
		}, []string{"phase"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "retries_total",
			Help:        "Failed destination steps that were retried.",
			ConstLabels: labels,
		}, []string{"step"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reconnects_total",
			Help:        "Destination connections reopened after a failure.",
			ConstLabels: labels,
		}),
		fatal: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "fatal_aborts_total",
			Help:        "Runs aborted after exhausting the retry budget.",
			ConstLabels: labels,
		}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Duration of the last completed run.",
			ConstLabels: labels,
		}),
		runThroughput: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_throughput_records_per_second",
			Help:        "Records read per second over the last completed run.",
			ConstLabels: labels,
		}),
	}
}

// Observe implements pipeline.Observer.
func (c *Collector) Observe(_ context.Context, e pipeline.Event) {
	switch e.Type {
	case pipeline.EventPageFetched:
		c.pages.Inc()
		c.recordsRead.Add(float64(e.PageRecords))
	case pipeline.EventRecordBuffered:
		c.buffered.Set(float64(e.Buffered))
	case pipeline.EventFlushCompleted:
		phase := string(e.Phase)
		c.flushes.WithLabelValues(phase).Inc()
		c.rowsFlushed.WithLabelValues(phase).Add(float64(e.Rows))
		c.flushLatency.WithLabelValues(phase).Observe(e.Duration.Seconds())
		c.buffered.Set(0)
	case pipeline.EventMergeCompleted:
		phase := string(e.Phase)
		c.merges.WithLabelValues(phase).Inc()
		c.mergeLatency.WithLabelValues(phase).Observe(e.Duration.Seconds())
	case pipeline.EventRetry:
		c.retries.WithLabelValues(e.Step).Inc()
	case pipeline.EventReconnected:
		c.reconnects.Inc()
	case pipeline.EventFatal:
		c.fatal.Inc()
	case pipeline.EventRunCompleted:
		c.runDuration.Set(e.Duration.Seconds())
		if e.Stats != nil {
			c.runThroughput.Set(e.Stats.Throughput())
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
