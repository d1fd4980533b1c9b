package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagesync/internal/pipeline"
	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
	"github.com/ajitpratap0/stagesync/pkg/dump"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/metrics"
	"github.com/ajitpratap0/stagesync/pkg/observability"
)

type runOptions struct {
	metricsAddr string
	dumpPath    string
	timeout     time.Duration
}

// runTransfer wires connectors, observers and the driver for one run.
func runTransfer(ctx context.Context, cfg config.Config, log *zap.Logger) (*pipeline.Stats, error) {
	log.Info("starting run", zap.String("config", cfg.String()))

	dest, err := registry.CreateDestination(cfg.Destination)
	if err != nil {
		return nil, err
	}

	switch {
	case cfg.Destination.TruncateStagingTable && cfg.Destination.StagingTable == "":
		log.Warn("truncate_staging_table is set without a staging_table, skipping truncate")
	case cfg.Destination.TruncateStagingTable:
		if err := truncateStaging(ctx, dest, cfg.Destination.StagingTable); err != nil {
			return nil, err
		}
		log.Info("staging table truncated", zap.String("table", cfg.Destination.StagingTable))
	}

	observers := []pipeline.Observer{observability.NewLogObserver(log)}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		observers = append(observers, metrics.NewCollector(reg, cfg.Source.Type, cfg.Destination.Type))

		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, addr, reg, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	var tracing *observability.TracingObserver
	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName:    "stagesync",
			ServiceVersion: version,
			SamplingRate:   cfg.Observability.TracingSampleRate,
			Output:         os.Stderr,
		})
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
		tracing = observability.NewTracingObserver(nil)
		observers = append(observers, tracing)
	}

	cursor, err := registry.CreateSource(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(context.Background()); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	driver := pipeline.NewDriver(cfg, dest, log, pipeline.WithObserver(observability.Multi(observers...)))
	stats, err := driver.Run(ctx, cursor)
	if tracing != nil {
		tracing.Finish(err)
	}
	if err != nil {
		writeAbortReport(cfg.Transfer.AbortDump, err, log)
		return stats, err
	}
	return stats, nil
}

func truncateStaging(ctx context.Context, dest core.Destination, table string) error {
	conn, err := dest.Open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if err := conn.Truncate(ctx, table); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWriteFailed, "failed to truncate staging table").
			WithDetail("table", table)
	}
	return nil
}

// writeAbortReport stores the in-flight state of a fatal abort. Other
// failures have nothing pending worth keeping.
func writeAbortReport(cfg config.AbortDumpConfig, err error, log *zap.Logger) {
	var fatal *pipeline.FatalError
	if cfg.Path == "" || !errors.As(err, &fatal) {
		return
	}

	path, werr := dump.Write(cfg.Path, cfg.Compression, dump.Report{
		Time:     time.Now().UTC(),
		Step:     fatal.Step,
		Attempts: fatal.Attempts,
		Cause:    fatal.Cause,
		Record:   fatal.Record,
		Pending:  fatal.Pending,
	})
	if werr != nil {
		log.Error("failed to write abort report", zap.Error(werr))
		return
	}
	log.Error("abort report written", zap.String("path", path), zap.Int("pending_rows", fatal.Pending.Len()))
}
