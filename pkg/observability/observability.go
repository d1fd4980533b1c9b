// Package observability holds the diagnostics observers of the transfer
// engine: progress logging, OpenTelemetry spans and fan-out to several
// observers at once.
package observability

import (
	"context"

	"github.com/ajitpratap0/stagesync/internal/pipeline"
)

type multi []pipeline.Observer

func (m multi) Observe(ctx context.Context, e pipeline.Event) {
	for _, o := range m {
		o.Observe(ctx, e)
	}
}

// Multi delivers every event to each non-nil observer in order.
func Multi(observers ...pipeline.Observer) pipeline.Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
