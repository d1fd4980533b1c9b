package observability

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagesync/internal/pipeline"
)

// LogObserver writes the progress lines of a run: the buffer size after each
// page and before the final flush, with the resident memory of the process.
type LogObserver struct {
	logger *zap.Logger
	proc   *process.Process
}

// NewLogObserver creates a progress logger. Memory figures are omitted when
// the process cannot be inspected.
func NewLogObserver(log *zap.Logger) *LogObserver {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &LogObserver{
		logger: log.With(zap.String("component", "progress")),
		proc:   proc,
	}
}

// Observe implements pipeline.Observer.
func (o *LogObserver) Observe(_ context.Context, e pipeline.Event) {
	switch {
	case e.Type == pipeline.EventPageFetched:
		o.logger.Info(progressMessage(e),
			append(o.memoryFields(), zap.Int("page_records", e.PageRecords))...)
	case e.Type == pipeline.EventRecordBuffered && e.Phase == pipeline.PhaseFinalizing:
		o.logger.Info(progressMessage(e), o.memoryFields()...)
	case e.Type == pipeline.EventMergeCompleted:
		o.logger.Debug("merged", zap.String("phase", string(e.Phase)), zap.Duration("duration", e.Duration))
	}
}

func progressMessage(e pipeline.Event) string {
	return fmt.Sprintf("buffered %d (%s)", e.Buffered, e.Phase)
}

func (o *LogObserver) memoryFields() []zap.Field {
	if o.proc == nil {
		return nil
	}
	mem, err := o.proc.MemoryInfo()
	if err != nil {
		return nil
	}
	return []zap.Field{zap.Uint64("rss_bytes", mem.RSS)}
}
