package observability

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Reporter periodically logs a summary of the metrics and memory usage.
// It runs under the supervisor like any other worker.
type Reporter struct {
	log      *slog.Logger
	metrics  *Metrics
	interval time.Duration
	last     Stats
}

func NewReporter(log *slog.Logger, metrics *Metrics, interval time.Duration) *Reporter {
	return &Reporter{log: log, metrics: metrics, interval: interval}
}

func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Context done, stopping metrics reporter")
			return nil
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	current := r.metrics.Snapshot()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.log.Info("Gateway stats",
		"connections", current.ActiveConnections,
		"messages_sent", current.MessagesSent-r.last.MessagesSent,
		"pushes_dropped", current.PushesDropped-r.last.PushesDropped,
		"event_errors", current.EventErrors-r.last.EventErrors,
		"alloc_mem_mb", mem.Alloc/1024/1024,
		"num_gc", mem.NumGC,
	)
	r.last = current
}
