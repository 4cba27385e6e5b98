package workers

import (
	"context"
	"log/slog"
	"time"

	"room-warden/contract"
	"room-warden/observability"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// TelemetryWorker periodically reports the engine counters and the
// process's own CPU/RSS usage.
type TelemetryWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, monitor: monitor, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping telemetry worker")
			return nil
		case <-ticker.C:
			w.monitor.Report()
		}
	}
}
