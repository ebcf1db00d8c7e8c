package workers

import (
	"context"
	"log/slog"
	"os"
	"secure-chat/contract"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is one telemetry sample.
type Stats struct {
	Sessions   int
	Rooms      int
	RSSBytes   uint64
	CPUPercent float64
}

// TelemetryWorker logs the size of the relay and the footprint of the process
// every metricInterval.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	registry       contract.ISessionRegistry
	directory      contract.IRoomDirectory
	process        *process.Process
}

func NewTelemetryWorker(log *slog.Logger,
	metricInterval time.Duration,
	registry contract.ISessionRegistry,
	directory contract.IRoomDirectory) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		registry:       registry,
		directory:      directory,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	w.process = p

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			stats := w.Collect()
			w.log.Info("Telemetry",
				"sessions", stats.Sessions,
				"rooms", stats.Rooms,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent)
		}
	}
}

// Collect takes a sample now. Process figures stay zero when they cannot be
// read.
func (w *TelemetryWorker) Collect() Stats {
	stats := Stats{
		Sessions: w.registry.Count(),
		Rooms:    len(w.directory.Rooms()),
	}
	if w.process == nil {
		return stats
	}
	if mem, err := w.process.MemoryInfo(); err == nil {
		stats.RSSBytes = mem.RSS
	} else {
		w.log.Debug("Failed to read memory info", "error", err)
	}
	if cpu, err := w.process.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	} else {
		w.log.Debug("Failed to read CPU usage", "error", err)
	}
	return stats
}
