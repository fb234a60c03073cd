package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"tandem/domain"
	"tandem/observability"
)

// RoomCounter is satisfied by every room directory.
type RoomCounter interface {
	Party() domain.Party
	Stats() (rooms int, subscribers int)
}

// ReporterWorker periodically logs and exports how many rooms and connections are live.
type ReporterWorker struct {
	counters []RoomCounter
	interval time.Duration
	metrics  *observability.Metrics
	log      *slog.Logger
}

func NewReporterWorker(interval time.Duration, metrics *observability.Metrics, log *slog.Logger, counters ...RoomCounter) *ReporterWorker {
	return &ReporterWorker{
		counters: counters,
		interval: interval,
		metrics:  metrics,
		log:      log,
	}
}

// Run starts the reporting loop until context cancellation
func (w *ReporterWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Warn("Process stats unavailable", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.report(startTime, self)
			return nil
		case <-ticker.C:
			w.report(startTime, self)
		}
	}
}

func (w *ReporterWorker) report(startTime time.Time, self *process.Process) {
	stats := w.Collect()
	w.metrics.Observe(stats)
	attrs := []any{
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"rooms", stats.Rooms,
		"subscribers", stats.Subscribers,
	}
	if rss, cpu, err := selfStats(self); err == nil {
		attrs = append(attrs, "rss_mb", rss/1024/1024, "cpu_percent", cpu)
	}
	w.log.Info("📊 Room stats", attrs...)
}

func selfStats(p *process.Process) (uint64, float64, error) {
	if p == nil {
		return 0, 0, os.ErrInvalid
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}

// Collect aggregates the current stats of every directory.
func (w *ReporterWorker) Collect() observability.RoomStats {
	stats := observability.RoomStats{Rooms: make(map[string]int, len(w.counters))}
	for _, c := range w.counters {
		rooms, subscribers := c.Stats()
		stats.Rooms[string(c.Party())] += rooms
		stats.Subscribers += subscribers
	}
	return stats
}
