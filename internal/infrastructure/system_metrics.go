package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a point-in-time view of the Go runtime.
type RuntimeStats struct {
	Goroutines    int64   `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	SysMB         float64 `json:"sys_mb"`
	GCCount       uint32  `json:"gc_count"`
	CPUCount      int     `json:"cpu_count"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
}

// RuntimeCollector reports runtime stats on demand and as periodic gauges.
type RuntimeCollector struct {
	startTime time.Time

	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	uptime     metric.Float64Gauge

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRuntimeCollector creates the runtime gauges on meter.
func NewRuntimeCollector(meter metric.Meter) (*RuntimeCollector, error) {
	goroutines, err := meter.Int64Gauge("system_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return nil, fmt.Errorf("goroutines gauge: %w", err)
	}
	heapAlloc, err := meter.Int64Gauge("system_memory_usage_bytes",
		metric.WithDescription("Heap bytes allocated and in use"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("memory gauge: %w", err)
	}
	uptime, err := meter.Float64Gauge("system_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("uptime gauge: %w", err)
	}

	return &RuntimeCollector{
		startTime:  time.Now(),
		goroutines: goroutines,
		heapAlloc:  heapAlloc,
		uptime:     uptime,
		stopCh:     make(chan struct{}),
	}, nil
}

// Collect reads the runtime and records the gauges.
func (c *RuntimeCollector) Collect(ctx context.Context) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		Goroutines:    int64(runtime.NumGoroutine()),
		HeapAllocMB:   float64(mem.HeapAlloc) / (1 << 20),
		SysMB:         float64(mem.Sys) / (1 << 20),
		GCCount:       mem.NumGC,
		CPUCount:      runtime.NumCPU(),
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		GoVersion:     runtime.Version(),
	}

	c.goroutines.Record(ctx, stats.Goroutines)
	c.heapAlloc.Record(ctx, int64(mem.HeapAlloc))
	c.uptime.Record(ctx, stats.UptimeSeconds)

	return stats
}

// Start collects every interval until ctx is done or Stop is called.
func (c *RuntimeCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends a running Start loop.
func (c *RuntimeCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
