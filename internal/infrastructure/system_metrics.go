package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics exposes Go runtime resource gauges through OpenTelemetry.
type SystemMetrics struct {
	meter metric.Meter

	goRoutines      metric.Int64Gauge
	memoryUsage     metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcPause         metric.Float64Histogram
	processUptime   metric.Float64Gauge
}

// NewSystemMetrics creates a new system metrics instrument set
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	memoryUsage, err := meter.Int64Gauge(
		"system_memory_usage_bytes",
		metric.WithDescription("Memory usage in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memoryAllocated, err := meter.Int64Gauge(
		"system_memory_allocated_bytes",
		metric.WithDescription("Memory allocated by Go runtime in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memorySystem, err := meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcPause, err := meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	processUptime, err := meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		meter:           meter,
		goRoutines:      goRoutines,
		memoryUsage:     memoryUsage,
		memoryAllocated: memoryAllocated,
		memorySystem:    memorySystem,
		gcPause:         gcPause,
		processUptime:   processUptime,
	}, nil
}

// SystemStats holds current system statistics
type SystemStats struct {
	GoRoutines      int64
	MemoryUsage     int64
	MemoryAllocated int64
	MemorySystem    int64
	GCCount         uint32
	LastGCPause     time.Duration
	CPUCount        int
	ProcessUptime   time.Duration
	Timestamp       time.Time
}

// Collect collects and records system metrics
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) *SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &SystemStats{
		GoRoutines:      int64(runtime.NumGoroutine()),
		MemoryUsage:     int64(memStats.Alloc),
		MemoryAllocated: int64(memStats.TotalAlloc),
		MemorySystem:    int64(memStats.Sys),
		GCCount:         memStats.NumGC,
		LastGCPause:     time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256]),
		CPUCount:        runtime.NumCPU(),
		ProcessUptime:   time.Since(startTime),
		Timestamp:       time.Now(),
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.memoryUsage.Record(ctx, stats.MemoryUsage)
	sm.memoryAllocated.Record(ctx, stats.MemoryAllocated)
	sm.memorySystem.Record(ctx, stats.MemorySystem)
	sm.processUptime.Record(ctx, stats.ProcessUptime.Seconds())

	if stats.LastGCPause > 0 {
		sm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}

	return stats
}

// FormatStats returns a human-readable representation of system stats
func (stats *SystemStats) FormatStats() map[string]interface{} {
	return map[string]interface{}{
		"runtime": map[string]interface{}{
			"goroutines":       stats.GoRoutines,
			"memory_usage_mb":  stats.MemoryUsage / 1024 / 1024,
			"memory_alloc_mb":  stats.MemoryAllocated / 1024 / 1024,
			"memory_system_mb": stats.MemorySystem / 1024 / 1024,
			"gc_count":         stats.GCCount,
			"last_gc_pause_ms": stats.LastGCPause.Milliseconds(),
		},
		"system": map[string]interface{}{
			"cpu_count":      stats.CPUCount,
			"uptime_seconds": stats.ProcessUptime.Seconds(),
		},
		"timestamp": stats.Timestamp.Format(time.RFC3339),
	}
}

// SystemMetricsCollector manages periodic system metrics collection
type SystemMetricsCollector struct {
	metrics   *SystemMetrics
	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
}

// NewSystemMetricsCollector creates a new system metrics collector
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	metrics, err := NewSystemMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	return &SystemMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins periodic metrics collection and blocks until stopped.
func (smc *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	smc.metrics.Collect(ctx, smc.startTime)

	for {
		select {
		case <-ticker.C:
			smc.metrics.Collect(ctx, smc.startTime)
		case <-smc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collection
func (smc *SystemMetricsCollector) Stop() {
	close(smc.stopCh)
}

// GetCurrentStats returns the current system statistics
func (smc *SystemMetricsCollector) GetCurrentStats(ctx context.Context) *SystemStats {
	return smc.metrics.Collect(ctx, smc.startTime)
}
