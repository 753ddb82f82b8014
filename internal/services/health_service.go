package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"opsunify/internal/config"
	"opsunify/internal/infrastructure"
	ws "opsunify/internal/websocket"
)

// HealthService answers the liveness, readiness and stats endpoints.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	unify     *UnifyService
	hub       *ws.Hub
	collector *infrastructure.SystemMetricsCollector
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TotalFiles       int     `json:"total_files"`
	TotalSizeBytes   int64   `json:"total_size_bytes"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveRuns       int     `json:"active_runs"`
	StoredReports    int     `json:"stored_reports"`
	Goroutines       int     `json:"goroutines,omitempty"`
	MemoryUsageBytes int64   `json:"memory_usage_bytes,omitempty"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a health service with injected dependencies.
func NewHealthService(version string, paths *config.Paths, unify *UnifyService, hub *ws.Hub, logger *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, "", "", paths, unify, hub, logger)
}

// NewHealthServiceWithBuildInfo creates a health service that also reports
// build metadata when it is available.
func NewHealthServiceWithBuildInfo(version, buildTime, buildID string, paths *config.Paths, unify *UnifyService, hub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		paths:     paths,
		unify:     unify,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// SetSystemCollector wires the runtime metrics collector so the stats
// endpoint reports live goroutine and memory numbers alongside the
// Prometheus gauges.
func (hs *HealthService) SetSystemCollector(collector *infrastructure.SystemMetricsCollector) {
	hs.collector = collector
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("version", hs.version),
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether every dependency of the unify surface is
// able to serve requests.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["pipeline"] = hs.checkPipelineHealth()
	status.Services["storage"] = hs.checkStorageHealth()

	allReady := true
	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			allReady = false
			break
		}
	}

	if !allReady {
		status.Status = "not_ready"
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	if hs.paths != nil {
		filepath.Walk(hs.paths.DataDir, func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				stats.TotalFiles++
				stats.TotalSizeBytes += info.Size()
			}
			return nil
		})
	}

	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	if hs.unify != nil {
		stats.ActiveRuns = hs.unify.ActiveRuns()
		stats.StoredReports = hs.unify.StoredReports()
	}
	if hs.collector != nil {
		sys := hs.collector.GetCurrentStats(ctx)
		stats.Goroutines = int(sys.GoRoutines)
		stats.MemoryUsageBytes = sys.MemoryUsage
	}

	return stats, nil
}

// checkWebSocketHealth checks WebSocket hub health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "WebSocket service is healthy",
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkPipelineHealth checks unification pipeline health
func (hs *HealthService) checkPipelineHealth() ServiceHealth {
	if hs.unify == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "unify service not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "pipeline service is healthy",
	}
}

// checkStorageHealth checks that the data directories exist and are writable
func (hs *HealthService) checkStorageHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "paths not configured",
		}
	}

	if _, err := os.Stat(hs.paths.DataDir); os.IsNotExist(err) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data directory not found: %s", hs.paths.DataDir),
		}
	}

	if err := os.MkdirAll(hs.paths.CacheDir, 0755); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot write to data directory: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "storage is healthy",
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	detail := map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}

	if hs.collector != nil {
		detail["system"] = hs.collector.GetCurrentStats(ctx).FormatStats()
	}

	return detail
}
