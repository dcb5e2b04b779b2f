package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"tenderdash/internal/infrastructure"
)

// DatasetProvider exposes the current snapshot for readiness checks.
type DatasetProvider interface {
	Current() (*Dataset, error)
}

// ClientCounter reports connected live-update clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	dataset   DatasetProvider
	clients   ClientCounter
	runtime   *infrastructure.RuntimeCollector
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                       `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version"`
	Runtime   *infrastructure.RuntimeStats `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth     `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// HealthOptions holds the HealthService dependencies. Nil members are
// reported as not configured.
type HealthOptions struct {
	Version   string
	BuildTime string
	Dataset   DatasetProvider
	Clients   ClientCounter
	Runtime   *infrastructure.RuntimeCollector
	Logger    *slog.Logger
}

// NewHealthService creates a new health service with injected dependencies
func NewHealthService(opts HealthOptions) *HealthService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	opts.Logger.Info("HealthService initialized",
		slog.String("version", opts.Version),
		slog.String("build_time", opts.BuildTime))

	return &HealthService{
		version:   opts.Version,
		buildTime: opts.BuildTime,
		dataset:   opts.Dataset,
		clients:   opts.Clients,
		runtime:   opts.Runtime,
		startTime: time.Now(),
		logger:    opts.Logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports ready once a dataset snapshot is loaded.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"dataset":   hs.checkDatasetHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
	if hs.runtime != nil {
		stats := hs.runtime.Collect(ctx)
		status.Runtime = &stats
	}
	return status
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
	return result
}

func (hs *HealthService) checkDatasetHealth() ServiceHealth {
	if hs.dataset == nil {
		return ServiceHealth{Status: "not_ready", Message: "dataset service not initialized"}
	}

	ds, err := hs.dataset.Current()
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: "dataset not loaded"}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: ds.Fingerprint,
		Uptime:  time.Since(ds.LoadedAt).Round(time.Second).String(),
	}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: "ready", Message: "live updates disabled"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.clients.ClientCount()),
		Uptime:  time.Since(hs.startTime).Round(time.Second).String(),
	}
}
