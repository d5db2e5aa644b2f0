package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"integralq/pkg/contracts"
)

// Pinger checks a dependency, e.g. the database connection.
type Pinger func(ctx context.Context) error

// HubStatus is what the health check needs from the websocket hub.
type HubStatus interface {
	Running() bool
	ClientCount() int
}

// HealthDeps are optional probes. Nil members are reported as disabled.
type HealthDeps struct {
	Database    Pinger
	Hub         HubStatus
	Sessions    func() int
	LLMProvider string
}

// HealthService provides health check functionality
type HealthService struct {
	deps      HealthDeps
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Service health states.
const (
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusDisabled = "disabled"
)

// NewHealthService creates a new health service.
func NewHealthService(deps HealthDeps, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		deps:      deps,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns "ok" when every enabled dependency is ready and
// "degraded" otherwise, with per-service detail.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"database":  hs.checkDatabase(ctx),
			"websocket": hs.checkWebSocket(),
			"sessions":  hs.checkSessions(),
			"narrative": hs.checkNarrative(),
		},
		Runtime: map[string]interface{}{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
	}
	for name, s := range status.Services {
		if s.Status == StatusNotReady {
			status.Status = "degraded"
			hs.logger.WarnContext(ctx, "health check: dependency not ready",
				slog.String("service", name),
				slog.String("message", s.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
	}
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func (hs *HealthService) checkDatabase(ctx context.Context) ServiceHealth {
	if hs.deps.Database == nil {
		return ServiceHealth{Status: StatusDisabled}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := hs.deps.Database(ctx); err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return ServiceHealth{Status: StatusReady}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.deps.Hub == nil {
		return ServiceHealth{Status: StatusDisabled}
	}
	if !hs.deps.Hub.Running() {
		return ServiceHealth{Status: StatusNotReady, Message: "hub is not running"}
	}
	return ServiceHealth{Status: StatusReady, Message: fmt.Sprintf("%d clients", hs.deps.Hub.ClientCount())}
}

func (hs *HealthService) checkSessions() ServiceHealth {
	if hs.deps.Sessions == nil {
		return ServiceHealth{Status: StatusDisabled}
	}
	return ServiceHealth{Status: StatusReady, Message: fmt.Sprintf("%d active", hs.deps.Sessions())}
}

func (hs *HealthService) checkNarrative() ServiceHealth {
	if hs.deps.LLMProvider == "" || hs.deps.LLMProvider == "none" {
		return ServiceHealth{Status: StatusDisabled, Message: "template summaries only"}
	}
	return ServiceHealth{Status: StatusReady, Message: hs.deps.LLMProvider}
}
