// Package handler provides HTTP handlers for the FleetGate API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/fleetgate/fleetgate/internal/api/models"
	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/provider/resilience"
	"github.com/fleetgate/fleetgate/internal/tracking"
)

// Pinger abstracts the database pool for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TrackingStatus reports the tracking connection's state.
type TrackingStatus interface {
	State() tracking.State
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	db        Pinger
	tracking  TrackingStatus
}

// OpsConfig holds dependencies for the ops handler. Everything except
// version info is optional; absent subsystems are simply not reported.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	DB        Pinger
	Tracking  TrackingStatus
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		db:        cfg.DB,
		tracking:  cfg.Tracking,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Ready means
// the process can serve traffic; the database is checked when configured.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	httpStatus := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = models.HealthStatusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	response.JSON(w, r, httpStatus, models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - upstream and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	overall := models.HealthStatusOK

	var upstreams []models.UpstreamStatus
	if h.registry != nil {
		for _, uh := range h.registry.AllHealth() {
			entry := models.UpstreamStatus{
				Name:         uh.Name,
				Status:       models.HealthStatusOK,
				CircuitState: uh.CircuitState.String(),
			}
			switch {
			case uh.IsDegraded():
				entry.Status = models.HealthStatusDegraded
				if overall == models.HealthStatusOK {
					overall = models.HealthStatusDegraded
				}
			case !uh.IsHealthy():
				entry.Status = models.HealthStatusFail
				overall = models.HealthStatusDegraded
			}
			if uh.LastSuccessAt != nil {
				ts := models.Timestamp(*uh.LastSuccessAt)
				entry.LastSuccessAt = &ts
			}
			if uh.LastFailureAt != nil {
				ts := models.Timestamp(*uh.LastFailureAt)
				entry.LastFailureAt = &ts
			}
			if uh.LastError != "" {
				msg := uh.LastError
				entry.Message = &msg
			}
			upstreams = append(upstreams, entry)
		}
		sort.Slice(upstreams, func(i, j int) bool {
			return upstreams[i].Name < upstreams[j].Name
		})
	}

	var subsystems []models.SubsystemStatus
	if h.tracking != nil {
		state := h.tracking.State()
		entry := models.SubsystemStatus{Name: "tracking-feed", Status: models.HealthStatusOK}
		if state != tracking.StateAuthenticated {
			detail := string(state)
			entry.Status = models.HealthStatusDegraded
			entry.Detail = &detail
			if overall == models.HealthStatusOK {
				overall = models.HealthStatusDegraded
			}
		}
		subsystems = append(subsystems, entry)
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
		Upstreams:  upstreams,
	})
}
