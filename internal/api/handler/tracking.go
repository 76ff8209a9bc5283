package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgate/fleetgate/internal/api/models"
	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/tracking"
)

// TrackingConnection is the subset of the tracking client the handler
// drives: it nudges the connection up and manages route subscriptions.
type TrackingConnection interface {
	Connect(ctx context.Context) error
	JoinRoute(routeID string)
	LeaveRoute(routeID string)
}

// SnapshotReader reads persisted driver positions.
type SnapshotReader interface {
	ListByOrganization(ctx context.Context, organizationID string) ([]tracking.Snapshot, error)
}

// TrackingHandler serves the live driver feed over REST.
type TrackingHandler struct {
	feed       *tracking.Feed
	connection TrackingConnection
	snapshots  SnapshotReader
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(feed *tracking.Feed, connection TrackingConnection, snapshots SnapshotReader) *TrackingHandler {
	return &TrackingHandler{feed: feed, connection: connection, snapshots: snapshots}
}

// ListDrivers handles GET /v1/tracking/drivers - the live view. Drivers
// from other tenants are filtered out; transmissions without a tenant tag
// are visible to nobody but the operator feed itself.
func (h *TrackingHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	h.ensureConnected(r.Context())

	organizationID := GetOrganizationID(r.Context())
	views := h.feed.Drivers()
	filtered := make([]tracking.DriverView, 0, len(views))
	for _, v := range views {
		if v.OrganizationID == organizationID {
			filtered = append(filtered, v)
		}
	}
	response.JSON(w, r, http.StatusOK, filtered)
}

// GetDriver handles GET /v1/tracking/drivers/{driverId}.
func (h *TrackingHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	h.ensureConnected(r.Context())

	view, ok := h.feed.Driver(chi.URLParam(r, "driverId"))
	if !ok || view.OrganizationID != GetOrganizationID(r.Context()) {
		response.NotFound(w, r, "no position known for this driver")
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

// JoinRoute handles POST /v1/tracking/routes/{routeId}/join.
func (h *TrackingHandler) JoinRoute(w http.ResponseWriter, r *http.Request) {
	h.ensureConnected(r.Context())
	h.connection.JoinRoute(chi.URLParam(r, "routeId"))
	response.JSON(w, r, http.StatusAccepted, models.OK(nil))
}

// LeaveRoute handles POST /v1/tracking/routes/{routeId}/leave.
func (h *TrackingHandler) LeaveRoute(w http.ResponseWriter, r *http.Request) {
	h.connection.LeaveRoute(chi.URLParam(r, "routeId"))
	response.JSON(w, r, http.StatusAccepted, models.OK(nil))
}

// ListSnapshots handles GET /v1/tracking/snapshots - last persisted
// positions, useful when the live feed has just restarted.
func (h *TrackingHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		response.JSON(w, r, http.StatusOK, []tracking.Snapshot{})
		return
	}

	snapshots, err := h.snapshots.ListByOrganization(r.Context(), GetOrganizationID(r.Context()))
	if err != nil {
		if errors.Is(err, tracking.ErrSnapshotNotFound) {
			response.JSON(w, r, http.StatusOK, []tracking.Snapshot{})
			return
		}
		response.InternalError(w, r, "loading driver snapshots failed")
		return
	}
	if snapshots == nil {
		snapshots = []tracking.Snapshot{}
	}
	response.JSON(w, r, http.StatusOK, snapshots)
}

// ensureConnected opportunistically (re)establishes the tracking session.
// Connect is a no-op when a session is already live, and a failure here is
// not fatal: the feed still serves whatever it last saw.
func (h *TrackingHandler) ensureConnected(ctx context.Context) {
	if h.connection == nil {
		return
	}
	_ = h.connection.Connect(ctx)
}
