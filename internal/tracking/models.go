// Package tracking maintains a live view of driver positions. A single
// gateway-side WebSocket connection to the tracking service feeds an
// in-memory snapshot per driver, which the REST surface serves to every
// dashboard session; transmissions are also published to Pub/Sub for
// durable persistence by the worker.
package tracking

import (
	"time"
)

// Event names on the tracking WebSocket. The client emits the first group
// and receives the second.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoute    = "join_route"
	EventLeaveRoute   = "leave_route"

	EventAuthenticated = "authenticated"
	EventAuthError     = "auth_error"
	EventJoinedRoute   = "joined_route"
	EventLeftRoute     = "left_route"
	EventTransmission  = "driver_transmission"
	EventStatusUpdate  = "driver_status_update"
)

// Driver statuses as reported by the tracking service.
const (
	StatusActive   = "ACTIVE"
	StatusIdle     = "IDLE"
	StatusInactive = "INACTIVE"
	StatusOffline  = "OFFLINE"
)

// OfflineAfter is the silence window after which a driver is presented as
// OFFLINE regardless of its last reported status.
const OfflineAfter = 70 * time.Minute

// Position is a driver's reported location.
type Position struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Speed   float64 `json:"speed,omitempty"`
	Heading float64 `json:"heading,omitempty"`
}

// Transmission is one driver position report from the tracking service.
// Field names follow the tracking protocol (camelCase on the wire).
type Transmission struct {
	DriverID       string    `json:"driverId"`
	RouteID        string    `json:"routeId,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Location       Position  `json:"location"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// Envelope is the wire message on the tracking socket. The authenticate
// event carries the connecting identity; join_route and leave_route carry
// the route.
type Envelope struct {
	Event          string `json:"event"`
	UserID         string `json:"userId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	Route          string `json:"routeId,omitempty"`
	Error          string `json:"error,omitempty"`

	Transmission *Transmission `json:"data,omitempty"`
}

// DriverView is a transmission annotated with the presented status, which
// may differ from the reported one when the driver has gone silent.
type DriverView struct {
	Transmission

	// RealStatus is Status, or OFFLINE when the last report is older than
	// OfflineAfter.
	RealStatus string `json:"real_status"`
}
