// Package routes builds route-creation payloads from optimization results
// and proxies route persistence to the order backend.
package routes

import (
	"errors"

	"github.com/fleetgate/fleetgate/internal/optimization"
)

// Sentinel errors for route operations.
var (
	// ErrRouteNotFound indicates the backend has no route with the given UUID.
	ErrRouteNotFound = errors.New("route not found")
	// ErrBackendUnavailable indicates the order backend could not be reached.
	ErrBackendUnavailable = errors.New("order backend unavailable")
	// ErrMissingOrganization indicates a request without a tenant scope.
	ErrMissingOrganization = errors.New("organization id is required")
)

// CreationInput is what the dashboard submits after the user picks a route
// alternative and the orders it should serve.
type CreationInput struct {
	// RouteData is the optimization result the user chose from.
	RouteData *optimization.Result `json:"routeData"`

	// SelectedOrders are order UUIDs, positionally matched against the chosen
	// route's visit order.
	SelectedOrders []string `json:"selectedOrders"`

	// OrganizationID scopes the route to a tenant. Sent as the
	// organization-id header, never as a body field.
	OrganizationID string `json:"organizationId"`

	RouteName   string `json:"routeName,omitempty"`
	Description string `json:"description,omitempty"`

	// SelectedRouteIndex picks the route: 0 or unset selects the primary
	// route, any value N > 0 selects alternative N-1.
	SelectedRouteIndex int `json:"selectedRouteIndex,omitempty"`
}

// PayloadPoint is one defensively-defaulted point of the outgoing route
// array. The engine's response shape is not contractually field-complete,
// so every field has a fallback before submission.
type PayloadPoint struct {
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	Name            string  `json:"name"`
	TrafficDelay    float64 `json:"traffic_delay"`
	Speed           float64 `json:"speed"`
	CongestionLevel string  `json:"congestion_level"`
}

// OrderedWaypoint couples an order UUID with its 1-based visiting position.
type OrderedWaypoint struct {
	OrderID string `json:"order_id"`
	Order   int    `json:"order"`
}

// CreationPayload is the exact shape the order backend expects for route
// creation.
type CreationPayload struct {
	RouteName        string                 `json:"route_name"`
	Description      string                 `json:"description,omitempty"`
	Origin           *optimization.Location `json:"origin,omitempty"`
	Destination      *optimization.Location `json:"destination,omitempty"`
	Route            []PayloadPoint         `json:"route"`
	OrderedWaypoints []OrderedWaypoint      `json:"ordered_waypoints"`
	Geometry         string                 `json:"geometry,omitempty"`
	TrafficCondition string                 `json:"traffic_condition,omitempty"`
	TrafficDelay     int                    `json:"traffic_delay"`
	Status           string                 `json:"status"`
	Orders           []string               `json:"orders"`
}

// SavedRoute is a persisted route as returned by the order backend.
type SavedRoute struct {
	UUID             string                  `json:"uuid"`
	RouteName        string                  `json:"route_name"`
	Description      string                  `json:"description,omitempty"`
	Origin           *optimization.Location  `json:"origin,omitempty"`
	Destination      *optimization.Location  `json:"destination,omitempty"`
	Waypoints        []optimization.Location `json:"waypoints,omitempty"`
	Route            []PayloadPoint          `json:"route"`
	OrderedWaypoints []OrderedWaypoint       `json:"ordered_waypoints,omitempty"`
	Geometry         string                  `json:"geometry,omitempty"`
	TrafficCondition string                  `json:"traffic_condition,omitempty"`
	TrafficDelay     int                     `json:"traffic_delay"`
	Status           string                  `json:"status"`
	Orders           []map[string]any        `json:"orders,omitempty"`
}

// CreationResult is what the gateway returns after a successful creation.
type CreationResult struct {
	RouteID string           `json:"route_id"`
	Payload *CreationPayload `json:"payload"`
}
