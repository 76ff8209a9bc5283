// Package optimization orchestrates traffic-aware route optimization against
// the external routing engine. It validates and normalizes requests before
// anything is forwarded: the engine fails unpredictably on malformed
// coordinates, so partial or invalid requests are never sent.
package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fleetgate/fleetgate/internal/geo"
)

// Sentinel errors for optimization operations.
var (
	// ErrEngineUnavailable indicates the routing engine could not be reached
	// (connection refused, DNS failure, circuit breaker open).
	ErrEngineUnavailable = errors.New("routing engine unavailable")
	// ErrNoRouteFound indicates the engine found no route between the points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrInvalidCoordinates indicates coordinates rejected before forwarding.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider is the interface to a route optimization engine.
type Provider interface {
	// OptimizeTraffic computes a traffic-aware route through ordered waypoints.
	OptimizeTraffic(ctx context.Context, req TrafficRequest) (*Result, error)
	// OptimizeMultiDelivery computes an optimized visiting order for a set of
	// delivery orders between a driver's start and end locations.
	OptimizeMultiDelivery(ctx context.Context, req MultiDeliveryRequest) (*Result, error)
	// RouteSimple computes a two-point route.
	RouteSimple(ctx context.Context, req SimpleRequest) (*SimpleResult, error)
	// Name returns the provider identifier for logging and health reporting.
	Name() string
}

// Location is a named geographic point (pickup, delivery, waypoint).
//
// Latitude and longitude arrive from the dashboard loosely typed: numbers,
// numeric strings, null, or absent entirely. Decoding keeps the raw inputs
// so validation can distinguish a missing component from a legitimate zero;
// the embedded Coordinate is populated only after geo.ValidateAndClean
// accepts the pair.
type Location struct {
	geo.Coordinate
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`

	rawLat  any
	rawLng  any
	decoded bool
}

// UnmarshalJSON captures lat/lng without forcing them to float64. A missing
// or null component must be rejected by validation, not read as 0.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat     any    `json:"lat"`
		Lng     any    `json:"lng"`
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.rawLat, l.rawLng = raw.Lat, raw.Lng
	l.decoded = true
	l.Name, l.Address = raw.Name, raw.Address

	// Valid pairs populate the Coordinate immediately so decoded locations
	// round-trip through marshaling; anything else leaves it zero and the
	// raw inputs carry the rejection detail to validation.
	l.Coordinate = geo.Coordinate{}
	if c, err := geo.ValidateAndClean(raw.Lat, raw.Lng); err == nil {
		l.Coordinate = c
	}
	return nil
}

// latLng returns the values validation should see: the raw wire inputs for
// a decoded Location, the Coordinate fields for one constructed in code.
func (l *Location) latLng() (any, any) {
	if l.decoded {
		return l.rawLat, l.rawLng
	}
	return l.Lat, l.Lng
}

// DeliveryOrder is an order fetched from the order backend, referenced by
// UUID when building routes. Read-only in this service.
type DeliveryOrder struct {
	ID                    string   `json:"id"`
	OrderNumber           string   `json:"order_number"`
	Origin                Location `json:"origin"`
	Destination           Location `json:"destination"`
	Description           string   `json:"description,omitempty"`
	TotalAmount           float64  `json:"total_amount,omitempty"`
	Priority              string   `json:"priority,omitempty"`
	EstimatedPickupTime   string   `json:"estimated_pickup_time,omitempty"`
	EstimatedDeliveryTime string   `json:"estimated_delivery_time,omitempty"`
}

// TrafficRequest asks for a traffic-aware route through ordered waypoints.
type TrafficRequest struct {
	Origin         *Location  `json:"origin"`
	Destination    *Location  `json:"destination"`
	Waypoints      []Location `json:"waypoints"`
	Alternatives   *bool      `json:"alternatives,omitempty"`
	QueueMode      string     `json:"queue_mode,omitempty"`
	IncludeTraffic *bool      `json:"include_traffic,omitempty"`
	DepartureTime  string     `json:"departure_time,omitempty"`
	TravelMode     string     `json:"travel_mode,omitempty"`
	RouteType      string     `json:"route_type,omitempty"`
}

// MultiDeliveryRequest asks for an optimized visiting order over delivery orders.
type MultiDeliveryRequest struct {
	DriverStartLocation *Location       `json:"driver_start_location"`
	DriverEndLocation   *Location       `json:"driver_end_location"`
	DeliveryOrders      []DeliveryOrder `json:"delivery_orders"`
	IncludeTraffic      *bool           `json:"include_traffic,omitempty"`
	DepartureTime       string          `json:"departure_time,omitempty"`
	TravelMode          string          `json:"travel_mode,omitempty"`
	RouteType           string          `json:"route_type,omitempty"`
	MaxOrdersPerTrip    int             `json:"max_orders_per_trip,omitempty"`
	Alternatives        *bool           `json:"alternatives,omitempty"`
}

// SimpleRequest asks for a plain two-point route.
type SimpleRequest struct {
	Pickup   *Location `json:"pickup"`
	Delivery *Location `json:"delivery"`
}

// Defaults applied to optional request fields after validation passes.
const (
	DefaultDepartureTime    = "now"
	DefaultTravelMode       = "car"
	DefaultRouteType        = "fastest"
	DefaultMaxOrdersPerTrip = 10
)

// RoutePoint is one sample along a route polyline. Point order is
// engine-determined and must be preserved end to end.
type RoutePoint struct {
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	Name            string  `json:"name,omitempty"`
	TrafficDelay    float64 `json:"traffic_delay"`
	Speed           float64 `json:"speed"`
	CongestionLevel string  `json:"congestion_level"`
	WaypointIndex   *int    `json:"waypoint_index,omitempty"`
}

// VisitStop is one entry of the engine-determined visiting sequence.
type VisitStop struct {
	WaypointIndex int     `json:"waypoint_index"`
	Name          string  `json:"name,omitempty"`
	Lat           float64 `json:"lat,omitempty"`
	Lon           float64 `json:"lon,omitempty"`
}

// RouteSummary aggregates a route's cost figures.
type RouteSummary struct {
	TotalTime     int `json:"total_time"`     // seconds
	TotalDistance int `json:"total_distance"` // meters
	TrafficDelay  int `json:"traffic_delay"`  // seconds
}

// Route is one route option returned by the engine. Immutable once returned;
// selection is by index (0 = primary, N = alternative N-1).
type Route struct {
	RouteID    string       `json:"route_id,omitempty"`
	Summary    RouteSummary `json:"summary"`
	Points     []RoutePoint `json:"points"`
	VisitOrder []VisitStop  `json:"visit_order,omitempty"`
}

// Result is the engine response for traffic and multi-delivery optimization:
// one primary route plus zero or more alternatives.
type Result struct {
	PrimaryRoute      *Route         `json:"primary_route"`
	AlternativeRoutes []Route        `json:"alternative_routes,omitempty"`
	RouteInfo         map[string]any `json:"route_info,omitempty"`
}

// SimpleResult is the engine response for a two-point route.
type SimpleResult struct {
	RoutePoints []RoutePoint `json:"route_points"`
	Summary     RouteSummary `json:"summary"`
}

// ValidationError reports a request rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Error carries detailed failure information from the engine.
type Error struct {
	Provider string // provider that generated the error
	Code     string // provider error code
	Status   int    // upstream HTTP status, when the engine responded at all
	Message  string // human-readable message
	Err      error  // underlying sentinel error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
