package routes

import (
	"fmt"
	"time"

	"github.com/fleetgate/fleetgate/internal/optimization"
	"github.com/fleetgate/fleetgate/pkg/polyline"
)

// ValidationError reports a creation input rejected before submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BuildCreationPayload transforms an optimization result plus the user's
// order and route-alternative selections into the backend creation payload.
//
// Route selection: index 0 (or unset) selects the primary route, index N > 0
// selects alternative N-1. Ordered waypoints are built positionally: element
// i couples selectedOrders[i] with visit_order[i].waypoint_index + 1 (1-based
// for display). The two slices must correspond by position.
func BuildCreationPayload(in CreationInput) (*CreationPayload, error) {
	if in.RouteData == nil {
		return nil, &ValidationError{Field: "routeData", Message: "route data is required"}
	}
	if in.OrganizationID == "" {
		return nil, &ValidationError{Field: "organizationId", Message: "organization id is required"}
	}

	chosen, err := selectRoute(in.RouteData, in.SelectedRouteIndex)
	if err != nil {
		return nil, err
	}

	// Positional coupling only works when both sequences line up; a silent
	// mismatch would attach orders to the wrong stops.
	if len(in.SelectedOrders) != len(chosen.VisitOrder) {
		return nil, &ValidationError{
			Field: "selectedOrders",
			Message: fmt.Sprintf("selected orders (%d) do not match the route's visit order (%d)",
				len(in.SelectedOrders), len(chosen.VisitOrder)),
		}
	}

	ordered := make([]OrderedWaypoint, 0, len(in.SelectedOrders))
	for i, orderID := range in.SelectedOrders {
		ordered = append(ordered, OrderedWaypoint{
			OrderID: orderID,
			Order:   chosen.VisitOrder[i].WaypointIndex + 1,
		})
	}

	points := make([]PayloadPoint, 0, len(chosen.Points))
	coords := make([]polyline.Coordinate, 0, len(chosen.Points))
	for i, p := range chosen.Points {
		point := PayloadPoint{
			Lat:             p.Lat,
			Lon:             p.Lon,
			Name:            p.Name,
			TrafficDelay:    p.TrafficDelay,
			Speed:           p.Speed,
			CongestionLevel: p.CongestionLevel,
		}
		if point.Name == "" {
			point.Name = fmt.Sprintf("Waypoint %d", i+1)
		}
		if point.CongestionLevel == "" {
			point.CongestionLevel = "unknown"
		}
		points = append(points, point)
		coords = append(coords, polyline.Coordinate{Lat: point.Lat, Lng: point.Lon})
	}

	name := in.RouteName
	if name == "" {
		name = "Route " + time.Now().Format("2006-01-02 15:04")
	}

	payload := &CreationPayload{
		RouteName:        name,
		Description:      in.Description,
		Route:            points,
		OrderedWaypoints: ordered,
		Geometry:         polyline.EncodeWithPrecision(coords, polyline.Precision6),
		TrafficCondition: trafficCondition(in.RouteData),
		TrafficDelay:     chosen.Summary.TrafficDelay,
		Status:           "PLANNED",
		Orders:           in.SelectedOrders,
	}

	if len(points) > 0 {
		payload.Origin = locationFromPoint(points[0])
		payload.Destination = locationFromPoint(points[len(points)-1])
	}

	return payload, nil
}

// selectRoute applies the selection-index convention.
func selectRoute(result *optimization.Result, index int) (*optimization.Route, error) {
	if index == 0 {
		if result.PrimaryRoute == nil {
			return nil, &ValidationError{Field: "routeData", Message: "route data has no primary route"}
		}
		return result.PrimaryRoute, nil
	}
	if index < 0 || index > len(result.AlternativeRoutes) {
		return nil, &ValidationError{
			Field:   "selectedRouteIndex",
			Message: fmt.Sprintf("route index %d out of range: %d alternatives available", index, len(result.AlternativeRoutes)),
		}
	}
	return &result.AlternativeRoutes[index-1], nil
}

func trafficCondition(result *optimization.Result) string {
	if result.RouteInfo == nil {
		return ""
	}
	if condition, ok := result.RouteInfo["traffic_condition"].(string); ok {
		return condition
	}
	return ""
}

func locationFromPoint(p PayloadPoint) *optimization.Location {
	loc := &optimization.Location{Name: p.Name}
	loc.Lat = p.Lat
	loc.Lng = p.Lon
	return loc
}
