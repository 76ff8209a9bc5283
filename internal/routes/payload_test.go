package routes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetgate/fleetgate/internal/optimization"
)

func optimizationResult() *optimization.Result {
	return &optimization.Result{
		PrimaryRoute: &optimization.Route{
			RouteID: "rt_primary",
			Summary: optimization.RouteSummary{TotalTime: 1800, TotalDistance: 12000, TrafficDelay: 300},
			Points: []optimization.RoutePoint{
				{Lat: 52.370216, Lon: 4.895168, Name: "Depot", Speed: 40, CongestionLevel: "low"},
				{Lat: 52.090737, Lon: 5.121420, Name: "Stop A", Speed: 30, CongestionLevel: "moderate"},
				{Lat: 51.922500, Lon: 4.479170, Name: "Stop B", Speed: 35, CongestionLevel: "low"},
			},
			VisitOrder: []optimization.VisitStop{
				{WaypointIndex: 1, Name: "Stop B"},
				{WaypointIndex: 0, Name: "Stop A"},
			},
		},
		AlternativeRoutes: []optimization.Route{
			{
				RouteID: "rt_alt_1",
				Summary: optimization.RouteSummary{TotalTime: 2100, TotalDistance: 13500, TrafficDelay: 120},
				Points: []optimization.RoutePoint{
					{Lat: 52.370216, Lon: 4.895168},
					{Lat: 51.922500, Lon: 4.479170},
				},
				VisitOrder: []optimization.VisitStop{
					{WaypointIndex: 0, Name: "Stop A"},
					{WaypointIndex: 1, Name: "Stop B"},
				},
			},
		},
		RouteInfo: map[string]any{"traffic_condition": "moderate"},
	}
}

func TestBuildCreationPayload_OrderedWaypoints(t *testing.T) {
	payload, err := BuildCreationPayload(CreationInput{
		RouteData:      optimizationResult(),
		SelectedOrders: []string{"order-1", "order-2"},
		OrganizationID: "org-1",
		RouteName:      "Morning run",
	})
	require.NoError(t, err)

	// Positional coupling: element i pairs selectedOrders[i] with
	// visit_order[i].waypoint_index + 1.
	require.Len(t, payload.OrderedWaypoints, 2)
	assert.Equal(t, OrderedWaypoint{OrderID: "order-1", Order: 2}, payload.OrderedWaypoints[0])
	assert.Equal(t, OrderedWaypoint{OrderID: "order-2", Order: 1}, payload.OrderedWaypoints[1])

	assert.Equal(t, "Morning run", payload.RouteName)
	assert.Equal(t, "PLANNED", payload.Status)
	assert.Equal(t, "moderate", payload.TrafficCondition)
	assert.Equal(t, 300, payload.TrafficDelay)
	assert.Equal(t, []string{"order-1", "order-2"}, payload.Orders)
	assert.NotEmpty(t, payload.Geometry)

	require.NotNil(t, payload.Origin)
	require.NotNil(t, payload.Destination)
	assert.Equal(t, "Depot", payload.Origin.Name)
	assert.Equal(t, "Stop B", payload.Destination.Name)
	assert.InDelta(t, 52.370216, payload.Origin.Lat, 1e-9)
	assert.InDelta(t, 51.922500, payload.Destination.Lat, 1e-9)
}

func TestBuildCreationPayload_RouteSelection(t *testing.T) {
	input := CreationInput{
		RouteData:      optimizationResult(),
		SelectedOrders: []string{"order-1", "order-2"},
		OrganizationID: "org-1",
	}

	primary, err := BuildCreationPayload(input)
	require.NoError(t, err)
	assert.Len(t, primary.Route, 3)

	// Index 1 selects alternative 0.
	input.SelectedRouteIndex = 1
	alt, err := BuildCreationPayload(input)
	require.NoError(t, err)
	assert.Len(t, alt.Route, 2)
	assert.Equal(t, 120, alt.TrafficDelay)
	assert.Equal(t, OrderedWaypoint{OrderID: "order-1", Order: 1}, alt.OrderedWaypoints[0])

	input.SelectedRouteIndex = 2
	_, err = BuildCreationPayload(input)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selectedRouteIndex", verr.Field)
}

func TestBuildCreationPayload_RejectsLengthMismatch(t *testing.T) {
	_, err := BuildCreationPayload(CreationInput{
		RouteData:      optimizationResult(),
		SelectedOrders: []string{"order-1"},
		OrganizationID: "org-1",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selectedOrders", verr.Field)
	assert.Contains(t, verr.Message, "visit order")
}

func TestBuildCreationPayload_RequiredFields(t *testing.T) {
	_, err := BuildCreationPayload(CreationInput{OrganizationID: "org-1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "routeData", verr.Field)

	_, err = BuildCreationPayload(CreationInput{RouteData: optimizationResult()})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "organizationId", verr.Field)

	_, err = BuildCreationPayload(CreationInput{
		RouteData:      &optimization.Result{},
		OrganizationID: "org-1",
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "routeData", verr.Field)
}

func TestBuildCreationPayload_DefensiveDefaults(t *testing.T) {
	result := optimizationResult()
	result.PrimaryRoute.Points[1].Name = ""
	result.PrimaryRoute.Points[1].CongestionLevel = ""
	result.RouteInfo = nil

	payload, err := BuildCreationPayload(CreationInput{
		RouteData:      result,
		SelectedOrders: []string{"order-1", "order-2"},
		OrganizationID: "org-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Waypoint 2", payload.Route[1].Name)
	assert.Equal(t, "unknown", payload.Route[1].CongestionLevel)
	assert.Empty(t, payload.TrafficCondition)

	// Unset name falls back to a timestamped default.
	assert.True(t, strings.HasPrefix(payload.RouteName, "Route "), "got %q", payload.RouteName)
}
