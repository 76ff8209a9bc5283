package optimization_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetgate/fleetgate/internal/geo"
	"github.com/fleetgate/fleetgate/internal/optimization"
)

// fakeProvider records forwarded requests and returns canned results.
type fakeProvider struct {
	trafficCalls atomic.Int32
	simpleCalls  atomic.Int32
	lastTraffic  optimization.TrafficRequest
	lastMulti    optimization.MultiDeliveryRequest
}

func (f *fakeProvider) OptimizeTraffic(_ context.Context, req optimization.TrafficRequest) (*optimization.Result, error) {
	f.trafficCalls.Add(1)
	f.lastTraffic = req
	return &optimization.Result{PrimaryRoute: &optimization.Route{}}, nil
}

func (f *fakeProvider) OptimizeMultiDelivery(_ context.Context, req optimization.MultiDeliveryRequest) (*optimization.Result, error) {
	f.lastMulti = req
	return &optimization.Result{PrimaryRoute: &optimization.Route{}}, nil
}

func (f *fakeProvider) RouteSimple(_ context.Context, req optimization.SimpleRequest) (*optimization.SimpleResult, error) {
	f.simpleCalls.Add(1)
	return &optimization.SimpleResult{
		RoutePoints: []optimization.RoutePoint{
			{Lat: req.Pickup.Lat, Lon: req.Pickup.Lng},
			{Lat: req.Delivery.Lat, Lon: req.Delivery.Lng},
		},
	}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newService(p optimization.Provider) *optimization.Service {
	return optimization.NewService(optimization.ServiceConfig{
		Provider: p,
		Logger:   zerolog.Nop(),
	})
}

func loc(name string, lat, lng float64) optimization.Location {
	return optimization.Location{
		Coordinate: geo.Coordinate{Lat: lat, Lng: lng},
		Name:       name,
	}
}

func locPtr(name string, lat, lng float64) *optimization.Location {
	l := loc(name, lat, lng)
	return &l
}

func TestOptimizeTraffic_MissingFields(t *testing.T) {
	svc := newService(&fakeProvider{})

	tests := []struct {
		name      string
		req       optimization.TrafficRequest
		wantField string
	}{
		{
			name:      "missing origin",
			req:       optimization.TrafficRequest{Destination: locPtr("B", 1, 1), Waypoints: []optimization.Location{loc("W", 1, 1)}},
			wantField: "origin",
		},
		{
			name:      "missing destination",
			req:       optimization.TrafficRequest{Origin: locPtr("A", 1, 1), Waypoints: []optimization.Location{loc("W", 1, 1)}},
			wantField: "destination",
		},
		{
			name:      "missing waypoints",
			req:       optimization.TrafficRequest{Origin: locPtr("A", 1, 1), Destination: locPtr("B", 1, 1)},
			wantField: "waypoints",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.OptimizeTraffic(context.Background(), tt.req)
			require.Error(t, err)

			var vErr *optimization.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestOptimizeTraffic_InvalidWaypointNamed(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	_, err := svc.OptimizeTraffic(context.Background(), optimization.TrafficRequest{
		Origin:      locPtr("Depot", 14.6349, -90.5069),
		Destination: locPtr("Hub", 14.6400, -90.5000),
		Waypoints: []optimization.Location{
			loc("Stop A", 14.63, -90.50),
			loc("Stop B", 200, -90.51), // latitude out of range
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Stop B")
	assert.Contains(t, err.Error(), "200")
	assert.Zero(t, provider.trafficCalls.Load(), "invalid requests must never be forwarded")
}

func TestOptimizeTraffic_MissingCoordinateComponentRejected(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name: "origin missing lat",
			body: `{
				"origin": {"lng": -90.5069, "name": "A"},
				"destination": {"lat": 14.64, "lng": -90.50, "name": "B"},
				"waypoints": [{"lat": 14.637, "lng": -90.503, "name": "W"}]
			}`,
			wantField: "origin",
		},
		{
			name: "destination null lng",
			body: `{
				"origin": {"lat": 14.6349, "lng": -90.5069, "name": "A"},
				"destination": {"lat": 14.64, "lng": null, "name": "B"},
				"waypoints": [{"lat": 14.637, "lng": -90.503, "name": "W"}]
			}`,
			wantField: "destination",
		},
		{
			name: "waypoint with both components absent",
			body: `{
				"origin": {"lat": 14.6349, "lng": -90.5069, "name": "A"},
				"destination": {"lat": 14.64, "lng": -90.50, "name": "B"},
				"waypoints": [{"name": "Stop A"}]
			}`,
			wantField: "waypoint 1 (Stop A)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req optimization.TrafficRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			_, err := svc.OptimizeTraffic(context.Background(), req)
			require.Error(t, err)

			var vErr *optimization.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.ErrorContains(t, err, "not defined")
			assert.Zero(t, provider.trafficCalls.Load(), "requests with undefined coordinates must never be forwarded")
		})
	}
}

func TestOptimizeTraffic_StringCoordinatesCoerced(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	body := `{
		"origin": {"lat": "14.6349", "lng": "-90.5069", "name": "A"},
		"destination": {"lat": 14.64, "lng": -90.50, "name": "B"},
		"waypoints": [{"lat": 14.637, "lng": -90.503, "name": "W"}]
	}`
	var req optimization.TrafficRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	_, err := svc.OptimizeTraffic(context.Background(), req)
	require.NoError(t, err)

	assert.InDelta(t, 14.6349, provider.lastTraffic.Origin.Lat, 1e-6)
	assert.InDelta(t, -90.5069, provider.lastTraffic.Origin.Lng, 1e-6)
}

func TestOptimizeTraffic_DefaultsAppliedAfterValidation(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	_, err := svc.OptimizeTraffic(context.Background(), optimization.TrafficRequest{
		Origin:      locPtr("A", 14.6349, -90.5069),
		Destination: locPtr("B", 14.6400, -90.5000),
		Waypoints:   []optimization.Location{loc("W", 14.637, -90.503)},
	})
	require.NoError(t, err)

	forwarded := provider.lastTraffic
	require.NotNil(t, forwarded.IncludeTraffic)
	assert.True(t, *forwarded.IncludeTraffic)
	require.NotNil(t, forwarded.Alternatives)
	assert.True(t, *forwarded.Alternatives)
	assert.Equal(t, "now", forwarded.DepartureTime)
	assert.Equal(t, "car", forwarded.TravelMode)
	assert.Equal(t, "fastest", forwarded.RouteType)
}

func TestOptimizeTraffic_CleansCoordinatesBeforeForwarding(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	_, err := svc.OptimizeTraffic(context.Background(), optimization.TrafficRequest{
		Origin:      locPtr("A", 14.63491234567, -90.50696789012),
		Destination: locPtr("B", 14.6400, -90.5000),
		Waypoints:   []optimization.Location{loc("W", 14.637, -90.503)},
	})
	require.NoError(t, err)

	assert.Equal(t, 14.634912, provider.lastTraffic.Origin.Lat)
	assert.Equal(t, -90.506968, provider.lastTraffic.Origin.Lng)
}

func TestOptimizeMultiDelivery_InvalidOrderNamed(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	_, err := svc.OptimizeMultiDelivery(context.Background(), optimization.MultiDeliveryRequest{
		DriverStartLocation: locPtr("Depot", 14.6349, -90.5069),
		DriverEndLocation:   locPtr("Depot", 14.6349, -90.5069),
		DeliveryOrders: []optimization.DeliveryOrder{
			{
				ID:          "a0000000-0000-0000-0000-000000000001",
				OrderNumber: "ORD-1042",
				Origin:      loc("Pickup", 14.63, -90.50),
				Destination: loc("Dropoff", 14.64, -190.0), // longitude out of range
			},
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORD-1042")
	assert.Contains(t, err.Error(), "destination")
}

func TestOptimizeMultiDelivery_Defaults(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	_, err := svc.OptimizeMultiDelivery(context.Background(), optimization.MultiDeliveryRequest{
		DriverStartLocation: locPtr("Depot", 14.6349, -90.5069),
		DriverEndLocation:   locPtr("Depot", 14.6349, -90.5069),
		DeliveryOrders: []optimization.DeliveryOrder{
			{
				ID:          "a0000000-0000-0000-0000-000000000001",
				Origin:      loc("Pickup", 14.63, -90.50),
				Destination: loc("Dropoff", 14.64, -90.49),
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, provider.lastMulti.MaxOrdersPerTrip)
	require.NotNil(t, provider.lastMulti.IncludeTraffic)
	assert.True(t, *provider.lastMulti.IncludeTraffic)
}

func TestRouteSimple_CachesByGrid(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	req := optimization.SimpleRequest{
		Pickup:   locPtr("A", 14.6349, -90.5069),
		Delivery: locPtr("B", 14.6400, -90.5000),
	}

	first, err := svc.RouteSimple(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.RoutePoints, 2)

	second, err := svc.RouteSimple(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), provider.simpleCalls.Load(), "second request should be served from cache")

	svc.InvalidateCache()
	_, err = svc.RouteSimple(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.simpleCalls.Load())
}

func TestRouteSimple_EndpointsMatchRequest(t *testing.T) {
	svc := newService(&fakeProvider{})

	result, err := svc.RouteSimple(context.Background(), optimization.SimpleRequest{
		Pickup:   locPtr("A", 14.6349, -90.5069),
		Delivery: locPtr("B", 14.6400, -90.5000),
	})
	require.NoError(t, err)
	require.Len(t, result.RoutePoints, 2)

	assert.InDelta(t, 14.6349, result.RoutePoints[0].Lat, 1e-6)
	assert.InDelta(t, -90.5069, result.RoutePoints[0].Lon, 1e-6)
	assert.InDelta(t, 14.6400, result.RoutePoints[1].Lat, 1e-6)
	assert.InDelta(t, -90.5000, result.RoutePoints[1].Lon, 1e-6)
}
