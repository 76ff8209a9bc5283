package engine_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetgate/fleetgate/internal/geo"
	"github.com/fleetgate/fleetgate/internal/optimization"
	"github.com/fleetgate/fleetgate/internal/optimization/engine"
)

func newTestClient(baseURL string) *engine.Client {
	return engine.NewClient(engine.ClientConfig{
		BaseURL:    baseURL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})
}

func trafficRequest() optimization.TrafficRequest {
	origin := optimization.Location{Coordinate: geo.Coordinate{Lat: 14.6349, Lng: -90.5069}, Name: "A"}
	dest := optimization.Location{Coordinate: geo.Coordinate{Lat: 14.6400, Lng: -90.5000}, Name: "B"}
	return optimization.TrafficRequest{
		Origin:      &origin,
		Destination: &dest,
		Waypoints:   []optimization.Location{{Coordinate: geo.Coordinate{Lat: 14.637, Lng: -90.503}, Name: "W"}},
	}
}

func TestClient_OptimizeTraffic_Success(t *testing.T) {
	respBody, err := os.ReadFile("testdata/optimize_response.json")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/optimize-route", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(respBody)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	result, err := client.OptimizeTraffic(context.Background(), trafficRequest())
	require.NoError(t, err)

	require.NotNil(t, result.PrimaryRoute)
	assert.Equal(t, "rt_primary_001", result.PrimaryRoute.RouteID)
	assert.Equal(t, 1860, result.PrimaryRoute.Summary.TotalTime)
	assert.Equal(t, 14250, result.PrimaryRoute.Summary.TotalDistance)
	assert.Len(t, result.PrimaryRoute.Points, 3)
	assert.Len(t, result.PrimaryRoute.VisitOrder, 2)
	assert.Equal(t, 1, result.PrimaryRoute.VisitOrder[0].WaypointIndex)
	assert.Len(t, result.AlternativeRoutes, 1)
	assert.Equal(t, "moderate", result.RouteInfo["traffic_condition"])

	// Point ordering must be preserved as returned by the engine.
	assert.Equal(t, 14.6349, result.PrimaryRoute.Points[0].Lat)
	assert.Equal(t, 14.6400, result.PrimaryRoute.Points[2].Lat)
}

func TestClient_StatusPassThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": "waypoints exceed engine limit"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.OptimizeTraffic(context.Background(), trafficRequest())
	require.Error(t, err)

	var engErr *optimization.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, http.StatusUnprocessableEntity, engErr.Status)
	assert.Equal(t, "waypoints exceed engine limit", engErr.Message)
	assert.False(t, engine.IsUnavailable(err))
}

func TestClient_NoRouteFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "no route found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.RouteSimple(context.Background(), optimization.SimpleRequest{
		Pickup:   &optimization.Location{Coordinate: geo.Coordinate{Lat: 1, Lng: 1}},
		Delivery: &optimization.Location{Coordinate: geo.Coordinate{Lat: 2, Lng: 2}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrNoRouteFound))
}

func TestClient_NetworkErrorMapsToUnavailable(t *testing.T) {
	// A closed server guarantees connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)

	_, err := client.OptimizeTraffic(context.Background(), trafficRequest())
	require.Error(t, err)
	assert.True(t, engine.IsUnavailable(err), "network errors must map to ErrEngineUnavailable")

	var engErr *optimization.Error
	require.ErrorAs(t, err, &engErr)
	assert.Zero(t, engErr.Status, "no upstream status when the engine is unreachable")
}

func TestClient_ServerErrorPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "solver crashed"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.OptimizeMultiDelivery(context.Background(), optimization.MultiDeliveryRequest{})
	require.Error(t, err)

	// The engine answered, so its verdict is relayed; only network-level
	// failures count as unavailable.
	assert.False(t, engine.IsUnavailable(err))

	var engErr *optimization.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, http.StatusInternalServerError, engErr.Status)
	assert.Equal(t, "solver crashed", engErr.Message)
}
