package tracking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingServer is a scripted stand-in for the tracking service.
type trackingServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	// frames receives every envelope the client sends.
	frames chan Envelope
	// script runs against each accepted connection.
	script func(conn *websocket.Conn, frames chan Envelope)
	// dials counts accepted connections.
	dials atomic.Int32
}

func newTrackingServer(t *testing.T, script func(conn *websocket.Conn, frames chan Envelope)) *trackingServer {
	t.Helper()

	ts := &trackingServer{
		t:      t,
		frames: make(chan Envelope, 16),
		script: script,
	}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.dials.Add(1)
		go ts.script(conn, ts.frames)
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			ts.frames <- env
		}
	}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *trackingServer) url() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http")
}

func (ts *trackingServer) nextFrame(t *testing.T) Envelope {
	t.Helper()
	select {
	case env := <-ts.frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return Envelope{}
	}
}

// acceptAuth answers the first authenticate frame with authenticated.
func acceptAuth(conn *websocket.Conn, frames chan Envelope) {
	env := <-frames
	if env.Event == EventAuthenticate {
		conn.WriteJSON(Envelope{Event: EventAuthenticated})
	}
}

func TestClientAuthenticatesOnConnect(t *testing.T) {
	ts := newTrackingServer(t, func(conn *websocket.Conn, frames chan Envelope) {
		env := <-frames
		assert.Equal(t, EventAuthenticate, env.Event)
		assert.Equal(t, "gateway-user", env.UserID)
		assert.Equal(t, "org-1", env.OrganizationID)
		conn.WriteJSON(Envelope{Event: EventAuthenticated})
	})

	client := NewClient(ClientConfig{
		URL:            ts.url(),
		UserID:         "gateway-user",
		OrganizationID: "org-1",
		Feed:           NewFeed(),
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return client.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	// Connect is idempotent once a session is live.
	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, int32(1), ts.dials.Load())
}

func TestClientJoinBeforeAuthIsDeferred(t *testing.T) {
	release := make(chan struct{})
	ts := newTrackingServer(t, func(conn *websocket.Conn, frames chan Envelope) {
		<-frames // authenticate, held unanswered
		<-release
		conn.WriteJSON(Envelope{Event: EventAuthenticated})
	})

	client := NewClient(ClientConfig{
		URL:            ts.url(),
		UserID:         "gateway-user",
		OrganizationID: "org-1",
		Feed:           NewFeed(),
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(context.Background()))

	// The handshake has not completed; join must not hit the wire yet.
	client.JoinRoute("route-1")
	select {
	case env := <-ts.frames:
		t.Fatalf("unexpected frame before auth: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}

	// Once authenticated the recorded subscription is replayed.
	close(release)
	env := ts.nextFrame(t)
	assert.Equal(t, EventJoinRoute, env.Event)
	assert.Equal(t, "route-1", env.Route)
}

func TestClientAuthErrorIsTerminal(t *testing.T) {
	ts := newTrackingServer(t, func(conn *websocket.Conn, frames chan Envelope) {
		<-frames
		conn.WriteJSON(Envelope{Event: EventAuthError, Error: "bad token"})
	})

	client := NewClient(ClientConfig{
		URL:            ts.url(),
		UserID:         "gateway-user",
		OrganizationID: "org-rejected",
		Feed:           NewFeed(),
		Logger:         zerolog.Nop(),
	})

	require.NoError(t, client.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return client.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	// A rejected identity must not trigger reconnection.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), ts.dials.Load())
	assert.ErrorIs(t, client.LastAuthError(), ErrAuthFailed)
	assert.NoError(t, client.LastConnectError())
}

func TestClientFeedsTransmissions(t *testing.T) {
	reported := time.Now().UTC().Truncate(time.Second)
	ts := newTrackingServer(t, func(conn *websocket.Conn, frames chan Envelope) {
		acceptAuth(conn, frames)
		conn.WriteJSON(Envelope{Event: EventTransmission, Transmission: &Transmission{
			DriverID:  "driver-1",
			RouteID:   "route-1",
			Location:  Position{Lat: 52.370216, Lng: 4.895168, Speed: 38},
			Status:    StatusActive,
			Timestamp: reported,
		}})
		conn.WriteJSON(Envelope{Event: EventStatusUpdate, Transmission: &Transmission{
			DriverID:  "driver-1",
			Status:    StatusIdle,
			Timestamp: reported.Add(time.Second),
		}})
	})

	feed := NewFeed()
	client := NewClient(ClientConfig{
		URL:            ts.url(),
		UserID:         "gateway-user",
		OrganizationID: "org-1",
		Feed:           feed,
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(context.Background()))
	require.Eventually(t, func() bool {
		view, ok := feed.Driver("driver-1")
		return ok && view.Status == StatusIdle
	}, 2*time.Second, 10*time.Millisecond)

	view, _ := feed.Driver("driver-1")
	assert.Equal(t, 52.370216, view.Location.Lat)
	assert.Equal(t, StatusIdle, view.RealStatus)
}

func TestClientWireFormat(t *testing.T) {
	// The protocol is camelCase on the wire; assert raw bytes in both
	// directions instead of round-tripping through the same struct tags.
	var upgrader websocket.Upgrader
	authFrame := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		authFrame <- raw
		conn.WriteJSON(Envelope{Event: EventAuthenticated})
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event": "driver_transmission",
			"data": {
				"driverId": "driver-7",
				"routeId": "route-3",
				"organizationId": "org-1",
				"location": {"lat": 52.370216, "lng": 4.895168},
				"status": "ACTIVE",
				"timestamp": "2026-08-30T09:00:00Z"
			}
		}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	feed := NewFeed()
	client := NewClient(ClientConfig{
		URL:            "ws" + strings.TrimPrefix(server.URL, "http"),
		UserID:         "gateway-user",
		OrganizationID: "org-1",
		Feed:           feed,
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(context.Background()))

	select {
	case raw := <-authFrame:
		assert.JSONEq(t, `{"event": "authenticate", "userId": "gateway-user", "organizationId": "org-1"}`, string(raw))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for authenticate frame")
	}

	require.Eventually(t, func() bool {
		_, ok := feed.Driver("driver-7")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	view, _ := feed.Driver("driver-7")
	assert.Equal(t, "route-3", view.RouteID)
	assert.Equal(t, "org-1", view.OrganizationID)
	assert.Equal(t, 52.370216, view.Location.Lat)
}

func TestClientSessionOutlivesCallerContext(t *testing.T) {
	var dropped atomic.Bool
	ts := newTrackingServer(t, func(conn *websocket.Conn, frames chan Envelope) {
		acceptAuth(conn, frames)
		// Drop only the first session to force one reconnect.
		if dropped.CompareAndSwap(false, true) {
			time.Sleep(50 * time.Millisecond)
			conn.Close()
		}
	})

	client := NewClient(ClientConfig{
		URL:            ts.url(),
		UserID:         "gateway-user",
		OrganizationID: "org-1",
		Feed:           NewFeed(),
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, client.Connect(ctx))
	require.Eventually(t, func() bool {
		return client.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	// The connecting request ends here. The session must keep running and
	// the reconnect budget must still apply when the server drops us.
	cancel()

	require.Eventually(t, func() bool {
		return ts.dials.Load() >= 2 && client.State() == StateAuthenticated
	}, 10*time.Second, 20*time.Millisecond)
}

func TestClientLeaveRouteAfterAuth(t *testing.T) {
	ts := newTrackingServer(t, acceptAuth)

	client := NewClient(ClientConfig{
		URL:            ts.url(),
		UserID:         "gateway-user",
		OrganizationID: "org-1",
		Feed:           NewFeed(),
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return client.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	client.JoinRoute("route-9")
	env := ts.nextFrame(t)
	require.Equal(t, EventJoinRoute, env.Event)

	client.LeaveRoute("route-9")
	env = ts.nextFrame(t)
	assert.Equal(t, EventLeaveRoute, env.Event)
	assert.Equal(t, "route-9", env.Route)
}
