package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Connection states. The client only accepts room operations once the
// two-phase handshake (connect, then authenticate) has completed.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateConnected      State = "connected"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// Reconnection policy.
const (
	DialTimeout              = 15 * time.Second
	MaxReconnectAttempts     = 3
	ReconnectInitialInterval = 2 * time.Second
	ReconnectMaxInterval     = 10 * time.Second
)

// Predefined errors.
var (
	// ErrAuthFailed indicates the tracking service rejected the identity.
	// Reconnecting will not help until the credentials change.
	ErrAuthFailed = errors.New("tracking authentication failed")
	// ErrNotConnected indicates an operation on a closed client.
	ErrNotConnected = errors.New("tracking client not connected")
)

// Publisher forwards transmissions for durable processing.
type Publisher interface {
	Publish(ctx context.Context, t Transmission) error
}

// ClientConfig holds configuration for the tracking client.
type ClientConfig struct {
	// URL is the tracking service WebSocket URL (required).
	URL string

	// UserID and OrganizationID identify the gateway to the tracking
	// service during the authenticate handshake.
	UserID         string
	OrganizationID string

	// Feed receives every transmission (required).
	Feed *Feed

	// Publisher additionally receives transmissions (optional).
	Publisher Publisher

	// Dialer overrides the default dialer (optional).
	Dialer *websocket.Dialer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is the gateway's single connection to the tracking service. It
// authenticates after connecting, resubscribes its route rooms after a
// reconnect, and gives up after a bounded number of reconnect attempts.
type Client struct {
	url       string
	userID    string
	orgID     string
	feed      *Feed
	publisher Publisher
	dialer    *websocket.Dialer
	logger    zerolog.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	state          State
	joined         map[string]struct{}
	closing        bool
	lastAuthErr    error
	lastConnectErr error

	// writeMu serializes frame writes; gorilla connections support only
	// one concurrent writer.
	writeMu sync.Mutex
}

// NewClient creates a tracking client. Call Connect to establish the
// session.
func NewClient(cfg ClientConfig) *Client {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: DialTimeout}
	}

	return &Client{
		url:       cfg.URL,
		userID:    cfg.UserID,
		orgID:     cfg.OrganizationID,
		feed:      cfg.Feed,
		publisher: cfg.Publisher,
		dialer:    dialer,
		logger:    cfg.Logger.With().Str("component", "tracking").Logger(),
		state:     StateDisconnected,
		joined:    make(map[string]struct{}),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastAuthError returns the most recent authentication rejection, if any.
// Auth errors are kept separate from transport errors because they are
// terminal for the current credentials.
func (c *Client) LastAuthError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAuthErr
}

// LastConnectError returns the most recent dial or reconnect failure.
func (c *Client) LastConnectError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastConnectErr
}

// Connect dials the tracking service and starts the authentication
// handshake. Calling Connect while a session is live is a no-op, so
// request handlers can call it opportunistically.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.closing = false
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}

	// The session outlives the caller: handlers connect opportunistically
	// from request contexts, and a canceled request must not kill the read
	// loop, the reconnect budget, or transmission publishing.
	go c.readLoop(context.WithoutCancel(ctx))
	return nil
}

// Close terminates the session without reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// JoinRoute subscribes to a route's driver updates. Before authentication
// completes the call is a logged no-op: the service would drop the frame
// anyway, and the subscription is replayed once authenticated because it
// is recorded first.
func (c *Client) JoinRoute(routeID string) {
	c.mu.Lock()
	c.joined[routeID] = struct{}{}
	ready := c.state == StateAuthenticated
	conn := c.conn
	c.mu.Unlock()

	if !ready || conn == nil {
		c.logger.Warn().Str("route_id", routeID).Msg("join_route before authentication, deferred")
		return
	}
	c.send(conn, Envelope{Event: EventJoinRoute, Route: routeID})
}

// LeaveRoute unsubscribes from a route's driver updates. A logged no-op
// before authentication.
func (c *Client) LeaveRoute(routeID string) {
	c.mu.Lock()
	delete(c.joined, routeID)
	ready := c.state == StateAuthenticated
	conn := c.conn
	c.mu.Unlock()

	if !ready || conn == nil {
		c.logger.Warn().Str("route_id", routeID).Msg("leave_route before authentication, ignored")
		return
	}
	c.send(conn, Envelope{Event: EventLeaveRoute, Route: routeID})
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		err = fmt.Errorf("dialing tracking service: %w", err)
		c.mu.Lock()
		c.lastConnectErr = err
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateAuthenticating
	c.lastConnectErr = nil
	c.mu.Unlock()

	c.logger.Info().Str("url", c.url).Msg("tracking connection established")
	c.send(conn, Envelope{Event: EventAuthenticate, UserID: c.userID, OrganizationID: c.orgID})
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()
			if closing {
				return
			}

			c.logger.Warn().Err(err).Msg("tracking connection lost")
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		if done := c.handle(ctx, env); done {
			return
		}
	}
}

// handle processes one frame. It returns true when the session must end.
func (c *Client) handle(ctx context.Context, env Envelope) bool {
	switch env.Event {
	case EventAuthenticated:
		c.mu.Lock()
		c.state = StateAuthenticated
		c.lastAuthErr = nil
		conn := c.conn
		joined := make([]string, 0, len(c.joined))
		for routeID := range c.joined {
			joined = append(joined, routeID)
		}
		c.mu.Unlock()

		c.logger.Info().Msg("tracking authentication succeeded")
		for _, routeID := range joined {
			c.send(conn, Envelope{Event: EventJoinRoute, Route: routeID})
		}

	case EventAuthError:
		// A rejected identity is terminal, unlike a dropped connection:
		// retrying with the same credentials cannot succeed.
		c.logger.Error().Str("reason", env.Error).Msg("tracking authentication rejected")
		c.mu.Lock()
		c.lastAuthErr = fmt.Errorf("%w: %s", ErrAuthFailed, env.Error)
		c.mu.Unlock()
		c.Close()
		return true

	case EventTransmission:
		if env.Transmission == nil {
			return false
		}
		c.feed.Update(*env.Transmission)
		if c.publisher != nil {
			if err := c.publisher.Publish(ctx, *env.Transmission); err != nil {
				c.logger.Error().Err(err).Msg("publishing transmission")
			}
		}

	case EventStatusUpdate:
		if env.Transmission == nil {
			return false
		}
		at := env.Transmission.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		c.feed.UpdateStatus(env.Transmission.DriverID, env.Transmission.Status, at)

	case EventJoinedRoute, EventLeftRoute:
		c.logger.Debug().Str("event", env.Event).Str("route_id", env.Route).Msg("room update")

	default:
		c.logger.Debug().Str("event", env.Event).Msg("unhandled tracking event")
	}
	return false
}

// reconnect redials with exponential backoff. It returns false once the
// attempt budget is spent or the client is closing.
func (c *Client) reconnect(ctx context.Context) bool {
	c.setState(StateConnecting)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = ReconnectInitialInterval
	policy.MaxInterval = ReconnectMaxInterval
	policy.RandomizationFactor = 0

	attempts := backoff.WithMaxRetries(backoff.WithContext(policy, ctx), MaxReconnectAttempts-1)

	err := backoff.Retry(func() error {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return backoff.Permanent(ErrNotConnected)
		}

		if err := c.dial(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("tracking reconnect attempt failed")
			return err
		}
		return nil
	}, attempts)

	if err != nil {
		c.logger.Error().Err(err).Int("attempts", MaxReconnectAttempts).Msg("tracking reconnect exhausted")
		c.setState(StateDisconnected)
		return false
	}
	return true
}

func (c *Client) send(conn *websocket.Conn, env Envelope) {
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		c.logger.Warn().Err(err).Str("event", env.Event).Msg("writing tracking frame")
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
