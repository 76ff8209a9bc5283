package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/provider/resilience"
)

// UpstreamName identifies the main API's auth service for health reporting.
const UpstreamName = "auth-api"

// ErrUpstreamUnavailable indicates the auth service could not be reached.
var ErrUpstreamUnavailable = fmt.Errorf("auth service unavailable")

// Response relays an auth service response without interpretation. Login
// verdicts (wrong code, expired code, unknown email) belong to the upstream;
// the gateway passes them through.
type Response struct {
	Status int
	Body   json.RawMessage
}

// ClientConfig holds configuration for the auth proxy client.
type ClientConfig struct {
	// BaseURL is the main API base URL (required).
	BaseURL string

	// HTTPClient overrides the default resilient client (optional).
	HTTPClient *resilience.Client

	// Registry tracks upstream health (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client proxies the passwordless login flow to the main API.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new auth proxy client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(UpstreamName)
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// RequestCode asks the upstream to email a one-time login code.
func (c *Client) RequestCode(ctx context.Context, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, http.MethodPost, "/auth/login", "", body)
}

// VerifyCode exchanges a one-time code for a token pair.
func (c *Client) VerifyCode(ctx context.Context, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, http.MethodPost, "/auth/verify", "", body)
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, http.MethodPost, "/auth/refresh", "", body)
}

// Logout revokes the caller's refresh token upstream.
func (c *Client) Logout(ctx context.Context, authorization string, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, http.MethodPost, "/auth/logout", authorization, body)
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, authorization string) (*Response, error) {
	return c.forward(ctx, http.MethodGet, "/auth/profile", authorization, nil)
}

func (c *Client) forward(ctx context.Context, method, path, authorization string, body json.RawMessage) (*Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 500 {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("auth service error response")
	}

	return &Response{Status: resp.StatusCode, Body: payload}, nil
}
