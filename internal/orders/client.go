// Package orders proxies the order backend's CRUD surface. The gateway adds
// tenant scoping and credential forwarding but leaves order bodies opaque:
// the backend owns the order schema, so payloads pass through as raw JSON.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/provider/resilience"
)

const (
	// UpstreamName identifies the order backend for health reporting.
	UpstreamName = "order-backend"

	// OrganizationHeader scopes backend requests to a tenant.
	OrganizationHeader = "organization-id"
)

// ErrBackendUnavailable indicates the order backend could not be reached.
var ErrBackendUnavailable = errors.New("order backend unavailable")

// Credentials carries the caller's identity forwarded to the backend.
type Credentials struct {
	// OrganizationID is the tenant scope (required).
	OrganizationID string

	// Authorization is the caller's bearer token, forwarded verbatim.
	Authorization string
}

// Response is a backend response relayed to the caller without
// interpretation: status and body pass through unchanged.
type Response struct {
	Status int
	Body   json.RawMessage
}

// ClientConfig holds configuration for the order proxy client.
type ClientConfig struct {
	// BaseURL is the order backend base URL (required).
	BaseURL string

	// HTTPClient overrides the default resilient client (optional).
	HTTPClient *resilience.Client

	// Registry tracks upstream health (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client proxies order operations to the backend.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new order proxy client.
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

// List fetches the organization's orders.
func (c *Client) List(ctx context.Context, creds Credentials, query string) (*Response, error) {
	path := "/orders"
	if query != "" {
		path += "?" + query
	}
	return c.forward(ctx, creds, http.MethodGet, path, nil)
}

// Get fetches a single order.
func (c *Client) Get(ctx context.Context, creds Credentials, orderUUID string) (*Response, error) {
	return c.forward(ctx, creds, http.MethodGet, "/orders/"+orderUUID, nil)
}

// Create submits a new order.
func (c *Client) Create(ctx context.Context, creds Credentials, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, creds, http.MethodPost, "/orders", body)
}

// Update modifies an existing order.
func (c *Client) Update(ctx context.Context, creds Credentials, orderUUID string, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, creds, http.MethodPut, "/orders/"+orderUUID, body)
}

// Patch partially modifies an existing order.
func (c *Client) Patch(ctx context.Context, creds Credentials, orderUUID string, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, creds, http.MethodPatch, "/orders/"+orderUUID, body)
}

// Delete removes an order.
func (c *Client) Delete(ctx context.Context, creds Credentials, orderUUID string) (*Response, error) {
	return c.forward(ctx, creds, http.MethodDelete, "/orders/"+orderUUID, nil)
}

func (c *Client) forward(ctx context.Context, creds Credentials, method, path string, body json.RawMessage) (*Response, error) {
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
	if creds.OrganizationID != "" {
		req.Header.Set(OrganizationHeader, creds.OrganizationID)
	}
	if creds.Authorization != "" {
		req.Header.Set("Authorization", creds.Authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("path", path).
			Msg("order backend error response")
	}

	return &Response{Status: resp.StatusCode, Body: payload}, nil
}
