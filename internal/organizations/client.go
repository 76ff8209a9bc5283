// Package organizations proxies organization management to the order
// backend: organization CRUD, membership listing, and the public
// registration endpoint used by the signup flow.
package organizations

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

// Response relays a backend response without interpretation.
type Response struct {
	Status int
	Body   json.RawMessage
}

// ClientConfig holds configuration for the organization proxy client.
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

// Client proxies organization operations to the backend.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new organization proxy client.
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

// Register creates a new organization together with its first admin user.
// This is the one unauthenticated endpoint in the package: signup happens
// before any token or tenant exists.
func (c *Client) Register(ctx context.Context, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, "", "", http.MethodPost, "/organizations/register", body)
}

// Get fetches the organization's profile.
func (c *Client) Get(ctx context.Context, organizationID, authorization string) (*Response, error) {
	return c.forward(ctx, organizationID, authorization, http.MethodGet, "/organizations/"+organizationID, nil)
}

// Update modifies the organization's profile.
func (c *Client) Update(ctx context.Context, organizationID, authorization string, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, organizationID, authorization, http.MethodPut, "/organizations/"+organizationID, body)
}

// ListMembers fetches the organization's memberships. Drivers offered for
// route assignment come from this list.
func (c *Client) ListMembers(ctx context.Context, organizationID, authorization string) (*Response, error) {
	return c.forward(ctx, organizationID, authorization, http.MethodGet, "/organizations/"+organizationID+"/members", nil)
}

// InviteMember adds a member to the organization.
func (c *Client) InviteMember(ctx context.Context, organizationID, authorization string, body json.RawMessage) (*Response, error) {
	return c.forward(ctx, organizationID, authorization, http.MethodPost, "/organizations/"+organizationID+"/members", body)
}

// RemoveMember deletes a membership.
func (c *Client) RemoveMember(ctx context.Context, organizationID, authorization, membershipUUID string) (*Response, error) {
	return c.forward(ctx, organizationID, authorization, http.MethodDelete, "/organizations/"+organizationID+"/members/"+membershipUUID, nil)
}

func (c *Client) forward(ctx context.Context, organizationID, authorization, method, path string, body json.RawMessage) (*Response, error) {
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
	if organizationID != "" {
		req.Header.Set(OrganizationHeader, organizationID)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
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
