package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/geo"
	"github.com/fleetgate/fleetgate/internal/provider/resilience"
)

const (
	// UpstreamName identifies the order backend for health reporting.
	UpstreamName = "order-backend"

	// OrganizationHeader scopes backend requests to a tenant. Every
	// organization-scoped call in this gateway uses this header, never a
	// body field.
	OrganizationHeader = "organization-id"
)

// ClientConfig holds configuration for the order backend route client.
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

// Client talks to the order backend's route endpoints.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new route backend client.
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

// Create submits a route creation payload scoped to the organization and
// returns the new route's identifier.
func (c *Client) Create(ctx context.Context, organizationID string, payload *CreationPayload) (string, error) {
	if organizationID == "" {
		return "", ErrMissingOrganization
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling creation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/routes", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(OrganizationHeader, organizationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.backendError(resp)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decoding creation response: %w", err)
	}

	routeID := ExtractRouteID(raw)
	if routeID == "" {
		return "", fmt.Errorf("creation response carried no route identifier")
	}

	c.logger.Info().
		Str("route_id", routeID).
		Str("organization_id", organizationID).
		Msg("route created")

	return routeID, nil
}

// List fetches all routes for the organization.
func (c *Client) List(ctx context.Context, organizationID string) ([]SavedRoute, error) {
	if organizationID == "" {
		return nil, ErrMissingOrganization
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/routes", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(OrganizationHeader, organizationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.backendError(resp)
	}

	var routes []SavedRoute
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		return nil, fmt.Errorf("decoding routes: %w", err)
	}
	return routes, nil
}

// Get fetches one route and cleans every embedded coordinate before
// returning it. Points the validator rejects are dropped rather than
// corrupting the polyline with zeroed coordinates.
func (c *Client) Get(ctx context.Context, organizationID, routeUUID string) (*SavedRoute, error) {
	if organizationID == "" {
		return nil, ErrMissingOrganization
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/routes/"+routeUUID, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(OrganizationHeader, organizationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRouteNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.backendError(resp)
	}

	var route SavedRoute
	if err := json.NewDecoder(resp.Body).Decode(&route); err != nil {
		return nil, fmt.Errorf("decoding route: %w", err)
	}

	cleanSavedRoute(&route)
	return &route, nil
}

// AssignDriver assigns an organization member to a route, forwarding the
// caller's Authorization token alongside the tenant header.
func (c *Client) AssignDriver(ctx context.Context, organizationID, authorization, routeUUID, membershipUUID string) error {
	if organizationID == "" {
		return ErrMissingOrganization
	}

	url := fmt.Sprintf("%s/route-drivers/assign/%s/%s", c.baseURL, routeUUID, membershipUUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(OrganizationHeader, organizationID)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.backendError(resp)
	}
	return nil
}

// BackendError carries a non-2xx backend response for status pass-through.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("order backend returned status %d: %s", e.Status, e.Message)
}

func (c *Client) backendError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	message := body.Error
	if message == "" {
		message = body.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	c.logger.Warn().
		Int("status", resp.StatusCode).
		Str("message", message).
		Msg("order backend error response")

	return &BackendError{Status: resp.StatusCode, Message: message}
}

// ExtractRouteID pulls the route identifier out of a creation response.
// The backend's response shape has drifted across versions, so the lookup
// walks the known spellings in order: data.uuid, data.id, route_id, id, uuid.
func ExtractRouteID(raw map[string]any) string {
	if data, ok := raw["data"].(map[string]any); ok {
		if id := stringField(data, "uuid"); id != "" {
			return id
		}
		if id := stringField(data, "id"); id != "" {
			return id
		}
	}
	for _, key := range []string{"route_id", "id", "uuid"} {
		if id := stringField(raw, key); id != "" {
			return id
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// cleanSavedRoute runs every embedded coordinate through the validator.
func cleanSavedRoute(route *SavedRoute) {
	if route.Origin != nil {
		if cleaned, err := geo.ValidateAndClean(route.Origin.Lat, route.Origin.Lng); err == nil {
			route.Origin.Coordinate = cleaned
		}
	}
	if route.Destination != nil {
		if cleaned, err := geo.ValidateAndClean(route.Destination.Lat, route.Destination.Lng); err == nil {
			route.Destination.Coordinate = cleaned
		}
	}
	for i := range route.Waypoints {
		if cleaned, err := geo.ValidateAndClean(route.Waypoints[i].Lat, route.Waypoints[i].Lng); err == nil {
			route.Waypoints[i].Coordinate = cleaned
		}
	}

	points := route.Route[:0]
	for _, p := range route.Route {
		cleaned, err := geo.ValidateAndClean(p.Lat, p.Lon)
		if err != nil {
			continue
		}
		p.Lat = cleaned.Lat
		p.Lon = cleaned.Lng
		points = append(points, p)
	}
	route.Route = points
}
