// Package engine provides the HTTP client for the external route
// optimization engine (a FastAPI service configured via FASTAPI_BASE_URL).
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/optimization"
	"github.com/fleetgate/fleetgate/internal/provider/resilience"
)

const (
	// ProviderName identifies the optimization engine upstream.
	ProviderName = "route-engine"

	// DefaultTimeout bounds each optimization call. Multi-delivery
	// optimization is the slowest operation the gateway forwards.
	DefaultTimeout = 20 * time.Second
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the engine client.
type ClientConfig struct {
	// BaseURL is the engine base URL (required).
	BaseURL string

	// HTTPClient overrides the default resilient client (optional).
	HTTPClient HTTPDoer

	// Timeout is the per-request timeout (optional, defaults to 20s).
	Timeout time.Duration

	// Registry tracks upstream health (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a route optimization engine client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new engine client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// OptimizeTraffic forwards a traffic-aware optimization request.
func (c *Client) OptimizeTraffic(ctx context.Context, req optimization.TrafficRequest) (*optimization.Result, error) {
	var result optimization.Result
	if err := c.post(ctx, "/optimize-route", req, &result); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("alternatives", len(result.AlternativeRoutes)).
		Msg("received traffic optimization result")

	return &result, nil
}

// OptimizeMultiDelivery forwards a multi-order optimization request.
func (c *Client) OptimizeMultiDelivery(ctx context.Context, req optimization.MultiDeliveryRequest) (*optimization.Result, error) {
	var result optimization.Result
	if err := c.post(ctx, "/optimize-multi-delivery", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RouteSimple forwards a two-point route request.
func (c *Client) RouteSimple(ctx context.Context, req optimization.SimpleRequest) (*optimization.SimpleResult, error) {
	var result optimization.SimpleResult
	if err := c.post(ctx, "/route-simple", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post executes a JSON POST against the engine and decodes the response.
// Failure modes are kept distinct: a non-2xx engine response keeps its
// upstream status for the caller to relay, a network-level failure maps to
// ErrEngineUnavailable so handlers can answer 503.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if resilience.IsContextError(err) {
			return err
		}
		return &optimization.Error{
			Provider: ProviderName,
			Code:     "ENGINE_UNREACHABLE",
			Message:  "failed to connect to the optimization engine",
			Err:      optimization.ErrEngineUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding engine response: %w", err)
	}
	return nil
}

// engineError is the engine's error body. FastAPI reports validation and
// routing failures under "detail"; older deployments used "error".
type engineError struct {
	Detail  string `json:"detail,omitempty"`
	Message string `json:"error,omitempty"`
}

func (e engineError) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// errorFromResponse maps an engine error response to a domain error,
// preserving the upstream status code for pass-through.
func (c *Client) errorFromResponse(statusCode int, body []byte) error {
	var engErr engineError
	_ = json.Unmarshal(body, &engErr)

	message := engErr.text()
	if message == "" {
		message = fmt.Sprintf("optimization engine returned status %d", statusCode)
	}

	c.logger.Warn().
		Int("status", statusCode).
		Str("message", message).
		Msg("optimization engine error response")

	if statusCode == http.StatusNotFound {
		return &optimization.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Status:   statusCode,
			Message:  message,
			Err:      optimization.ErrNoRouteFound,
		}
	}

	// Any other non-2xx is an answer the engine actually gave: its status
	// and message pass through unchanged. Only network-level failures map
	// to ErrEngineUnavailable.
	return &optimization.Error{
		Provider: ProviderName,
		Code:     fmt.Sprintf("ENGINE_%d", statusCode),
		Status:   statusCode,
		Message:  message,
	}
}

// IsUnavailable reports whether err means the engine could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, optimization.ErrEngineUnavailable) || errors.Is(err, resilience.ErrCircuitOpen)
}
