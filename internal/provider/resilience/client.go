// Package resilience wraps outbound HTTP calls to upstream services with
// timeouts, bounded retries, and circuit breakers. Every upstream the gateway
// proxies to (routing engine, order backend, tracking backend) goes through a
// Client from this package.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Errors returned by resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects the call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// BreakerConfig holds circuit breaker settings for an upstream.
type BreakerConfig struct {
	// Name identifies the breaker in logs and health reporting.
	Name string

	// MaxRequests allowed through while half-open. Default: 1.
	MaxRequests uint32

	// Timeout is how long the breaker stays open before probing. Default: 60s.
	Timeout time.Duration

	// ReadyToTrip decides when to open the breaker.
	// Defaults to 5+ requests with a failure rate of at least 50%.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is invoked on breaker state transitions.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns the default breaker settings for an upstream.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: defaultReadyToTrip,
	}
}

func defaultReadyToTrip(counts gobreaker.Counts) bool {
	ratio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && ratio >= 0.5
}

// ClientConfig holds configuration for a resilient HTTP client.
type ClientConfig struct {
	// Name identifies the upstream this client talks to.
	Name string

	// Timeout bounds each individual HTTP attempt. Default: 15s.
	Timeout time.Duration

	// MaxRetries bounds retry attempts after the first call. Default: 3.
	MaxRetries uint64

	// InitialInterval is the first retry backoff delay. Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff delay. Default: 5s.
	MaxInterval time.Duration

	// Breaker overrides the default circuit breaker settings.
	Breaker *BreakerConfig

	// Registry receives success/failure reports for health tracking.
	Registry *Registry
}

// DefaultClientConfig returns defaults for the named upstream.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         15 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         &breaker,
	}
}

// Client is an HTTP client with circuit breaker and retry behavior.
// A hung upstream can stall a request for at most Timeout per attempt;
// the wrapping context still applies across the whole operation.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	config     ClientConfig
}

// NewClient creates a resilient HTTP client for one upstream.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breakerCfg := cfg.Breaker
	if breakerCfg == nil {
		def := DefaultBreakerConfig(cfg.Name)
		breakerCfg = &def
	}

	settings := gobreaker.Settings{
		Name:        breakerCfg.Name,
		MaxRequests: breakerCfg.MaxRequests,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: breakerCfg.ReadyToTrip,
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = defaultReadyToTrip
	}
	if breakerCfg.OnStateChange != nil {
		settings.OnStateChange = breakerCfg.OnStateChange
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker[*http.Response](settings),
		registry:   cfg.Registry,
		config:     cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Do executes the request, retrying transient failures (network errors and
// 5xx responses) with exponential backoff. If retries are exhausted on a 5xx,
// the last response is returned so callers can relay the upstream status.
// Returns ErrCircuitOpen without touching the network when the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries bounded by MaxRetries, not elapsed time

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, doErr := c.httpClient.Do(req.Clone(ctx))
			if doErr != nil {
				return nil, doErr
			}
			// 5xx counts as a failure so the breaker sees upstream outages.
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		c.recordFailure(err)
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return lastResp, nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.config.Name, err)
	}
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the current circuit breaker counters.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError represents an upstream HTTP 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "upstream error: " + http.StatusText(e.StatusCode)
}

// IsContextError reports whether err stems from context cancellation or expiry.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
