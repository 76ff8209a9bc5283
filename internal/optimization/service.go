package optimization

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/geo"
)

// ServiceConfig holds configuration for the optimization service.
type ServiceConfig struct {
	// Provider is the routing engine client.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long simple-route results are cached (default: 2 minutes).
	// Traffic conditions go stale quickly, so the TTL is short.
	CacheTTL time.Duration

	// CacheGridSize is the cache grid cell size in degrees (default: 0.001 ~ 110m).
	// Endpoints within the same cell share cached results.
	CacheGridSize float64

	// Metrics records cache hit rates (optional).
	Metrics CacheMetrics
}

// CacheMetrics records cache effectiveness for an upstream provider.
type CacheMetrics interface {
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// Service validates and normalizes optimization requests, then forwards them
// to the engine. Simple two-point routes with an immediate departure are
// cached briefly on a coordinate grid.
type Service struct {
	provider      Provider
	logger        zerolog.Logger
	cacheTTL      time.Duration
	cacheGridSize float64
	metrics       CacheMetrics

	mu    sync.RWMutex
	cache map[string]*cachedSimple
}

type cachedSimple struct {
	result    *SimpleResult
	expiresAt time.Time
}

// NewService creates a new optimization service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 2 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.001
	}

	return &Service{
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		cacheTTL:      cacheTTL,
		cacheGridSize: cacheGridSize,
		metrics:       cfg.Metrics,
		cache:         make(map[string]*cachedSimple),
	}
}

// ProviderName returns the name of the underlying engine provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// OptimizeTraffic validates the request, applies defaults, and forwards it.
// Every embedded coordinate is validated; a single invalid coordinate aborts
// the whole request with an error naming the offending entity.
func (s *Service) OptimizeTraffic(ctx context.Context, req TrafficRequest) (*Result, error) {
	if req.Origin == nil {
		return nil, &ValidationError{Field: "origin", Message: "origin is required"}
	}
	if req.Destination == nil {
		return nil, &ValidationError{Field: "destination", Message: "destination is required"}
	}
	if len(req.Waypoints) == 0 {
		return nil, &ValidationError{Field: "waypoints", Message: "at least one waypoint is required"}
	}

	if err := cleanLocation(req.Origin, "origin"); err != nil {
		return nil, err
	}
	if err := cleanLocation(req.Destination, "destination"); err != nil {
		return nil, err
	}
	for i := range req.Waypoints {
		if err := cleanLocation(&req.Waypoints[i], waypointLabel(i, req.Waypoints[i].Name)); err != nil {
			return nil, err
		}
	}

	applyTrafficDefaults(&req)

	s.logger.Debug().
		Int("waypoints", len(req.Waypoints)).
		Str("departure_time", req.DepartureTime).
		Str("travel_mode", req.TravelMode).
		Msg("forwarding traffic optimization request")

	return s.provider.OptimizeTraffic(ctx, req)
}

// OptimizeMultiDelivery validates a multi-order request and forwards it.
func (s *Service) OptimizeMultiDelivery(ctx context.Context, req MultiDeliveryRequest) (*Result, error) {
	if req.DriverStartLocation == nil {
		return nil, &ValidationError{Field: "driver_start_location", Message: "driver start location is required"}
	}
	if req.DriverEndLocation == nil {
		return nil, &ValidationError{Field: "driver_end_location", Message: "driver end location is required"}
	}
	if len(req.DeliveryOrders) == 0 {
		return nil, &ValidationError{Field: "delivery_orders", Message: "at least one delivery order is required"}
	}

	if err := cleanLocation(req.DriverStartLocation, "driver_start_location"); err != nil {
		return nil, err
	}
	if err := cleanLocation(req.DriverEndLocation, "driver_end_location"); err != nil {
		return nil, err
	}
	for i := range req.DeliveryOrders {
		order := &req.DeliveryOrders[i]
		label := orderLabel(i, order.OrderNumber)
		if err := cleanLocation(&order.Origin, label+" origin"); err != nil {
			return nil, err
		}
		if err := cleanLocation(&order.Destination, label+" destination"); err != nil {
			return nil, err
		}
	}

	applyMultiDeliveryDefaults(&req)

	s.logger.Debug().
		Int("orders", len(req.DeliveryOrders)).
		Int("max_orders_per_trip", req.MaxOrdersPerTrip).
		Msg("forwarding multi-delivery optimization request")

	return s.provider.OptimizeMultiDelivery(ctx, req)
}

// RouteSimple validates a two-point request and forwards it, serving a
// cached result when an identical grid-quantized request is fresh.
func (s *Service) RouteSimple(ctx context.Context, req SimpleRequest) (*SimpleResult, error) {
	if req.Pickup == nil {
		return nil, &ValidationError{Field: "pickup", Message: "pickup location is required"}
	}
	if req.Delivery == nil {
		return nil, &ValidationError{Field: "delivery", Message: "delivery location is required"}
	}
	if err := cleanLocation(req.Pickup, "pickup"); err != nil {
		return nil, err
	}
	if err := cleanLocation(req.Delivery, "delivery"); err != nil {
		return nil, err
	}

	cacheKey := s.cacheKey(req)

	s.mu.RLock()
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().Str("cache_key", cacheKey).Msg("simple route cache hit")
		if s.metrics != nil {
			s.metrics.RecordCacheHit(s.provider.Name(), "route-simple")
		}
		return cached.result, nil
	}
	s.mu.RUnlock()

	if s.metrics != nil {
		s.metrics.RecordCacheMiss(s.provider.Name(), "route-simple")
	}

	result, err := s.provider.RouteSimple(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[cacheKey] = &cachedSimple{
		result:    result,
		expiresAt: time.Now().Add(s.cacheTTL),
	}
	// Opportunistic cleanup; the cache stays small at this request rate.
	for key, cached := range s.cache {
		if time.Now().After(cached.expiresAt) {
			delete(s.cache, key)
		}
	}
	s.mu.Unlock()

	return result, nil
}

// InvalidateCache clears all cached simple-route results.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedSimple)
}

// cacheKey quantizes both endpoints onto the cache grid.
func (s *Service) cacheKey(req SimpleRequest) string {
	grid := func(v float64) float64 {
		return math.Floor(v/s.cacheGridSize) * s.cacheGridSize
	}
	return fmt.Sprintf("%.3f,%.3f:%.3f,%.3f",
		grid(req.Pickup.Lat), grid(req.Pickup.Lng),
		grid(req.Delivery.Lat), grid(req.Delivery.Lng),
	)
}

// cleanLocation validates and cleans a location's coordinate in place,
// wrapping failures with the entity label for the caller's error message.
func cleanLocation(loc *Location, label string) error {
	lat, lng := loc.latLng()
	cleaned, err := geo.ValidateAndClean(lat, lng)
	if err != nil {
		return &ValidationError{
			Field:   label,
			Message: fmt.Sprintf("invalid coordinates for %s: %v", label, err),
		}
	}
	loc.Coordinate = cleaned
	return nil
}

func waypointLabel(i int, name string) string {
	if name != "" {
		return fmt.Sprintf("waypoint %d (%s)", i+1, name)
	}
	return fmt.Sprintf("waypoint %d", i+1)
}

func orderLabel(i int, orderNumber string) string {
	if orderNumber != "" {
		return fmt.Sprintf("order %s", orderNumber)
	}
	return fmt.Sprintf("order %d", i+1)
}

func applyTrafficDefaults(req *TrafficRequest) {
	if req.IncludeTraffic == nil {
		req.IncludeTraffic = boolPtr(true)
	}
	if req.Alternatives == nil {
		req.Alternatives = boolPtr(true)
	}
	if req.DepartureTime == "" {
		req.DepartureTime = DefaultDepartureTime
	}
	if req.TravelMode == "" {
		req.TravelMode = DefaultTravelMode
	}
	if req.RouteType == "" {
		req.RouteType = DefaultRouteType
	}
}

func applyMultiDeliveryDefaults(req *MultiDeliveryRequest) {
	if req.IncludeTraffic == nil {
		req.IncludeTraffic = boolPtr(true)
	}
	if req.Alternatives == nil {
		req.Alternatives = boolPtr(true)
	}
	if req.DepartureTime == "" {
		req.DepartureTime = DefaultDepartureTime
	}
	if req.TravelMode == "" {
		req.TravelMode = DefaultTravelMode
	}
	if req.RouteType == "" {
		req.RouteType = DefaultRouteType
	}
	if req.MaxOrdersPerTrip <= 0 {
		req.MaxOrdersPerTrip = DefaultMaxOrdersPerTrip
	}
}

func boolPtr(b bool) *bool {
	return &b
}
