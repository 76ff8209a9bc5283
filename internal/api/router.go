// Package api provides the HTTP API for FleetGate.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/api/handler"
	"github.com/fleetgate/fleetgate/internal/api/middleware"
	"github.com/fleetgate/fleetgate/internal/auth"
	"github.com/fleetgate/fleetgate/internal/optimization"
	"github.com/fleetgate/fleetgate/internal/orders"
	"github.com/fleetgate/fleetgate/internal/organizations"
	"github.com/fleetgate/fleetgate/internal/places"
	"github.com/fleetgate/fleetgate/internal/provider/resilience"
	"github.com/fleetgate/fleetgate/internal/routes"
	"github.com/fleetgate/fleetgate/internal/tracking"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger

	ServiceName string
	Metrics     *middleware.Metrics

	JWTService   *auth.JWTService
	AuthClient   *auth.Client
	Optimization *optimization.Service
	Routes       *routes.Service
	Orders       *orders.Client
	Orgs         *organizations.Client
	Places       *places.Client

	Registry *resilience.Registry
	DB       handler.Pinger

	TrackingFeed       *tracking.Feed
	TrackingConnection handler.TrackingConnection
	TrackingStatus     handler.TrackingStatus
	Snapshots          handler.SnapshotReader
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "fleetgate-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		DB:        cfg.DB,
		Tracking:  cfg.TrackingStatus,
	})
	authHandler := handler.NewAuthHandler(cfg.AuthClient)
	optimizeHandler := handler.NewOptimizeHandler(cfg.Optimization)
	routesHandler := handler.NewRoutesHandler(cfg.Routes)
	ordersHandler := handler.NewOrdersHandler(cfg.Orders)
	orgsHandler := handler.NewOrganizationsHandler(cfg.Orgs)
	placesHandler := handler.NewPlacesHandler(cfg.Places)
	trackingHandler := handler.NewTrackingHandler(cfg.TrackingFeed, cfg.TrackingConnection, cfg.Snapshots)

	authMiddleware := middleware.Auth(cfg.JWTService)

	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Auth endpoints (public) - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit)
			r.Post("/login", authHandler.RequestCode)
			r.Post("/verify", authHandler.VerifyCode)
			r.Post("/refresh", authHandler.Refresh)
			r.With(authMiddleware).Post("/logout", authHandler.Logout)
			r.With(authMiddleware).Get("/profile", authHandler.Profile)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Organization signup (public) - strict rate limiting
		r.With(authRateLimit).Post("/organizations/register", orgsHandler.Register)

		// Route optimization - expensive compute, strict rate limiting
		r.Route("/route-optimization", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(expensiveRateLimit)
			r.Post("/traffic", optimizeHandler.OptimizeTraffic)
			r.Post("/multi-delivery", optimizeHandler.OptimizeMultiDelivery)
			r.Post("/simple", optimizeHandler.RouteSimple)
		})

		// Route persistence
		r.Route("/routes", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/", routesHandler.List)
			r.Post("/", routesHandler.Create)
			r.Route("/{routeId}", func(r chi.Router) {
				r.Get("/", routesHandler.Get)
				r.Post("/drivers/{membershipId}", routesHandler.AssignDriver)
			})
		})

		// Order proxy
		r.Route("/orders", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/", ordersHandler.List)
			r.Post("/", ordersHandler.Create)
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordersHandler.Get)
				r.Put("/", ordersHandler.Update)
				r.Patch("/", ordersHandler.Patch)
				r.Delete("/", ordersHandler.Delete)
			})
		})

		// Organization management
		r.Route("/organizations/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/", orgsHandler.Get)
			r.Put("/", orgsHandler.Update)
			r.Route("/members", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMembers)
				r.Post("/", orgsHandler.InviteMember)
				r.Delete("/{membershipId}", orgsHandler.RemoveMember)
			})
		})

		// Address lookup
		r.Route("/places", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/autocomplete", placesHandler.Autocomplete)
			r.Get("/details", placesHandler.Details)
		})

		// Live driver tracking
		r.Route("/tracking", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/drivers", trackingHandler.ListDrivers)
			r.Get("/drivers/{driverId}", trackingHandler.GetDriver)
			r.Get("/snapshots", trackingHandler.ListSnapshots)
			r.Post("/routes/{routeId}/join", trackingHandler.JoinRoute)
			r.Post("/routes/{routeId}/leave", trackingHandler.LeaveRoute)
		})
	})

	return r
}
