// Package main provides the entrypoint for the FleetGate API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetgate/fleetgate/internal/api"
	"github.com/fleetgate/fleetgate/internal/api/middleware"
	"github.com/fleetgate/fleetgate/internal/auth"
	"github.com/fleetgate/fleetgate/internal/database"
	"github.com/fleetgate/fleetgate/internal/optimization"
	"github.com/fleetgate/fleetgate/internal/optimization/engine"
	"github.com/fleetgate/fleetgate/internal/orders"
	"github.com/fleetgate/fleetgate/internal/organizations"
	"github.com/fleetgate/fleetgate/internal/places"
	"github.com/fleetgate/fleetgate/internal/provider/resilience"
	"github.com/fleetgate/fleetgate/internal/routes"
	"github.com/fleetgate/fleetgate/internal/telemetry"
	"github.com/fleetgate/fleetgate/internal/tracking"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fleetgate-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting FleetGate API")

	// Get configuration from environment
	port := envOrDefault("APP_PORT", "8080")
	env := envOrDefault("APP_ENV", "development")
	otlpEndpoint := envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	apiBaseURL := envOrDefault("API_BASE_URL", "http://localhost:8000/api")
	backendBaseURL := envOrDefault("EXTERNAL_API_BASE_URL", "http://localhost:8000/api")
	engineBaseURL := envOrDefault("FASTAPI_BASE_URL", "http://localhost:8001")
	trackingURL := envOrDefault("TRACKING_WS_URL", "ws://localhost:8002/ws")

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database (driver position snapshots)
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Upstream health registry
	registry := resilience.NewRegistry()

	// Initialize JWT validation (tokens are issued by the main API)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     envOrDefault("JWT_ISSUER", "https://api.fleetgate.dev"),
		Audience:   envOrDefault("JWT_AUDIENCE", "fleetgate-dashboard"),
	})

	authClient := auth.NewClient(auth.ClientConfig{
		BaseURL:  apiBaseURL,
		Registry: registry,
		Logger:   log,
	})

	// Route optimization engine
	engineClient := engine.NewClient(engine.ClientConfig{
		BaseURL:  engineBaseURL,
		Registry: registry,
		Logger:   log,
	})
	engineMetrics, err := middleware.NewProviderMetrics(engine.ProviderName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine metrics")
	}
	optService := optimization.NewService(optimization.ServiceConfig{
		Provider: engineClient,
		Logger:   log,
		Metrics:  engineMetrics,
	})
	log.Info().Str("engine", engineBaseURL).Msg("optimization service initialized")

	// Order backend clients
	routesClient := routes.NewClient(routes.ClientConfig{
		BaseURL:  backendBaseURL,
		Registry: registry,
		Logger:   log,
	})
	routesService := routes.NewService(routesClient, log)

	ordersClient := orders.NewClient(orders.ClientConfig{
		BaseURL:  backendBaseURL,
		Registry: registry,
		Logger:   log,
	})
	orgsClient := organizations.NewClient(organizations.ClientConfig{
		BaseURL:  backendBaseURL,
		Registry: registry,
		Logger:   log,
	})

	// Google Places
	placesClient, err := places.NewClient(places.ClientConfig{
		APIKey: os.Getenv("GOOGLE_MAPS_API"),
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize places client")
	}

	// Driver tracking: one gateway-side connection feeds every dashboard
	// session. Transmissions fan out to Pub/Sub when configured.
	feed := tracking.NewFeed()
	var publisher tracking.Publisher
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		pubsubPublisher, pubErr := tracking.NewPubSubPublisher(ctx, tracking.PubSubPublisherConfig{
			ProjectID: projectID,
			TopicName: envOrDefault("PUBSUB_TOPIC", "driver-transmissions"),
			Logger:    log,
		})
		if pubErr != nil {
			log.Fatal().Err(pubErr).Msg("failed to initialize transmission publisher")
		}
		defer pubsubPublisher.Close()
		publisher = pubsubPublisher
		log.Info().Msg("transmission publisher initialized")
	}

	trackingClient := tracking.NewClient(tracking.ClientConfig{
		URL:            trackingURL,
		UserID:         envOrDefault("TRACKING_USER_ID", "fleetgate-gateway"),
		OrganizationID: os.Getenv("TRACKING_ORGANIZATION_ID"),
		Feed:           feed,
		Publisher:      publisher,
		Logger:         log,
	})
	defer trackingClient.Close()
	if err := trackingClient.Connect(ctx); err != nil {
		// Not fatal: handlers reconnect opportunistically.
		log.Warn().Err(err).Msg("initial tracking connection failed")
	}

	snapshots := tracking.NewSnapshotRepository(pool)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		JWTService:         jwtService,
		AuthClient:         authClient,
		Optimization:       optService,
		Routes:             routesService,
		Orders:             ordersClient,
		Orgs:               orgsClient,
		Places:             placesClient,
		Registry:           registry,
		DB:                 pool,
		TrackingFeed:       feed,
		TrackingConnection: trackingClient,
		TrackingStatus:     trackingClient,
		Snapshots:          snapshots,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
