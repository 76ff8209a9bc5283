package routes

import (
	"context"

	"github.com/rs/zerolog"
)

// Service composes payload construction with backend submission.
type Service struct {
	client *Client
	logger zerolog.Logger
}

// NewService creates a route service backed by the given client.
func NewService(client *Client, logger zerolog.Logger) *Service {
	return &Service{
		client: client,
		logger: logger.With().Str("component", "routes").Logger(),
	}
}

// Create builds the creation payload from the user's selections and submits
// it to the order backend, returning the new route's identifier together
// with the payload that was sent.
func (s *Service) Create(ctx context.Context, in CreationInput) (*CreationResult, error) {
	payload, err := BuildCreationPayload(in)
	if err != nil {
		return nil, err
	}

	routeID, err := s.client.Create(ctx, in.OrganizationID, payload)
	if err != nil {
		return nil, err
	}

	return &CreationResult{RouteID: routeID, Payload: payload}, nil
}

// List returns all routes for the organization.
func (s *Service) List(ctx context.Context, organizationID string) ([]SavedRoute, error) {
	return s.client.List(ctx, organizationID)
}

// Get returns a single route with its coordinates cleaned.
func (s *Service) Get(ctx context.Context, organizationID, routeUUID string) (*SavedRoute, error) {
	return s.client.Get(ctx, organizationID, routeUUID)
}

// AssignDriver assigns an organization member to a route.
func (s *Service) AssignDriver(ctx context.Context, organizationID, authorization, routeUUID, membershipUUID string) error {
	return s.client.AssignDriver(ctx, organizationID, authorization, routeUUID, membershipUUID)
}
