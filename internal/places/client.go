// Package places wraps the Google Places API for address autocomplete and
// geocoded detail lookups. The dashboard's address fields use Autocomplete
// for suggestions and Details to resolve a picked suggestion into
// coordinates suitable for route optimization.
package places

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/fleetgate/fleetgate/internal/geo"
)

// Predefined errors.
var (
	// ErrMissingInput indicates an autocomplete call without query text.
	ErrMissingInput = errors.New("input text is required")
	// ErrMissingPlaceID indicates a details call without a place ID.
	ErrMissingPlaceID = errors.New("place id is required")
)

// Suggestion is one autocomplete hit, trimmed to what the dashboard renders.
type Suggestion struct {
	PlaceID       string `json:"place_id"`
	Description   string `json:"description"`
	MainText      string `json:"main_text"`
	SecondaryText string `json:"secondary_text"`
}

// Details is a resolved place with cleaned coordinates.
type Details struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	FormattedAddress string         `json:"formatted_address"`
	Location         geo.Coordinate `json:"location"`
}

// API is the subset of the Google Maps client the service uses.
type API interface {
	PlaceAutocomplete(ctx context.Context, r *maps.PlaceAutocompleteRequest) (maps.AutocompleteResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
}

// ClientConfig holds configuration for the places service.
type ClientConfig struct {
	// APIKey is the Google Maps API key. Required unless API is set.
	APIKey string

	// API overrides the Google client (used by tests).
	API API

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client exposes autocomplete and details lookups.
type Client struct {
	api    API
	logger zerolog.Logger
}

// NewClient creates a new places client.
func NewClient(cfg ClientConfig) (*Client, error) {
	api := cfg.API
	if api == nil {
		googleClient, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("creating maps client: %w", err)
		}
		api = googleClient
	}

	return &Client{api: api, logger: cfg.Logger}, nil
}

// Autocomplete returns address suggestions for the given input text. An
// optional session token groups keystrokes of one lookup for billing.
func (c *Client) Autocomplete(ctx context.Context, input, sessionToken string) ([]Suggestion, error) {
	if input == "" {
		return nil, ErrMissingInput
	}

	req := &maps.PlaceAutocompleteRequest{
		Input: input,
		Types: maps.AutocompletePlaceTypeGeocode,
	}
	if sessionToken != "" {
		// Session tokens are UUIDs; a malformed one is dropped rather than
		// failing the lookup, it only affects billing aggregation.
		if u, err := uuid.Parse(sessionToken); err == nil {
			req.SessionToken = maps.PlaceAutocompleteSessionToken(u)
		}
	}

	resp, err := c.api.PlaceAutocomplete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("place autocomplete: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		suggestions = append(suggestions, Suggestion{
			PlaceID:       p.PlaceID,
			Description:   p.Description,
			MainText:      p.StructuredFormatting.MainText,
			SecondaryText: p.StructuredFormatting.SecondaryText,
		})
	}
	return suggestions, nil
}

// ResolveDetails resolves a place ID into a named, geocoded location. The
// returned coordinate goes through the same cleaning as user input so that
// downstream optimization requests never see more than 6 decimals.
func (c *Client) ResolveDetails(ctx context.Context, placeID string) (*Details, error) {
	if placeID == "" {
		return nil, ErrMissingPlaceID
	}

	result, err := c.api.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskPlaceID,
			maps.PlaceDetailsFieldMaskName,
			maps.PlaceDetailsFieldMaskFormattedAddress,
			maps.PlaceDetailsFieldMaskGeometryLocation,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("place details: %w", err)
	}

	location, err := geo.ValidateAndClean(result.Geometry.Location.Lat, result.Geometry.Location.Lng)
	if err != nil {
		return nil, fmt.Errorf("place %s has unusable coordinates: %w", placeID, err)
	}

	return &Details{
		PlaceID:          result.PlaceID,
		Name:             result.Name,
		FormattedAddress: result.FormattedAddress,
		Location:         location,
	}, nil
}
