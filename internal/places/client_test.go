package places

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

type fakeAPI struct {
	autocompleteResp maps.AutocompleteResponse
	detailsResp      maps.PlaceDetailsResult
	lastAutocomplete *maps.PlaceAutocompleteRequest
	lastDetails      *maps.PlaceDetailsRequest
}

func (f *fakeAPI) PlaceAutocomplete(ctx context.Context, r *maps.PlaceAutocompleteRequest) (maps.AutocompleteResponse, error) {
	f.lastAutocomplete = r
	return f.autocompleteResp, nil
}

func (f *fakeAPI) PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error) {
	f.lastDetails = r
	return f.detailsResp, nil
}

func newTestClient(t *testing.T, api API) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{API: api, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return client
}

func TestAutocompleteMapsPredictions(t *testing.T) {
	api := &fakeAPI{
		autocompleteResp: maps.AutocompleteResponse{
			Predictions: []maps.AutocompletePrediction{
				{
					PlaceID:     "place-1",
					Description: "Damrak 1, Amsterdam",
					StructuredFormatting: maps.AutocompleteStructuredFormatting{
						MainText:      "Damrak 1",
						SecondaryText: "Amsterdam",
					},
				},
			},
		},
	}
	client := newTestClient(t, api)

	suggestions, err := client.Autocomplete(context.Background(), "Damrak", "")
	require.NoError(t, err)

	require.Len(t, suggestions, 1)
	assert.Equal(t, "place-1", suggestions[0].PlaceID)
	assert.Equal(t, "Damrak 1", suggestions[0].MainText)
	assert.Equal(t, "Amsterdam", suggestions[0].SecondaryText)
	assert.Equal(t, "Damrak", api.lastAutocomplete.Input)
}

func TestAutocompleteForwardsSessionToken(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	session := uuid.New()
	_, err := client.Autocomplete(context.Background(), "Damrak", session.String())
	require.NoError(t, err)
	assert.Equal(t, maps.PlaceAutocompleteSessionToken(session), api.lastAutocomplete.SessionToken)
}

func TestAutocompleteIgnoresMalformedSessionToken(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	_, err := client.Autocomplete(context.Background(), "Damrak", "not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, maps.PlaceAutocompleteSessionToken(uuid.Nil), api.lastAutocomplete.SessionToken)
}

func TestAutocompleteRequiresInput(t *testing.T) {
	client := newTestClient(t, &fakeAPI{})
	_, err := client.Autocomplete(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestResolveDetailsCleansCoordinates(t *testing.T) {
	api := &fakeAPI{
		detailsResp: maps.PlaceDetailsResult{
			PlaceID:          "place-1",
			Name:             "Central Station",
			FormattedAddress: "Stationsplein, Amsterdam",
			Geometry: maps.AddressGeometry{
				Location: maps.LatLng{Lat: 52.3791283456, Lng: 4.9003001234},
			},
		},
	}
	client := newTestClient(t, api)

	details, err := client.ResolveDetails(context.Background(), "place-1")
	require.NoError(t, err)

	assert.Equal(t, "Central Station", details.Name)
	assert.Equal(t, 52.379128, details.Location.Lat)
	assert.Equal(t, 4.900300, details.Location.Lng)
	assert.Equal(t, "place-1", api.lastDetails.PlaceID)
}

func TestResolveDetailsRequiresPlaceID(t *testing.T) {
	client := newTestClient(t, &fakeAPI{})
	_, err := client.ResolveDetails(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingPlaceID)
}
