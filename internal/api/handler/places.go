package handler

import (
	"errors"
	"net/http"

	"github.com/fleetgate/fleetgate/internal/api/models"
	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/places"
)

// PlacesHandler handles address lookup endpoints.
type PlacesHandler struct {
	client *places.Client
}

// NewPlacesHandler creates a new PlacesHandler.
func NewPlacesHandler(client *places.Client) *PlacesHandler {
	return &PlacesHandler{client: client}
}

// Autocomplete handles GET /v1/places/autocomplete?input=...&session=...
func (h *PlacesHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("input")
	session := r.URL.Query().Get("session")

	suggestions, err := h.client.Autocomplete(r.Context(), input, session)
	if err != nil {
		if errors.Is(err, places.ErrMissingInput) {
			response.BadRequest(w, r, "input query parameter is required", []models.FieldError{
				{Field: "input", Message: "required"},
			})
			return
		}
		response.ServiceUnavailable(w, r, "place lookup is unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, suggestions)
}

// Details handles GET /v1/places/{placeId}.
func (h *PlacesHandler) Details(w http.ResponseWriter, r *http.Request) {
	placeID := r.URL.Query().Get("place_id")
	if placeID == "" {
		response.BadRequest(w, r, "place_id query parameter is required", []models.FieldError{
			{Field: "place_id", Message: "required"},
		})
		return
	}

	details, err := h.client.ResolveDetails(r.Context(), placeID)
	if err != nil {
		response.ServiceUnavailable(w, r, "place lookup is unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, details)
}
