package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgate/fleetgate/internal/api/models"
	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/routes"
)

// RoutesHandler handles route persistence endpoints.
type RoutesHandler struct {
	service *routes.Service
}

// NewRoutesHandler creates a new RoutesHandler.
func NewRoutesHandler(service *routes.Service) *RoutesHandler {
	return &RoutesHandler{service: service}
}

// Create handles POST /v1/routes. The tenant always comes from the
// verified token, never from the request body.
func (h *RoutesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in routes.CreationInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.OrganizationID = GetOrganizationID(r.Context())

	result, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeRouteError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/routes/"+result.RouteID, models.OK(result))
}

// List handles GET /v1/routes.
func (h *RoutesHandler) List(w http.ResponseWriter, r *http.Request) {
	saved, err := h.service.List(r.Context(), GetOrganizationID(r.Context()))
	if err != nil {
		writeRouteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, saved)
}

// Get handles GET /v1/routes/{routeId}.
func (h *RoutesHandler) Get(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")

	route, err := h.service.Get(r.Context(), GetOrganizationID(r.Context()), routeID)
	if err != nil {
		writeRouteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, route)
}

// AssignDriver handles POST /v1/routes/{routeId}/drivers/{membershipId}.
func (h *RoutesHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	membershipID := chi.URLParam(r, "membershipId")

	err := h.service.AssignDriver(
		r.Context(),
		GetOrganizationID(r.Context()),
		GetAuthorization(r.Context()),
		routeID,
		membershipID,
	)
	if err != nil {
		writeRouteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.OK(nil))
}

func writeRouteError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *routes.ValidationError
	if errors.As(err, &verr) {
		response.BadRequest(w, r, verr.Message, []models.FieldError{
			{Field: verr.Field, Message: verr.Message},
		})
		return
	}

	if errors.Is(err, routes.ErrRouteNotFound) {
		response.NotFound(w, r, "route not found")
		return
	}
	if errors.Is(err, routes.ErrMissingOrganization) {
		response.Unauthorized(w, r, "no organization on this session")
		return
	}
	if errors.Is(err, routes.ErrBackendUnavailable) {
		response.ServiceUnavailable(w, r, "order backend is unavailable")
		return
	}

	var berr *routes.BackendError
	if errors.As(err, &berr) {
		traceID := middlewareRequestID(r)
		problem := models.NewProblem(models.ProblemTypeConflict, "Backend rejected request", berr.Status, traceID)
		problem.Detail = berr.Message
		response.Error(w, r, problem)
		return
	}

	response.InternalError(w, r, "route operation failed")
}
