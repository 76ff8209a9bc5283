package handler

import (
	"errors"
	"net/http"

	"github.com/fleetgate/fleetgate/internal/api/models"
	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/optimization"
	"github.com/fleetgate/fleetgate/internal/optimization/engine"
)

// OptimizeHandler handles route optimization endpoints.
type OptimizeHandler struct {
	service *optimization.Service
}

// NewOptimizeHandler creates a new OptimizeHandler.
func NewOptimizeHandler(service *optimization.Service) *OptimizeHandler {
	return &OptimizeHandler{service: service}
}

// OptimizeTraffic handles POST /v1/route-optimization/traffic.
func (h *OptimizeHandler) OptimizeTraffic(w http.ResponseWriter, r *http.Request) {
	var req optimization.TrafficRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.OptimizeTraffic(r.Context(), req)
	if err != nil {
		writeOptimizationError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.OK(result))
}

// OptimizeMultiDelivery handles POST /v1/route-optimization/multi-delivery.
func (h *OptimizeHandler) OptimizeMultiDelivery(w http.ResponseWriter, r *http.Request) {
	var req optimization.MultiDeliveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.OptimizeMultiDelivery(r.Context(), req)
	if err != nil {
		writeOptimizationError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.OK(result))
}

// RouteSimple handles POST /v1/route-optimization/simple.
func (h *OptimizeHandler) RouteSimple(w http.ResponseWriter, r *http.Request) {
	var req optimization.SimpleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.RouteSimple(r.Context(), req)
	if err != nil {
		writeOptimizationError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.OK(result))
}

// writeOptimizationError maps optimization failures onto the API error
// contract: invalid input is a 400 naming the field, an unreachable engine
// is a 503, and any answer the engine actually gave passes through with its
// own status code and message. The 503-vs-pass-through split matters to
// operators: a 503 means fix connectivity, a relayed 5xx means the engine
// itself failed.
func writeOptimizationError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *optimization.ValidationError
	if errors.As(err, &verr) {
		response.BadRequest(w, r, verr.Message, []models.FieldError{
			{Field: verr.Field, Message: verr.Message},
		})
		return
	}

	if engine.IsUnavailable(err) {
		response.ServiceUnavailable(w, r, "route optimization engine is unavailable")
		return
	}

	if errors.Is(err, optimization.ErrNoRouteFound) {
		response.NotFound(w, r, "no route found for the given locations")
		return
	}

	var oerr *optimization.Error
	if errors.As(err, &oerr) && oerr.Status >= 400 {
		traceID := middlewareRequestID(r)
		problemType := models.ProblemTypeValidation
		title := "Optimization rejected"
		if oerr.Status >= 500 {
			problemType = models.ProblemTypeInternal
			title = "Optimization engine error"
		}
		problem := models.NewProblem(problemType, title, oerr.Status, traceID)
		problem.Detail = oerr.Message
		response.Error(w, r, problem)
		return
	}

	response.InternalError(w, r, "route optimization failed")
}
