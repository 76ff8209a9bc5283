package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/orders"
)

// OrdersHandler proxies order CRUD to the order backend.
type OrdersHandler struct {
	client *orders.Client
}

// NewOrdersHandler creates a new OrdersHandler.
func NewOrdersHandler(client *orders.Client) *OrdersHandler {
	return &OrdersHandler{client: client}
}

func (h *OrdersHandler) credentials(r *http.Request) orders.Credentials {
	return orders.Credentials{
		OrganizationID: GetOrganizationID(r.Context()),
		Authorization:  GetAuthorization(r.Context()),
	}
}

// List handles GET /v1/orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.List(r.Context(), h.credentials(r), r.URL.RawQuery)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Get handles GET /v1/orders/{orderId}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.Get(r.Context(), h.credentials(r), chi.URLParam(r, "orderId"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Create handles POST /v1/orders.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.Create(r.Context(), h.credentials(r), body)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Update handles PUT /v1/orders/{orderId}.
func (h *OrdersHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.Update(r.Context(), h.credentials(r), chi.URLParam(r, "orderId"), body)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Patch handles PATCH /v1/orders/{orderId}.
func (h *OrdersHandler) Patch(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.Patch(r.Context(), h.credentials(r), chi.URLParam(r, "orderId"), body)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Delete handles DELETE /v1/orders/{orderId}.
func (h *OrdersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.Delete(r.Context(), h.credentials(r), chi.URLParam(r, "orderId"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, orders.ErrBackendUnavailable) {
		response.ServiceUnavailable(w, r, "order backend is unavailable")
		return
	}
	response.InternalError(w, r, "order operation failed")
}
