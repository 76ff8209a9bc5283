package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/organizations"
)

// OrganizationsHandler proxies organization management to the backend.
type OrganizationsHandler struct {
	client *organizations.Client
}

// NewOrganizationsHandler creates a new OrganizationsHandler.
func NewOrganizationsHandler(client *organizations.Client) *OrganizationsHandler {
	return &OrganizationsHandler{client: client}
}

// Register handles POST /v1/organizations/register (public).
func (h *OrganizationsHandler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.Register(r.Context(), body)
	if err != nil {
		writeOrganizationError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Get handles GET /v1/organizations/me - the caller's own organization.
func (h *OrganizationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.client.Get(ctx, GetOrganizationID(ctx), GetAuthorization(ctx))
	if err != nil {
		writeOrganizationError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Update handles PUT /v1/organizations/me.
func (h *OrganizationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	resp, err := h.client.Update(ctx, GetOrganizationID(ctx), GetAuthorization(ctx), body)
	if err != nil {
		writeOrganizationError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// ListMembers handles GET /v1/organizations/me/members.
func (h *OrganizationsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.client.ListMembers(ctx, GetOrganizationID(ctx), GetAuthorization(ctx))
	if err != nil {
		writeOrganizationError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// InviteMember handles POST /v1/organizations/me/members.
func (h *OrganizationsHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	resp, err := h.client.InviteMember(ctx, GetOrganizationID(ctx), GetAuthorization(ctx), body)
	if err != nil {
		writeOrganizationError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// RemoveMember handles DELETE /v1/organizations/me/members/{membershipId}.
func (h *OrganizationsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.client.RemoveMember(ctx, GetOrganizationID(ctx), GetAuthorization(ctx), chi.URLParam(r, "membershipId"))
	if err != nil {
		writeOrganizationError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

func writeOrganizationError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, organizations.ErrBackendUnavailable) {
		response.ServiceUnavailable(w, r, "order backend is unavailable")
		return
	}
	response.InternalError(w, r, "organization operation failed")
}
