package handler

import (
	"errors"
	"net/http"

	"github.com/fleetgate/fleetgate/internal/api/response"
	"github.com/fleetgate/fleetgate/internal/auth"
)

// AuthHandler proxies the passwordless login flow to the main API.
type AuthHandler struct {
	client *auth.Client
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(client *auth.Client) *AuthHandler {
	return &AuthHandler{client: client}
}

// RequestCode handles POST /v1/auth/login.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.RequestCode(r.Context(), body)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// VerifyCode handles POST /v1/auth/verify.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.VerifyCode(r.Context(), body)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Refresh handles POST /v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.Refresh(r.Context(), body)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Logout handles POST /v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.client.Logout(r.Context(), GetAuthorization(r.Context()), body)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

// Profile handles GET /v1/auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.Profile(r.Context(), GetAuthorization(r.Context()))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	relay(w, r, resp.Status, resp.Body)
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrUpstreamUnavailable) {
		response.ServiceUnavailable(w, r, "authentication service is unavailable")
		return
	}
	response.InternalError(w, r, "authentication request failed")
}
