package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/fleetgate/fleetgate/internal/api/middleware"
	"github.com/fleetgate/fleetgate/internal/api/response"
)

// GetUserID retrieves the authenticated user ID from the context.
// This is a convenience wrapper around middleware.GetUserID.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// GetOrganizationID retrieves the authenticated tenant from the context.
func GetOrganizationID(ctx context.Context) string {
	return middleware.GetOrganizationID(ctx)
}

// GetAuthorization retrieves the raw Authorization header for forwarding.
func GetAuthorization(ctx context.Context) string {
	return middleware.GetAuthorization(ctx)
}

// middlewareRequestID returns the request's correlation ID.
func middlewareRequestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// decodeJSON decodes the request body into dst and writes a 400 problem
// response on failure. Returns false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// readBody reads the raw request body for pass-through proxying.
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, r, "reading request body: "+err.Error(), nil)
		return nil, false
	}
	return body, true
}

// relay writes an upstream status and JSON body to the caller unchanged.
func relay(w http.ResponseWriter, r *http.Request, status int, body json.RawMessage) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}
