package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fleetgate/fleetgate/internal/api/models"
	"github.com/fleetgate/fleetgate/internal/auth"
)

type userIDKey struct{}
type organizationIDKey struct{}
type authorizationKey struct{}

// Auth creates authentication middleware that validates JWT bearer tokens
// and puts the caller's identity and tenant on the request context. The
// raw Authorization header is kept as well so proxy handlers can forward
// it upstream.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID)
			ctx = context.WithValue(ctx, organizationIDKey{}, claims.OrganizationID)
			ctx = context.WithValue(ctx, authorizationKey{}, authHeader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetUserID retrieves the authenticated user ID from the context.
// Returns an empty string if not authenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetOrganizationID retrieves the authenticated tenant from the context.
// Returns an empty string if not authenticated.
func GetOrganizationID(ctx context.Context) string {
	if id, ok := ctx.Value(organizationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetAuthorization retrieves the raw Authorization header value from the
// context for upstream forwarding.
func GetAuthorization(ctx context.Context) string {
	if v, ok := ctx.Value(authorizationKey{}).(string); ok {
		return v
	}
	return ""
}
