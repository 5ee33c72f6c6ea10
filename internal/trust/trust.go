// Package trust is the middleware collaborator services mount to authorize
// requests without calling back into the auth service. It verifies the
// bearer token locally with the shared secret and performs no I/O.
package trust

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"agriconnect.org/internal/token"
)

// CookieName is the auth cookie set by the identity service.
const CookieName = "jwt"

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// Identity is the request-scoped identity produced once by the middleware
// and read by handlers through the context.
type Identity struct {
	ID    string
	Role  string
	Email string
	Name  string
}

type ctxKey struct{}

// ContextWithIdentity stores the verified identity in the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext extracts the verified identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// TokenFromRequest pulls the bearer token from the Authorization header or,
// failing that, the auth cookie. Returns the empty string when neither is
// present.
func TokenFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
			return strings.TrimSpace(header[len(bearerPrefix):])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// Middleware verifies the request's token and populates the identity
// context. Failures answer 401 with a reason code describing the token
// problem; token failures describe client-side token handling, not account
// existence, so they stay specific.
func Middleware(verifier *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.Verify(TokenFromRequest(r))
			if err != nil {
				writeReason(w, http.StatusUnauthorized, reasonFor(err))
				return
			}
			id := Identity{
				ID:    claims.ID,
				Role:  claims.Role,
				Email: claims.Email,
				Name:  claims.Name,
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole gates an endpoint on the authenticated role. Mount after
// Middleware; an absent identity is a 401, a wrong role a 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeReason(w, http.StatusUnauthorized, "no_token")
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				writeReason(w, http.StatusForbidden, "role_not_allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, token.ErrTokenMissing):
		return "no_token"
	case errors.Is(err, token.ErrTokenExpired):
		return "token_expired"
	default:
		return "token_invalid"
	}
}

func writeReason(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"valid": false, "message": reason})
}
