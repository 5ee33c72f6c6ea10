package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"agriconnect.org/internal/account"
	"agriconnect.org/internal/audit"
	"agriconnect.org/internal/identity"
	"agriconnect.org/internal/token"
	"agriconnect.org/internal/trust"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse flattens the account projection next to the token, the
// shape the frontend stores verbatim.
type sessionResponse struct {
	account.Projection
	Token string `json:"token"`
}

func sessionPayload(sess identity.Session) sessionResponse {
	return sessionResponse{Projection: sess.Account, Token: sess.Token}
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.identity.Signup(r.Context(), req.Name, req.Email, req.Password, account.Role(req.UserType))
	if err != nil {
		writeError(w, r, signupStatus(err), signupMessage(err))
		return
	}

	audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"account_id": sess.Account.ID,
		"user_type":  sess.Account.Role,
	})
	a.setAuthCookie(w, sess.Token)
	writeJSON(w, http.StatusCreated, sessionPayload(sess))
}

func signupStatus(err error) int {
	switch {
	case errors.Is(err, identity.ErrMissingFields),
		errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, identity.ErrDuplicateEmail):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func signupMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrMissingFields):
		return "Please provide all required fields: name, email, password, userType"
	case errors.Is(err, identity.ErrDuplicateEmail):
		return "User with this email already exists"
	case errors.Is(err, identity.ErrInvalidEmail):
		return "Please provide a valid email address"
	case errors.Is(err, identity.ErrPasswordTooShort):
		return "Password must be at least 6 characters long"
	case errors.Is(err, identity.ErrInvalidRole):
		return "Invalid userType provided"
	default:
		return "Signup failed"
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.identity.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrMissingFields):
		writeError(w, r, http.StatusBadRequest, "Please provide email and password")
		return
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid email or password")
		return
	default:
		writeError(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"account_id": sess.Account.ID,
	})
	a.setAuthCookie(w, sess.Token)
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if raw := trust.TokenFromRequest(r); raw != "" {
		a.identity.Logout(r.Context(), raw)
	}
	audit.LogEvent(r.Context(), "auth.logout", nil)
	a.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully from AuthService",
	})
}

// handleVerify is the downstream trust endpoint. It accepts the bearer
// header only; cookies stay between browser and gateway.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := bearerToken(r)
	if raw == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"valid":   false,
			"message": "No token provided for verification",
		})
		return
	}

	proj, err := a.identity.Verify(raw)
	if err != nil {
		msg := "Token invalid or failed verification"
		if errors.Is(err, token.ErrTokenExpired) {
			msg = "Token expired"
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"valid":   false,
			"message": msg,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  proj,
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (a *API) setAuthCookie(w http.ResponseWriter, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     trust.CookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(a.cookieTTL / time.Second),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     trust.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
