package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"agriconnect.org/internal/audit"
	"agriconnect.org/internal/identity"
	"agriconnect.org/internal/obs"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// handleGoogleStart begins the authorization-code flow. The random state is
// pinned to the browser in a short-lived cookie and checked on callback.
func (a *API) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.google.AuthCodeURL(state), http.StatusFound)
}

func (a *API) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		a.redirectLoginError(w, r, "google_auth_failed", "Authentication_with_Google_failed_at_service")
		return
	}
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		a.redirectLoginError(w, r, "google_auth_failed", "Authentication_with_Google_failed_at_service")
		return
	}
	a.clearStateCookie(w)

	profile, err := a.google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "google_exchange_failed",
			"error": err.Error(),
		})
		a.redirectLoginError(w, r, "google_auth_failed", "Authentication_with_Google_failed_at_service")
		return
	}

	sess, err := a.identity.FederatedLogin(r.Context(), profile)
	if err != nil {
		if errors.Is(err, identity.ErrMissingGoogleEmail) {
			a.redirectLoginError(w, r, "google_auth_error", "User_details_not_found_after_Google_auth_at_service")
			return
		}
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "google_link_failed",
			"error": err.Error(),
		})
		a.redirectLoginError(w, r, "google_auth_error", "User_details_not_found_after_Google_auth_at_service")
		return
	}

	audit.LogEvent(r.Context(), "auth.google.link", map[string]any{
		"account_id": sess.Account.ID,
	})
	a.setAuthCookie(w, sess.Token)

	// The frontend callback page reads the session from the query string.
	params := url.Values{}
	params.Set("_id", sess.Account.ID)
	params.Set("name", sess.Account.Name)
	params.Set("email", sess.Account.Email)
	params.Set("userType", sess.Account.Role)
	params.Set("token", sess.Token)
	http.Redirect(w, r, a.frontendURL+"/auth/google/callback?"+params.Encode(), http.StatusFound)
}

func (a *API) redirectLoginError(w http.ResponseWriter, r *http.Request, code, message string) {
	params := url.Values{}
	params.Set("error", code)
	params.Set("message", message)
	http.Redirect(w, r, a.frontendURL+"/login?"+params.Encode(), http.StatusFound)
}

func (a *API) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
