// Package httpapi is the identity service's HTTP layer.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"agriconnect.org/internal/identity"
	"agriconnect.org/internal/obs"
)

// ReadyProbe pings the credential store for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options configures the API surface.
type Options struct {
	Identity   *identity.Service
	Google     *identity.GoogleFlow // nil disables the federated routes
	ReadyProbe ReadyProbe
	Version    string

	// FrontendURL is the base for OAuth completion redirects.
	FrontendURL string

	// SecureCookies marks the auth cookie Secure; off only in local
	// development.
	SecureCookies bool

	// CookieTTL bounds the auth cookie; defaults to the token lifetime.
	CookieTTL time.Duration

	AllowedOrigins []string
	RateBurst      int
	RatePerSec     int
}

// API is the HTTP layer over the identity service.
type API struct {
	mux        *http.ServeMux
	identity   *identity.Service
	google     *identity.GoogleFlow
	readyProbe ReadyProbe
	version    string

	frontendURL    string
	secureCookies  bool
	cookieTTL      time.Duration
	allowedOrigins []string
	rateBurst      int
	ratePerSec     int
}

// New builds the API and its route table.
func New(opts Options) *API {
	a := &API{
		mux:            http.NewServeMux(),
		identity:       opts.Identity,
		google:         opts.Google,
		readyProbe:     opts.ReadyProbe,
		version:        opts.Version,
		frontendURL:    opts.FrontendURL,
		secureCookies:  opts.SecureCookies,
		cookieTTL:      opts.CookieTTL,
		allowedOrigins: opts.AllowedOrigins,
		rateBurst:      opts.RateBurst,
		ratePerSec:     opts.RatePerSec,
	}
	if a.cookieTTL <= 0 {
		a.cookieTTL = 30 * 24 * time.Hour
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	a.mux.HandleFunc("/signup", a.handleSignup)
	a.mux.HandleFunc("/login", a.handleLogin)
	a.mux.HandleFunc("/logout", a.handleLogout)
	a.mux.HandleFunc("/verify", a.handleVerify)
	if a.google != nil {
		a.mux.HandleFunc("/google", a.handleGoogleStart)
		a.mux.HandleFunc("/google/callback", a.handleGoogleCallback)
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReadyz)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route not found")
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h, a.allowedOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "agri-auth",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
