package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agriconnect.org/internal/account"
	"agriconnect.org/internal/cache"
	"agriconnect.org/internal/identity"
	"agriconnect.org/internal/token"
	"agriconnect.org/internal/trust"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	store := account.NewMemStore()
	sessions := cache.Connect(context.Background(), cache.Config{})
	issuer, err := token.NewIssuer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	svc, err := identity.NewService(store, sessions, issuer)
	if err != nil {
		t.Fatal(err)
	}
	return New(Options{
		Identity:    svc,
		Version:     "test",
		FrontendURL: "http://localhost:5173",
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad JSON body %q: %v", rec.Body.String(), err)
	}
	msg, _ := body["message"].(string)
	return msg
}

type sessionBody struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	Token    string `json:"token"`
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var s sessionBody
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	return s
}

func authCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == trust.CookieName {
			return c
		}
	}
	return nil
}

func TestSignupLoginVerifyLogoutFlow(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	// Signup.
	rec := doJSON(t, h, http.MethodPost, "/signup",
		`{"name":"Asel","email":"asel@example.com","password":"secret1","userType":"Farmer"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeSession(t, rec)
	if created.ID == "" || created.Token == "" || created.UserType != "Farmer" {
		t.Fatalf("incomplete signup body: %#v", created)
	}
	cookie := authCookie(rec)
	if cookie == nil {
		t.Fatal("signup must set the auth cookie")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("cookie attributes wrong: %#v", cookie)
	}
	if cookie.Value != created.Token {
		t.Fatal("cookie must carry the issued token")
	}

	// Duplicate signup.
	rec = doJSON(t, h, http.MethodPost, "/signup",
		`{"name":"Other","email":"ASEL@example.com","password":"secret2","userType":"Buyer"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup status %d", rec.Code)
	}
	if message(t, rec) != "User with this email already exists" {
		t.Fatalf("unexpected message: %q", message(t, rec))
	}

	// Wrong password.
	rec = doJSON(t, h, http.MethodPost, "/login",
		`{"email":"asel@example.com","password":"wrong-pass"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status %d", rec.Code)
	}
	if message(t, rec) != "Invalid email or password" {
		t.Fatalf("unexpected message: %q", message(t, rec))
	}

	// Unknown email answers the exact same way.
	rec2 := doJSON(t, h, http.MethodPost, "/login",
		`{"email":"ghost@example.com","password":"whatever1"}`)
	if rec2.Code != http.StatusUnauthorized || message(t, rec2) != message(t, rec) {
		t.Fatal("login failures must be indistinguishable")
	}

	// Successful login.
	rec = doJSON(t, h, http.MethodPost, "/login",
		`{"email":"asel@example.com","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	logged := decodeSession(t, rec)
	if logged.ID != created.ID {
		t.Fatal("login returned a different account")
	}
	if authCookie(rec) == nil {
		t.Fatal("login must set the auth cookie")
	}

	// Verify with the bearer header.
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.Header.Set("Authorization", "Bearer "+logged.Token)
	vrec := httptest.NewRecorder()
	h.ServeHTTP(vrec, req)
	if vrec.Code != http.StatusOK {
		t.Fatalf("verify status %d", vrec.Code)
	}
	var verdict struct {
		Valid bool        `json:"valid"`
		User  sessionBody `json:"user"`
	}
	if err := json.Unmarshal(vrec.Body.Bytes(), &verdict); err != nil {
		t.Fatal(err)
	}
	if !verdict.Valid || verdict.User.ID != created.ID {
		t.Fatalf("unexpected verdict: %#v", verdict)
	}

	// Logout clears the cookie.
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: trust.CookieName, Value: logged.Token})
	lrec := httptest.NewRecorder()
	h.ServeHTTP(lrec, req)
	if lrec.Code != http.StatusOK {
		t.Fatalf("logout status %d", lrec.Code)
	}
	if message(t, lrec) != "Logged out successfully from AuthService" {
		t.Fatalf("unexpected message: %q", message(t, lrec))
	}
	cleared := authCookie(lrec)
	if cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("logout must expire the cookie: %#v", cleared)
	}
}

func TestSignupValidationMessages(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"missing fields", `{"email":"a@example.com"}`,
			"Please provide all required fields: name, email, password, userType"},
		{"bad email", `{"name":"A","email":"nope","password":"secret1","userType":"Farmer"}`,
			"Please provide a valid email address"},
		{"short password", `{"name":"A","email":"a@example.com","password":"12345","userType":"Farmer"}`,
			"Password must be at least 6 characters long"},
		{"bad role", `{"name":"A","email":"a@example.com","password":"secret1","userType":"Wizard"}`,
			"Invalid userType provided"},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, http.MethodPost, "/signup", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", tc.name, rec.Code)
		}
		if got := message(t, rec); got != tc.msg {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.msg)
		}
	}
}

func TestLoginMissingFieldsMessage(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodPost, "/login", `{"email":"a@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if message(t, rec) != "Please provide email and password" {
		t.Fatalf("unexpected message: %q", message(t, rec))
	}
}

func TestVerifyWithoutToken(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/verify", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Valid || body.Message != "No token provided for verification" {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestVerifyGarbageToken(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	if message(t, rec) != "Token invalid or failed verification" {
		t.Fatalf("unexpected message: %q", message(t, rec))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	for _, path := range []string{"/signup", "/login", "/logout"} {
		rec := doJSON(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
	rec := doJSON(t, h, http.MethodPost, "/verify", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("/verify: status %d", rec.Code)
	}
}

func TestGoogleRoutesAbsentWhenDisabled(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/google", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status %d", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestCORSPreflight(t *testing.T) {
	store := account.NewMemStore()
	sessions := cache.Connect(context.Background(), cache.Config{})
	issuer, _ := token.NewIssuer("test-secret")
	svc, _ := identity.NewService(store, sessions, issuer)
	api := New(Options{
		Identity:       svc,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	h := api.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatal("allow-origin missing")
	}

	// Unlisted origins are not echoed back.
	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unlisted origin echoed")
	}
}
