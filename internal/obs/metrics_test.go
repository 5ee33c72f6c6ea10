package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/login":                        "/login",
		"/google/callback":              "/google/callback",
		"/api/auth/login":               "/api/auth/*",
		"/api/farmer/cropplans/42":      "/api/farmer/*",
		"/api/marketplace":              "/api/marketplace",
		"/api/admin/users?limit=10":     "/api/admin/*",
		"/verify?token=abc":             "/verify",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
