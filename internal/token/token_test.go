package token

import (
	"errors"
	"testing"
	"time"

	"agriconnect.org/internal/account"
)

func testAccount() *account.Account {
	return &account.Account{
		ID:    "01HZXEXAMPLEID0000000000",
		Name:  "Asel Farmer",
		Email: "asel@example.com",
		Role:  account.RoleFarmer,
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := iss.Issue(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	claims, err := iss.Verify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.ID != "01HZXEXAMPLEID0000000000" || claims.Role != "Farmer" || claims.Email != "asel@example.com" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	proj := claims.Projection()
	if proj.Role != "Farmer" || proj.Name != "Asel Farmer" {
		t.Fatalf("unexpected projection: %#v", proj)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Now()
	clock := now
	iss, err := NewIssuer("test-secret", WithTTL(time.Hour), WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := iss.Issue(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	clock = now.Add(2 * time.Hour)
	if _, err := iss.Verify(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	iss, _ := NewIssuer("test-secret")
	for _, raw := range []string{"not-a-token", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		if _, err := iss.Verify(raw); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("raw %q: expected ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestVerifyMissing(t *testing.T) {
	iss, _ := NewIssuer("test-secret")
	if _, err := iss.Verify(""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := iss.Verify("   "); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing for whitespace, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	a, _ := NewIssuer("secret-a")
	b, _ := NewIssuer("secret-b")
	raw, err := a.Issue(testAccount())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Verify(raw); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed across secrets, got %v", err)
	}
}

func TestIssueRejectsIncompleteAccount(t *testing.T) {
	iss, _ := NewIssuer("test-secret")

	noID := testAccount()
	noID.ID = ""
	if _, err := iss.Issue(noID); !errors.Is(err, ErrInvalidAccountState) {
		t.Fatalf("expected ErrInvalidAccountState without id, got %v", err)
	}

	badRole := testAccount()
	badRole.Role = "Wizard"
	if _, err := iss.Issue(badRole); !errors.Is(err, ErrInvalidAccountState) {
		t.Fatalf("expected ErrInvalidAccountState for unknown role, got %v", err)
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
