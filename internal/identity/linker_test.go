package identity

import (
	"context"
	"errors"
	"testing"

	"agriconnect.org/internal/account"
)

func TestFederatedLoginCreatesFarmerAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.FederatedLogin(ctx, Profile{ID: "g-123", Email: "New@Example.com", Name: "New User"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Account.Role != "Farmer" {
		t.Fatalf("federated accounts must be farmers, got %q", sess.Account.Role)
	}
	if sess.Account.Email != "new@example.com" {
		t.Fatalf("email not normalized: %q", sess.Account.Email)
	}

	acc, err := store.FindByGoogleID(ctx, "g-123")
	if err != nil {
		t.Fatal(err)
	}
	if acc.PasswordHash != "" {
		t.Fatal("federated-only account must not carry a password hash")
	}
}

func TestFederatedLoginLinksExistingPasswordAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	orig, err := svc.Signup(ctx, "Asel", "asel@example.com", "secret1", account.RoleBuyer)
	if err != nil {
		t.Fatal(err)
	}

	sess, err := svc.FederatedLogin(ctx, Profile{ID: "g-777", Email: "asel@example.com", Name: "Asel G"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Account.ID != orig.Account.ID {
		t.Fatalf("link created a second account: %q vs %q", sess.Account.ID, orig.Account.ID)
	}

	acc, err := store.FindByID(ctx, orig.Account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if acc.GoogleID != "g-777" {
		t.Fatalf("google id not linked: %#v", acc)
	}
	if acc.Role != account.RoleFarmer {
		t.Fatalf("linked account must take the federated role, got %q", acc.Role)
	}
	if acc.PasswordHash == "" {
		t.Fatal("linking must preserve the password hash")
	}

	// Password login still works after linking.
	if _, err := svc.Login(ctx, "asel@example.com", "secret1"); err != nil {
		t.Fatalf("password login broken after link: %v", err)
	}
}

func TestFederatedLoginMatchesByGoogleIDFirst(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.FederatedLogin(ctx, Profile{ID: "g-1", Email: "a@example.com", Name: "A"})
	if err != nil {
		t.Fatal(err)
	}
	// Same provider id returns the same account even if the provider now
	// reports a different name.
	second, err := svc.FederatedLogin(ctx, Profile{ID: "g-1", Email: "a@example.com", Name: "A Renamed"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Account.ID != second.Account.ID {
		t.Fatalf("google id lookup created a new account: %q vs %q", first.Account.ID, second.Account.ID)
	}

	acc, err := store.FindByID(ctx, first.Account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if acc.Name != "A Renamed" {
		t.Fatalf("display name not refreshed: %q", acc.Name)
	}
}

func TestFederatedLoginMissingEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.FederatedLogin(context.Background(), Profile{ID: "g-1", Name: "No Email"})
	if !errors.Is(err, ErrMissingGoogleEmail) {
		t.Fatalf("expected ErrMissingGoogleEmail, got %v", err)
	}
	_, err = svc.FederatedLogin(context.Background(), Profile{ID: "g-1", Email: "   "})
	if !errors.Is(err, ErrMissingGoogleEmail) {
		t.Fatalf("expected ErrMissingGoogleEmail for blank email, got %v", err)
	}
}

func TestFederatedLoginMissingProviderID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.FederatedLogin(context.Background(), Profile{Email: "a@example.com"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDisplayNameFallback(t *testing.T) {
	sess := func(t *testing.T, p Profile) Session {
		t.Helper()
		svc, _, _ := newTestService(t)
		s, err := svc.FederatedLogin(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	got := sess(t, Profile{ID: "1234567890", Email: "x@example.com"})
	if got.Account.Name != "User 67890" {
		t.Fatalf("expected suffix fallback name, got %q", got.Account.Name)
	}

	short := sess(t, Profile{ID: "abc", Email: "y@example.com"})
	if short.Account.Name != "User abc" {
		t.Fatalf("expected short id fallback name, got %q", short.Account.Name)
	}
}
