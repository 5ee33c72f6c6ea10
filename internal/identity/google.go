package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds the provider credentials. Running with a partial set is
// a configuration error surfaced at startup, not at first login.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// GoogleFlow is the explicit three-step federated login pipeline:
// AuthCodeURL builds the consent redirect, Exchange turns the callback code
// into a provider profile, and Service.LinkGoogleProfile reconciles the
// profile into an account. No session machinery is involved; the final
// trust artifact is a signed token.
type GoogleFlow struct {
	oauth       *oauth2.Config
	userinfoURL string
}

// NewGoogleFlow validates the provider credentials and builds the flow.
func NewGoogleFlow(cfg GoogleConfig) (*GoogleFlow, error) {
	if strings.TrimSpace(cfg.ClientID) == "" ||
		strings.TrimSpace(cfg.ClientSecret) == "" ||
		strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, errors.New("identity: google oauth credentials or callback URL missing")
	}
	return &GoogleFlow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: googleUserinfoURL,
	}, nil
}

// AuthCodeURL builds the consent redirect for the given anti-CSRF state.
func (f *GoogleFlow) AuthCodeURL(state string) string {
	return f.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange redeems the callback code and fetches the provider profile.
func (f *GoogleFlow) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange auth code: %w", err)
	}

	resp, err := f.oauth.Client(ctx, tok).Get(f.userinfoURL)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("read userinfo: %w", err)
	}
	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.ID == "" {
		return Profile{}, errors.New("identity: google userinfo missing subject id")
	}
	return Profile{ID: info.ID, Email: info.Email, Name: info.Name}, nil
}
