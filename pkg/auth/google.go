package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/taletunes/taletunes/pkg/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider runs the authorization code flow against Google and reads
// the signed-in user's profile.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider returns nil when Google sign-in is not configured.
func NewGoogleProvider(cfg *config.Config) *GoogleProvider {
	if !cfg.GoogleEnabled() {
		return nil
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Profile exchanges the authorization code and fetches the user's profile
// with the resulting token.
func (p *GoogleProvider) Profile(ctx context.Context, code string) (GoogleProfile, error) {
	profile := GoogleProfile{}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return profile, errors.Wrap(err, "token exchange failed")
	}

	resp, err := p.config.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return profile, errors.Wrap(err, "failed to fetch google profile")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return profile, errors.Errorf("google profile request returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return profile, errors.Wrap(err, "failed to decode google profile")
	}
	if profile.ID == "" {
		return profile, errors.New("google profile has no subject")
	}

	return profile, nil
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.WithStack(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
