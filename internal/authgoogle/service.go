// Package authgoogle implements optional Google sign-in via OAuth 2.0
// authorization code flow. When client credentials are not configured the
// service reports itself disabled and the password flow remains the only
// way in.
package authgoogle

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	// ErrNotConfigured means Google sign-in is disabled for this deployment.
	ErrNotConfigured = errors.New("google sign-in not configured")
	// ErrBadState rejects a callback whose state token does not verify.
	ErrBadState = errors.New("oauth state mismatch")
)

// Profile is the subset of the Google userinfo response we consume.
type Profile struct {
	Sub   string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Service drives the authorization code exchange.
type Service struct {
	oauth       *oauth2.Config
	stateSecret []byte
	userInfoURL string
	client      *http.Client
}

// New builds the service. clientID may be empty, in which case every
// operation returns ErrNotConfigured.
func New(clientID, clientSecret, redirectURL, stateSecret string) *Service {
	var cfg *oauth2.Config
	if clientID != "" && clientSecret != "" {
		cfg = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return &Service{
		oauth:       cfg,
		stateSecret: []byte(stateSecret),
		userInfoURL: defaultUserInfoURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether Google sign-in is configured.
func (s *Service) Enabled() bool {
	return s.oauth != nil
}

// AuthURL returns the consent page URL carrying a signed state token.
func (s *Service) AuthURL() (string, error) {
	if s.oauth == nil {
		return "", ErrNotConfigured
	}
	return s.oauth.AuthCodeURL(s.signState(time.Now()), oauth2.AccessTypeOnline), nil
}

// Exchange validates state, trades the code for a token, and fetches the
// user's profile.
func (s *Service) Exchange(ctx context.Context, state, code string) (Profile, error) {
	if s.oauth == nil {
		return Profile{}, ErrNotConfigured
	}
	if !s.verifyState(state) {
		return Profile{}, ErrBadState
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}
	return s.fetchProfile(ctx, token)
}

func (s *Service) fetchProfile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("create userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Profile{}, fmt.Errorf("userinfo %d: %s", resp.StatusCode, body)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.Sub == "" || profile.Email == "" {
		return Profile{}, errors.New("userinfo missing id or email")
	}
	if profile.Name == "" {
		profile.Name = profile.Email
	}
	return profile, nil
}

// signState produces an HMAC-bound state token with an hour of validity.
func (s *Service) signState(now time.Time) string {
	payload := fmt.Sprintf("%d", now.Unix())
	mac := hmac.New(sha256.New, s.stateSecret)
	mac.Write([]byte(payload))
	return payload + "." + hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) verifyState(state string) bool {
	var issued int64
	var sig string
	if _, err := fmt.Sscanf(state, "%d.%s", &issued, &sig); err != nil {
		return false
	}

	payload := fmt.Sprintf("%d", issued)
	mac := hmac.New(sha256.New, s.stateSecret)
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return false
	}
	return time.Since(time.Unix(issued, 0)) < time.Hour
}
