// Package identity signs users in with Google: the OAuth 2.0 authorization
// code flow, ID token validation and the state cookie that ties a callback to
// the browser that started it.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// StateCookie carries the OAuth state between start and callback.
const StateCookie = "ro_oauth_state"

const stateTTL = 10 * time.Minute

var (
	ErrStateMismatch = errors.New("sign-in state does not match; start again")
	ErrNoIDToken     = errors.New("identity provider returned no id_token")
)

// ValidateFunc checks an ID token's signature, expiry and audience.
// idtoken.Validate is the production implementation.
type ValidateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// Google runs the sign-in flow against Google.
type Google struct {
	oauth    *oauth2.Config
	validate ValidateFunc
}

// Option customizes a Google provider.
type Option func(*Google)

// WithEndpoint replaces Google's OAuth endpoints.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(g *Google) { g.oauth.Endpoint = ep }
}

// WithValidator replaces ID token validation.
func WithValidator(fn ValidateFunc) Option {
	return func(g *Google) { g.validate = fn }
}

// NewGoogle creates the provider from client settings.
func NewGoogle(cfg config.GoogleConfig, opts ...Option) (*Google, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("google sign-in is not configured")
	}
	g := &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		validate: idtoken.Validate,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// AuthCodeURL is where the browser is sent to sign in.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for a validated identity and the raw ID token.
func (g *Google) Exchange(ctx context.Context, code string) (string, *types.Identity, error) {
	if code == "" {
		return "", nil, fmt.Errorf("authorization code is missing")
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", nil, ErrNoIDToken
	}
	id, err := g.Verify(ctx, raw)
	if err != nil {
		return "", nil, err
	}
	return raw, id, nil
}

// Verify validates an ID token issued for this client.
func (g *Google) Verify(ctx context.Context, rawIDToken string) (*types.Identity, error) {
	payload, err := g.validate(ctx, rawIDToken, g.oauth.ClientID)
	if err != nil {
		return nil, fmt.Errorf("invalid id token: %w", err)
	}
	id := IdentityFromClaims(payload.Subject, payload.Claims)
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("id token is missing profile claims: %w", err)
	}
	return id, nil
}

// IdentityFromClaims reads the standard OpenID profile claims.
func IdentityFromClaims(subject string, claims map[string]any) *types.Identity {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	if subject == "" {
		subject = str("sub")
	}
	return &types.Identity{
		Subject: subject,
		Email:   str("email"),
		Name:    str("name"),
		Picture: str("picture"),
	}
}

// DevIdentity is the fixed user signed in by the development bypass.
func DevIdentity() *types.Identity {
	return &types.Identity{
		Subject: "dev-user",
		Email:   "dev@localhost.test",
		Name:    "Developer",
	}
}

// NewState returns a random OAuth state value.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetStateCookie stores the state (and where to go afterwards) for the callback.
func SetStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CheckState compares the callback's state with the cookie and clears the cookie.
func CheckState(w http.ResponseWriter, r *http.Request, secure bool) error {
	c, err := r.Cookie(StateCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil || c.Value == "" {
		return ErrStateMismatch
	}
	got := r.URL.Query().Get("state")
	if subtle.ConstantTimeCompare([]byte(c.Value), []byte(got)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
