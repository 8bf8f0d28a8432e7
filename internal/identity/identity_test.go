package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

var testGoogle = config.GoogleConfig{
	ClientID:     "client-123.apps.googleusercontent.com",
	ClientSecret: "secret",
	RedirectURL:  "http://localhost:8080/auth/google/callback",
}

func tokenServer(t *testing.T, idToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "good-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"access_token": "access", "token_type": "Bearer", "expires_in": 3600}
		if idToken != "" {
			resp["id_token"] = idToken
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeValidator(wantToken string) ValidateFunc {
	return func(_ context.Context, tok, audience string) (*idtoken.Payload, error) {
		if tok != wantToken {
			return nil, errors.New("bad signature")
		}
		if audience != testGoogle.ClientID {
			return nil, errors.New("audience mismatch")
		}
		return &idtoken.Payload{
			Subject: "google-sub-1",
			Claims:  map[string]any{"email": "ada@example.com", "name": "Ada", "picture": "https://img.example/ada.png"},
		}, nil
	}
}

func TestNewGoogle_RequiresCredentials(t *testing.T) {
	_, err := NewGoogle(config.GoogleConfig{})
	assert.Error(t, err)
}

func TestGoogle_AuthCodeURL(t *testing.T) {
	g, err := NewGoogle(testGoogle)
	require.NoError(t, err)

	u, err := url.Parse(g.AuthCodeURL("state-xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, testGoogle.ClientID, q.Get("client_id"))
	assert.Equal(t, testGoogle.RedirectURL, q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestGoogle_Exchange(t *testing.T) {
	srv := tokenServer(t, "raw-id-token")
	g, err := NewGoogle(testGoogle,
		WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}),
		WithValidator(fakeValidator("raw-id-token")),
	)
	require.NoError(t, err)

	raw, id, err := g.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "raw-id-token", raw)
	assert.Equal(t, "google-sub-1", id.Subject)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada", id.Name)
}

func TestGoogle_ExchangeWithoutIDToken(t *testing.T) {
	srv := tokenServer(t, "")
	g, err := NewGoogle(testGoogle,
		WithEndpoint(oauth2.Endpoint{TokenURL: srv.URL + "/token"}),
		WithValidator(fakeValidator("unused")),
	)
	require.NoError(t, err)

	_, _, err = g.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrNoIDToken)
}

func TestGoogle_VerifyRejectsBadToken(t *testing.T) {
	g, err := NewGoogle(testGoogle, WithValidator(fakeValidator("expected")))
	require.NoError(t, err)

	_, err = g.Verify(context.Background(), "forged")
	assert.Error(t, err)
}

func TestGoogle_VerifyRequiresEmail(t *testing.T) {
	g, err := NewGoogle(testGoogle, WithValidator(func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{Subject: "sub", Claims: map[string]any{}}, nil
	}))
	require.NoError(t, err)

	_, err = g.Verify(context.Background(), "tok")
	assert.Error(t, err)
}

func TestState_RoundTrip(t *testing.T) {
	state, err := NewState()
	require.NoError(t, err)
	assert.Len(t, state, 43)

	rec := httptest.NewRecorder()
	SetStateCookie(rec, state, false)
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state, nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	assert.NoError(t, CheckState(out, req, false))

	cleared := out.Result().Cookies()[0]
	assert.Equal(t, StateCookie, cleared.Name)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestState_Mismatch(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=other", nil)
	req.AddCookie(&http.Cookie{Name: StateCookie, Value: "expected"})
	assert.ErrorIs(t, CheckState(httptest.NewRecorder(), req, false), ErrStateMismatch)

	req = httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=x", nil)
	assert.ErrorIs(t, CheckState(httptest.NewRecorder(), req, false), ErrStateMismatch)
}
