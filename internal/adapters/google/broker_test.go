package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestBroker(t *testing.T, tokenURL string) *Broker {
	t.Helper()
	endpoint := oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: tokenURL,
	}
	base := oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		Endpoint:     endpoint,
	}
	login := base
	login.Scopes = loginScopes
	syncCfg := base
	syncCfg.Scopes = append(append([]string{}, loginScopes...), "https://mail.google.com/")

	return &Broker{
		login:     &login,
		sync:      &syncCfg,
		mailScope: "https://mail.google.com/",
		verify: func(_ context.Context, raw string) (idClaims, error) {
			require.Equal(t, "raw-id-token", raw)
			return idClaims{
				Subject: "108234",
				Email:   "Dave@Example.com",
				Name:    "Dave Grohl",
				Picture: "https://example.com/dave.png",
			}, nil
		},
	}
}

func TestLoginURL_IdentityScopesOnly(t *testing.T) {
	b := newTestBroker(t, "https://unused")

	u, err := url.Parse(b.LoginURL("abc"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "abc", q.Get("state"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "select_account", q.Get("prompt"))
}

func TestSyncURL_ElevatedScopeForcedConsent(t *testing.T) {
	b := newTestBroker(t, "https://unused")

	u, err := url.Parse(b.SyncURL("xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "openid profile email https://mail.google.com/", q.Get("scope"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "offline", q.Get("access_type"))
}

func TestExchange_ReturnsIdentityAndTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "at-1",
			"refresh_token": "rt-1",
			"token_type": "Bearer",
			"expires_in": 3600,
			"scope": "openid profile email https://mail.google.com/",
			"id_token": "raw-id-token"
		}`))
	}))
	defer srv.Close()

	b := newTestBroker(t, srv.URL)

	ident, tokens, err := b.Exchange(context.Background(), "the-code")
	require.NoError(t, err)

	assert.Equal(t, "108234", ident.ProviderID)
	assert.Equal(t, "dave@example.com", ident.Email, "email is lowercased")
	assert.Equal(t, "Dave Grohl", ident.DisplayName)

	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.True(t, tokens.HasMailScope("https://mail.google.com/"))
	assert.False(t, tokens.Expiry.IsZero())
}

func TestExchange_EmptyCode(t *testing.T) {
	b := newTestBroker(t, "https://unused")
	_, _, err := b.Exchange(context.Background(), "")
	assert.Error(t, err)
}
