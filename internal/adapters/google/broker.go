package google

// Package google implements the OAuth identity broker against Google's
// authorization endpoints. Two flows share one callback: a basic identity
// login and an elevated mail-access "sync" grant.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"

	"github.com/oakmont/insights-api/config"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/ports"
)

const issuerURL = "https://accounts.google.com"

// loginScopes are the identity-only scopes requested by the login flow.
var loginScopes = []string{gooidc.ScopeOpenID, "profile", "email"}

// idClaims is the subset of Google id_token claims the broker reads.
type idClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// verifyFunc validates a raw id_token and returns its claims. Production
// uses a go-oidc verifier against Google's JWKS; tests substitute a fake.
type verifyFunc func(ctx context.Context, rawIDToken string) (idClaims, error)

// Broker implements ports.OAuthBroker for Google.
type Broker struct {
	login     *oauth2.Config
	sync      *oauth2.Config
	mailScope string
	verify    verifyFunc
}

// BrokerOptions groups dependencies for NewBroker.
type BrokerOptions struct {
	Config config.GoogleConfig
	// Verify overrides id_token verification (tests).
	Verify verifyFunc
}

// NewBroker constructs a Google broker. The OIDC discovery fetch happens
// once, at construction.
func NewBroker(ctx context.Context, opts BrokerOptions) (*Broker, error) {
	cfg := opts.Config
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google client id and secret are required")
	}

	base := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     oauthgoogle.Endpoint,
	}
	login := base
	login.Scopes = loginScopes
	syncCfg := base
	syncCfg.Scopes = append(append([]string{}, loginScopes...), cfg.MailScope)

	b := &Broker{
		login:     &login,
		sync:      &syncCfg,
		mailScope: cfg.MailScope,
		verify:    opts.Verify,
	}

	if b.verify == nil {
		provider, err := gooidc.NewProvider(ctx, issuerURL)
		if err != nil {
			return nil, fmt.Errorf("google oidc discovery: %w", err)
		}
		verifier := provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID})
		b.verify = func(ctx context.Context, raw string) (idClaims, error) {
			idTok, err := verifier.Verify(ctx, raw)
			if err != nil {
				return idClaims{}, fmt.Errorf("verify id_token: %w", err)
			}
			var claims idClaims
			if err := idTok.Claims(&claims); err != nil {
				return idClaims{}, fmt.Errorf("parse id_token claims: %w", err)
			}
			return claims, nil
		}
	}

	return b, nil
}

var _ ports.OAuthBroker = (*Broker)(nil)

// LoginURL builds the identity-scope authorization URL.
func (b *Broker) LoginURL(state string) string {
	return b.login.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// SyncURL builds the elevated-scope authorization URL. Consent is forced so
// Google returns a refresh token for the new grant.
func (b *Broker) SyncURL(state string) string {
	return b.sync.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// MailScope returns the configured elevated scope string.
func (b *Broker) MailScope() string { return b.mailScope }

// Exchange swaps the authorization code for tokens and extracts the
// asserted identity from the id_token when present. Elevated-scope
// responses sometimes omit profile claims; callers recover the acting
// principal from the state payload in that case.
func (b *Broker) Exchange(ctx context.Context, code string) (ports.ProviderIdentity, identity.OAuthTokens, error) {
	if code == "" {
		return ports.ProviderIdentity{}, identity.OAuthTokens{}, errors.New("authorization code is required")
	}

	// Both flows exchange against the same token endpoint; the login config
	// suffices for either code.
	tok, err := b.login.Exchange(ctx, code)
	if err != nil {
		return ports.ProviderIdentity{}, identity.OAuthTokens{}, fmt.Errorf("exchange code for token: %w", err)
	}

	tokens := identity.OAuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        grantedScope(tok),
	}
	if !tok.Expiry.IsZero() {
		tokens.Expiry = tok.Expiry
	} else {
		tokens.Expiry = time.Now().Add(time.Hour)
	}

	var ident ports.ProviderIdentity
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		claims, err := b.verify(ctx, raw)
		if err != nil {
			return ports.ProviderIdentity{}, identity.OAuthTokens{}, err
		}
		ident = ports.ProviderIdentity{
			ProviderID:  claims.Subject,
			Email:       strings.ToLower(claims.Email),
			DisplayName: claims.Name,
			Picture:     claims.Picture,
		}
	}

	return ident, tokens, nil
}

// grantedScope reads the space-separated scope list from the token
// response.
func grantedScope(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}
