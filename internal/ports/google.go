package ports

import (
	"context"

	"github.com/oakmont/insights-api/internal/domain/identity"
)

// ProviderIdentity is the provider-asserted identity recovered from a token
// exchange. Email and DisplayName may be empty on elevated-scope responses;
// ProviderID is empty only when the response carried no id_token at all.
type ProviderIdentity struct {
	ProviderID  string
	Email       string
	DisplayName string
	Picture     string
}

// OAuthBroker drives the provider side of the two authorization flows.
type OAuthBroker interface {
	// LoginURL builds the identity-scope authorization URL.
	LoginURL(state string) string
	// SyncURL builds the elevated mail-scope authorization URL with a
	// forced consent prompt.
	SyncURL(state string) string
	// Exchange swaps an authorization code for tokens and the asserted
	// identity.
	Exchange(ctx context.Context, code string) (ProviderIdentity, identity.OAuthTokens, error)
	// MailScope returns the configured elevated scope string.
	MailScope() string
}
