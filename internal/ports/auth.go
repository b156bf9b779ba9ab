package ports

// Package ports defines interfaces (hexagonal ports) for identity and
// tenant-resolution behavior. Implementations live in internal/adapters and
// internal/data; orchestration in internal/service.

import (
	"context"

	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/domain/tenant"
)

// DirectoryResult is the outcome of a directory authentication attempt.
// Authentication failure is a value (Authenticated=false), not an error;
// errors are reserved for connectivity problems so callers can tell "wrong
// password" from "directory unreachable".
type DirectoryResult struct {
	Authenticated bool
	// DN is the distinguished name that bound successfully.
	DN string
	// DisplayName, Email, PrincipalName come from the post-bind detail fetch
	// and may be empty when the directory exposes no such attributes.
	DisplayName   string
	Email         string
	PrincipalName string
}

// DirectoryAuthenticator resolves and authenticates a principal against an
// LDAP/Active-Directory service.
type DirectoryAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (DirectoryResult, error)
}

// LocalUser is a relational user row including the password hash. Only the
// local login path sees this shape; everything downstream works with
// identity.LocalPrincipal.
type LocalUser struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         identity.Role
}

// LocalUserStore persists local (password) accounts.
type LocalUserStore interface {
	FindByID(ctx context.Context, id int64) (identity.LocalPrincipal, error)
	FindByEmail(ctx context.Context, email string) (LocalUser, error)
	Delete(ctx context.Context, id int64) error
}

// DirectoryUserStore persists synchronized directory-user records keyed by
// account name.
type DirectoryUserStore interface {
	FindByAccountName(ctx context.Context, accountName string) (identity.DirectoryPrincipal, error)
	// Upsert records the latest known directory attributes after a
	// successful bind.
	Upsert(ctx context.Context, p identity.DirectoryPrincipal) (identity.DirectoryPrincipal, error)
	Delete(ctx context.Context, accountName string) error
}

// FederatedUpsert carries the provider-asserted fields for find-or-create.
type FederatedUpsert struct {
	ProviderID  string
	Email       string
	DisplayName string
	Picture     string
	Tokens      *identity.OAuthTokens
}

// FederatedStore persists federated-identity records keyed (uniquely) by
// provider id.
type FederatedStore interface {
	FindByProviderID(ctx context.Context, providerID string) (identity.FederatedPrincipal, error)
	// FindOrCreate is idempotent on provider id: a second call never creates
	// a duplicate record, only updates mutable fields. The token-preservation
	// rule (§ login flow) is the caller's concern; FindOrCreate stores the
	// tokens it is given only when none exist yet.
	FindOrCreate(ctx context.Context, up FederatedUpsert) (identity.FederatedPrincipal, bool, error)
	// ReplaceTokens unconditionally overwrites the stored grant.
	ReplaceTokens(ctx context.Context, providerID string, tokens identity.OAuthTokens) error
	// SetOnboarding updates the onboarding flags.
	SetOnboarding(ctx context.Context, providerID string, complete, mailSynced bool) error
	Delete(ctx context.Context, providerID string) error
}

// TenantMappingStore resolves normalized email domains to tenant schemas.
// A missing mapping is data, not a fault: FindByDomain returns (nil, nil).
type TenantMappingStore interface {
	FindByDomain(ctx context.Context, normalizedDomain string) (*tenant.DomainMapping, error)
}

// ManagerStore lists manager cross-references for a principal.
type ManagerStore interface {
	ListForPrincipal(ctx context.Context, sub identity.Subject) ([]identity.ManagerReference, error)
	DeleteForPrincipal(ctx context.Context, sub identity.Subject) error
}

// MailTokenRecord is a persisted elevated-scope token wired into the mail
// ingestion subsystem.
type MailTokenRecord struct {
	AccountID int64
	Email     string
	Tokens    identity.OAuthTokens
	Active    bool
}

// MailTokenVault is the optional integration hook onto the external mail
// ingestion store. A nil vault disables the auto-skip onboarding
// optimization; nothing else depends on it.
type MailTokenVault interface {
	// HasActiveToken reports whether an active, token-bearing record exists
	// for the email.
	HasActiveToken(ctx context.Context, email string) (bool, error)
	// Store persists a record, allocating the next sequential account id.
	Store(ctx context.Context, rec MailTokenRecord) (int64, error)
	// Deactivate marks the record for an email inactive.
	Deactivate(ctx context.Context, email string) error
}

// SessionTerminator revokes issued credentials for a principal. User
// deletion is fail-closed on Terminate: if it errors, the identity record
// must not be deleted. IsRevoked is consulted on every authenticated
// request so a terminated principal loses access before their credential
// expires.
type SessionTerminator interface {
	Terminate(ctx context.Context, sub identity.Subject) error
	IsRevoked(ctx context.Context, sub identity.Subject) (bool, error)
}
