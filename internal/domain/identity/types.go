package identity

// Package identity contains domain-level types for authenticated principals.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and credential claims.
// Valid values are defined as constants below.
type Role string

const (
	RoleUser       Role = "user"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// ValidRole reports whether r is one of the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// roleRank orders roles for threshold checks. Unknown roles rank below user.
func roleRank(r Role) int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleManager:
		return 1
	case RoleUser:
		return 0
	}
	return -1
}

// AtLeast reports whether r meets or exceeds the required role.
func (r Role) AtLeast(required Role) bool {
	return roleRank(r) >= roleRank(required)
}

// Principal is the discriminated union over the three identity variants.
// Exactly one concrete type applies to a given session.
type Principal interface {
	// Subject returns the tagged subject identifier used at the
	// credential serialization boundary.
	Subject() Subject
	// PrincipalEmail returns the principal's email address, which may be
	// empty for directory accounts resolved from narrow-scope tokens.
	PrincipalEmail() string
	// PrincipalRole returns the principal's current role.
	PrincipalRole() Role
}

// LocalPrincipal is backed by a relational user row.
type LocalPrincipal struct {
	ID    int64
	Email string
	Role  Role
}

func (p LocalPrincipal) Subject() Subject       { return Subject{Kind: KindLocal, LocalID: p.ID} }
func (p LocalPrincipal) PrincipalEmail() string { return p.Email }
func (p LocalPrincipal) PrincipalRole() Role    { return p.Role }

// DirectoryPrincipal is backed by a synchronized directory-user record.
// AccountName is the stable key; email may be absent.
type DirectoryPrincipal struct {
	AccountName string
	DisplayName string
	Email       string
	Role        Role
	Active      bool
}

func (p DirectoryPrincipal) Subject() Subject {
	return Subject{Kind: KindDirectory, Name: p.AccountName}
}
func (p DirectoryPrincipal) PrincipalEmail() string { return p.Email }
func (p DirectoryPrincipal) PrincipalRole() Role    { return p.Role }

// OAuthTokens holds the provider token grant persisted with a federated
// identity. Scope records what the grant was issued for so a login-scope
// token never silently replaces a mail-scope one.
type OAuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// HasMailScope reports whether the stored grant includes the elevated
// mail-access scope.
func (t OAuthTokens) HasMailScope(mailScope string) bool {
	if mailScope == "" || t.AccessToken == "" {
		return false
	}
	for _, s := range splitScopes(t.Scope) {
		if s == mailScope {
			return true
		}
	}
	return false
}

func splitScopes(s string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	return out
}

// FederatedPrincipal is backed by a persisted federated-identity record.
// ProviderID is the provider-assigned stable key (Google sub claim).
type FederatedPrincipal struct {
	ProviderID         string
	Email              string
	DisplayName        string
	Picture            string
	Role               Role
	Active             bool
	OnboardingComplete bool
	MailSynced         bool
	Tokens             *OAuthTokens
}

func (p FederatedPrincipal) Subject() Subject {
	return Subject{Kind: KindFederated, Name: p.ProviderID}
}
func (p FederatedPrincipal) PrincipalEmail() string { return p.Email }
func (p FederatedPrincipal) PrincipalRole() Role    { return p.Role }

// ManagerReference is a non-owning cross-reference from a subordinate
// principal to one of its managers. UserType distinguishes directory from
// federated managers.
type ManagerReference struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	UserType    string `json:"user_type"`
}

const (
	ManagerTypeDirectory = "directory"
	ManagerTypeFederated = "federated"
)
