package mocks

// Hand-written in-memory fakes for the identity ports. They are
// concurrency-safe and deterministic, suitable for unit tests without
// codegen.

import (
	"context"
	"strings"
	"sync"

	"github.com/oakmont/insights-api/internal/data"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/domain/tenant"
	"github.com/oakmont/insights-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.LocalUserStore         = (*MemoryLocalUserStore)(nil)
	_ ports.DirectoryUserStore     = (*MemoryDirectoryUserStore)(nil)
	_ ports.FederatedStore         = (*MemoryFederatedStore)(nil)
	_ ports.TenantMappingStore     = (*MemoryTenantMappingStore)(nil)
	_ ports.ManagerStore           = (*MemoryManagerStore)(nil)
	_ ports.MailTokenVault         = (*MemoryMailTokenVault)(nil)
	_ ports.SessionTerminator      = (*MemoryTerminator)(nil)
	_ ports.DirectoryAuthenticator = (*MockDirectoryAuthenticator)(nil)
	_ ports.OAuthBroker            = (*MockOAuthBroker)(nil)
)

// MemoryLocalUserStore is an in-memory ports.LocalUserStore.
type MemoryLocalUserStore struct {
	mu    sync.Mutex
	users map[int64]ports.LocalUser

	// Err, when set, is returned by every method.
	Err error
}

// NewMemoryLocalUserStore creates a store seeded with the given users.
func NewMemoryLocalUserStore(users ...ports.LocalUser) *MemoryLocalUserStore {
	s := &MemoryLocalUserStore{users: map[int64]ports.LocalUser{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *MemoryLocalUserStore) FindByID(_ context.Context, id int64) (identity.LocalPrincipal, error) {
	if s.Err != nil {
		return identity.LocalPrincipal{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return identity.LocalPrincipal{}, data.ErrUserNotFound
	}
	return identity.LocalPrincipal{ID: u.ID, Email: u.Email, Role: u.Role}, nil
}

func (s *MemoryLocalUserStore) FindByEmail(_ context.Context, email string) (ports.LocalUser, error) {
	if s.Err != nil {
		return ports.LocalUser{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return ports.LocalUser{}, data.ErrUserNotFound
}

func (s *MemoryLocalUserStore) Delete(_ context.Context, id int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return data.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// MemoryDirectoryUserStore is an in-memory ports.DirectoryUserStore.
type MemoryDirectoryUserStore struct {
	mu    sync.Mutex
	users map[string]identity.DirectoryPrincipal

	Err error
}

// NewMemoryDirectoryUserStore creates a store seeded with the given users.
func NewMemoryDirectoryUserStore(users ...identity.DirectoryPrincipal) *MemoryDirectoryUserStore {
	s := &MemoryDirectoryUserStore{users: map[string]identity.DirectoryPrincipal{}}
	for _, u := range users {
		s.users[u.AccountName] = u
	}
	return s
}

func (s *MemoryDirectoryUserStore) FindByAccountName(_ context.Context, accountName string) (identity.DirectoryPrincipal, error) {
	if s.Err != nil {
		return identity.DirectoryPrincipal{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[accountName]
	if !ok {
		return identity.DirectoryPrincipal{}, data.ErrDirectoryUserNotFound
	}
	return u, nil
}

func (s *MemoryDirectoryUserStore) Upsert(_ context.Context, p identity.DirectoryPrincipal) (identity.DirectoryPrincipal, error) {
	if s.Err != nil {
		return identity.DirectoryPrincipal{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[p.AccountName]
	if !ok {
		if p.Role == "" {
			p.Role = identity.RoleUser
		}
		p.Active = true
		s.users[p.AccountName] = p
		return p, nil
	}
	existing.DisplayName = p.DisplayName
	existing.Email = p.Email
	s.users[p.AccountName] = existing
	return existing, nil
}

func (s *MemoryDirectoryUserStore) Delete(_ context.Context, accountName string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[accountName]; !ok {
		return data.ErrDirectoryUserNotFound
	}
	delete(s.users, accountName)
	return nil
}

// MemoryFederatedStore is an in-memory ports.FederatedStore implementing
// the same token-preservation rule as the SQL repository.
type MemoryFederatedStore struct {
	mu      sync.Mutex
	records map[string]identity.FederatedPrincipal

	// FailWrites makes FindOrCreate fail, for exercising the unsaved
	// login fallback.
	FailWrites bool
	Err        error
}

// NewMemoryFederatedStore creates a store seeded with the given records.
func NewMemoryFederatedStore(records ...identity.FederatedPrincipal) *MemoryFederatedStore {
	s := &MemoryFederatedStore{records: map[string]identity.FederatedPrincipal{}}
	for _, r := range records {
		s.records[r.ProviderID] = r
	}
	return s
}

func (s *MemoryFederatedStore) FindByProviderID(_ context.Context, providerID string) (identity.FederatedPrincipal, error) {
	if s.Err != nil {
		return identity.FederatedPrincipal{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[providerID]
	if !ok {
		return identity.FederatedPrincipal{}, data.ErrFederatedIdentityNotFound
	}
	return r, nil
}

func (s *MemoryFederatedStore) FindOrCreate(_ context.Context, up ports.FederatedUpsert) (identity.FederatedPrincipal, bool, error) {
	if s.Err != nil {
		return identity.FederatedPrincipal{}, false, s.Err
	}
	if s.FailWrites {
		return identity.FederatedPrincipal{}, false, context.DeadlineExceeded
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[up.ProviderID]
	if !ok {
		created := identity.FederatedPrincipal{
			ProviderID:  up.ProviderID,
			Email:       strings.ToLower(up.Email),
			DisplayName: up.DisplayName,
			Picture:     up.Picture,
			Role:        identity.RoleUser,
			Active:      true,
			Tokens:      copyTokens(up.Tokens),
		}
		s.records[up.ProviderID] = created
		return created, true, nil
	}

	existing.Email = strings.ToLower(up.Email)
	existing.DisplayName = up.DisplayName
	existing.Picture = up.Picture
	if existing.Tokens == nil {
		existing.Tokens = copyTokens(up.Tokens)
	}
	s.records[up.ProviderID] = existing
	return existing, false, nil
}

func (s *MemoryFederatedStore) ReplaceTokens(_ context.Context, providerID string, tokens identity.OAuthTokens) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[providerID]
	if !ok {
		return data.ErrFederatedIdentityNotFound
	}
	r.Tokens = &tokens
	s.records[providerID] = r
	return nil
}

func (s *MemoryFederatedStore) SetOnboarding(_ context.Context, providerID string, complete, mailSynced bool) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[providerID]
	if !ok {
		return data.ErrFederatedIdentityNotFound
	}
	r.OnboardingComplete = complete
	r.MailSynced = mailSynced
	s.records[providerID] = r
	return nil
}

func (s *MemoryFederatedStore) Delete(_ context.Context, providerID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[providerID]; !ok {
		return data.ErrFederatedIdentityNotFound
	}
	delete(s.records, providerID)
	return nil
}

func copyTokens(t *identity.OAuthTokens) *identity.OAuthTokens {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// MemoryTenantMappingStore is an in-memory ports.TenantMappingStore keyed
// on normalized domain.
type MemoryTenantMappingStore struct {
	mu       sync.Mutex
	mappings map[string]tenant.DomainMapping
}

// NewMemoryTenantMappingStore creates a store seeded with the given
// mappings; domains are normalized on the way in.
func NewMemoryTenantMappingStore(mappings ...tenant.DomainMapping) *MemoryTenantMappingStore {
	s := &MemoryTenantMappingStore{mappings: map[string]tenant.DomainMapping{}}
	for _, m := range mappings {
		m.Domain = tenant.NormalizeDomain(m.Domain)
		s.mappings[m.Domain] = m
	}
	return s
}

func (s *MemoryTenantMappingStore) FindByDomain(_ context.Context, normalizedDomain string) (*tenant.DomainMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[tenant.NormalizeDomain(normalizedDomain)]
	if !ok {
		return nil, nil
	}
	out := m
	return &out, nil
}

// MemoryManagerStore is an in-memory ports.ManagerStore.
type MemoryManagerStore struct {
	mu   sync.Mutex
	refs map[string][]identity.ManagerReference

	Err error
}

// NewMemoryManagerStore creates an empty store.
func NewMemoryManagerStore() *MemoryManagerStore {
	return &MemoryManagerStore{refs: map[string][]identity.ManagerReference{}}
}

// Seed records references for a subject.
func (s *MemoryManagerStore) Seed(sub identity.Subject, refs ...identity.ManagerReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[sub.String()] = refs
}

func (s *MemoryManagerStore) ListForPrincipal(_ context.Context, sub identity.Subject) ([]identity.ManagerReference, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]identity.ManagerReference(nil), s.refs[sub.String()]...), nil
}

func (s *MemoryManagerStore) DeleteForPrincipal(_ context.Context, sub identity.Subject) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, sub.String())
	return nil
}

// MemoryMailTokenVault is an in-memory ports.MailTokenVault with the same
// sequential account-id semantics as the SQL repository.
type MemoryMailTokenVault struct {
	mu      sync.Mutex
	records map[string]ports.MailTokenRecord

	Err error
}

// NewMemoryMailTokenVault creates an empty vault.
func NewMemoryMailTokenVault() *MemoryMailTokenVault {
	return &MemoryMailTokenVault{records: map[string]ports.MailTokenRecord{}}
}

// SeedActive records an active token-bearing entry for an email.
func (v *MemoryMailTokenVault) SeedActive(email string, tokens identity.OAuthTokens) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records[strings.ToLower(email)] = ports.MailTokenRecord{
		AccountID: v.maxAccountIDLocked() + 1,
		Email:     strings.ToLower(email),
		Tokens:    tokens,
		Active:    true,
	}
}

func (v *MemoryMailTokenVault) HasActiveToken(_ context.Context, email string) (bool, error) {
	if v.Err != nil {
		return false, v.Err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.records[strings.ToLower(email)]
	return ok && r.Active && r.Tokens.AccessToken != "", nil
}

func (v *MemoryMailTokenVault) Store(_ context.Context, rec ports.MailTokenRecord) (int64, error) {
	if v.Err != nil {
		return 0, v.Err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	email := strings.ToLower(rec.Email)
	if existing, ok := v.records[email]; ok {
		existing.Tokens = rec.Tokens
		existing.Active = rec.Active
		v.records[email] = existing
		return existing.AccountID, nil
	}
	rec.Email = email
	rec.AccountID = v.maxAccountIDLocked() + 1
	v.records[email] = rec
	return rec.AccountID, nil
}

func (v *MemoryMailTokenVault) Deactivate(_ context.Context, email string) error {
	if v.Err != nil {
		return v.Err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.records[strings.ToLower(email)]
	if ok {
		r.Active = false
		v.records[strings.ToLower(email)] = r
	}
	return nil
}

// Record returns the stored record for an email, for assertions.
func (v *MemoryMailTokenVault) Record(email string) (ports.MailTokenRecord, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.records[strings.ToLower(email)]
	return r, ok
}

func (v *MemoryMailTokenVault) maxAccountIDLocked() int64 {
	var maxID int64
	for _, r := range v.records {
		if r.AccountID > maxID {
			maxID = r.AccountID
		}
	}
	return maxID
}

// MemoryTerminator is an in-memory ports.SessionTerminator.
type MemoryTerminator struct {
	mu      sync.Mutex
	revoked map[string]bool

	// TerminateErr makes Terminate fail, for exercising fail-closed
	// deletion.
	TerminateErr error
}

// NewMemoryTerminator creates an empty terminator.
func NewMemoryTerminator() *MemoryTerminator {
	return &MemoryTerminator{revoked: map[string]bool{}}
}

func (t *MemoryTerminator) Terminate(_ context.Context, sub identity.Subject) error {
	if t.TerminateErr != nil {
		return t.TerminateErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[sub.String()] = true
	return nil
}

func (t *MemoryTerminator) IsRevoked(_ context.Context, sub identity.Subject) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revoked[sub.String()], nil
}

// MockDirectoryAuthenticator simulates a directory with a fixed outcome or
// a per-call function.
type MockDirectoryAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, username, password string) (ports.DirectoryResult, error)

	Result ports.DirectoryResult
	Err    error
}

func (m *MockDirectoryAuthenticator) Authenticate(ctx context.Context, username, password string) (ports.DirectoryResult, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, username, password)
	}
	return m.Result, m.Err
}

// MockOAuthBroker simulates the provider side of the OAuth flows with
// deterministic URLs and a fixed exchange outcome.
type MockOAuthBroker struct {
	ExchangeFunc func(ctx context.Context, code string) (ports.ProviderIdentity, identity.OAuthTokens, error)

	Identity  ports.ProviderIdentity
	Tokens    identity.OAuthTokens
	Err       error
	MailScp   string
	LastState string
}

func (m *MockOAuthBroker) LoginURL(state string) string {
	m.LastState = state
	return "https://mock-provider/auth?state=" + state
}

func (m *MockOAuthBroker) SyncURL(state string) string {
	m.LastState = state
	return "https://mock-provider/auth?sync=1&state=" + state
}

func (m *MockOAuthBroker) Exchange(ctx context.Context, code string) (ports.ProviderIdentity, identity.OAuthTokens, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return m.Identity, m.Tokens, m.Err
}

func (m *MockOAuthBroker) MailScope() string {
	if m.MailScp == "" {
		return "https://mail.google.com/"
	}
	return m.MailScp
}
