package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oakmont/insights-api/internal/domain/identity"
	apperrors "github.com/oakmont/insights-api/internal/errors"
	"github.com/oakmont/insights-api/internal/mocks"
	"github.com/oakmont/insights-api/internal/ports"
	"github.com/oakmont/insights-api/internal/session"
)

type authClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *authClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *authClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type authFixture struct {
	svc       *AuthService
	clock     *authClock
	local     *mocks.MemoryLocalUserStore
	dirUsers  *mocks.MemoryDirectoryUserStore
	federated *mocks.MemoryFederatedStore
	directory *mocks.MockDirectoryAuthenticator
	term      *mocks.MemoryTerminator
	managers  *mocks.MemoryManagerStore
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	clock := &authClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := session.NewCodec(session.CodecOptions{
		Secret:       "test-secret",
		Lifetime:     30 * time.Minute,
		RefreshAfter: 10 * time.Minute,
		Now:          clock.now,
	})
	require.NoError(t, err)

	f := &authFixture{
		clock:     clock,
		local:     mocks.NewMemoryLocalUserStore(),
		dirUsers:  mocks.NewMemoryDirectoryUserStore(),
		federated: mocks.NewMemoryFederatedStore(),
		directory: &mocks.MockDirectoryAuthenticator{},
		term:      mocks.NewMemoryTerminator(),
		managers:  mocks.NewMemoryManagerStore(),
	}
	f.svc = NewAuthService(AuthServiceOptions{
		Codec:          codec,
		Directory:      f.directory,
		LocalUsers:     f.local,
		DirectoryUsers: f.dirUsers,
		Federated:      f.federated,
		Terminator:     f.term,
		Managers:       f.managers,
	})
	return f
}

func seedLocalUser(t *testing.T, f *authFixture, id int64, email, password string, role identity.Role) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	*f.local = *mocks.NewMemoryLocalUserStore(ports.LocalUser{
		ID: id, Email: email, PasswordHash: string(hash), Role: role,
	})
}

func TestLocalLogin(t *testing.T) {
	f := newAuthFixture(t)
	seedLocalUser(t, f, 7, "pat@acme.com", "hunter2", identity.RoleAdmin)
	ctx := context.Background()

	t.Run("success issues credential", func(t *testing.T) {
		sess, err := f.svc.LocalLogin(ctx, "pat@acme.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "7", sess.Credential.Subject.String())
		assert.Equal(t, identity.RoleAdmin, sess.Credential.Role)
		assert.NotEmpty(t, sess.Token)
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		_, errWrong := f.svc.LocalLogin(ctx, "pat@acme.com", "nope")
		_, errUnknown := f.svc.LocalLogin(ctx, "ghost@acme.com", "hunter2")

		require.Error(t, errWrong)
		require.Error(t, errUnknown)
		assert.True(t, apperrors.IsUnauthorized(errWrong))
		assert.True(t, apperrors.IsUnauthorized(errUnknown))
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})
}

func TestDirectoryLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success records attributes and tags subject", func(t *testing.T) {
		f := newAuthFixture(t)
		f.directory.Result = ports.DirectoryResult{
			Authenticated: true,
			DN:            "cn=alice,ou=users,dc=acme,dc=com",
			DisplayName:   "Alice Liddell",
			Email:         "alice@acme.com",
		}

		sess, err := f.svc.DirectoryLogin(ctx, "alice@acme.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "ldap_alice", sess.Credential.Subject.String())

		stored, err := f.dirUsers.FindByAccountName(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Alice Liddell", stored.DisplayName)
	})

	t.Run("rejected credentials get the generic message", func(t *testing.T) {
		f := newAuthFixture(t)
		f.directory.Result = ports.DirectoryResult{Authenticated: false}

		_, err := f.svc.DirectoryLogin(ctx, "alice", "wrong")
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("unreachable directory is a distinct retryable error", func(t *testing.T) {
		f := newAuthFixture(t)
		f.directory.Err = errors.New("dial tcp: connection refused")

		_, err := f.svc.DirectoryLogin(ctx, "alice", "secret")
		assert.True(t, apperrors.IsUnavailable(err))
		assert.False(t, apperrors.IsUnauthorized(err))
	})

	t.Run("disabled account is forbidden", func(t *testing.T) {
		f := newAuthFixture(t)
		*f.dirUsers = *mocks.NewMemoryDirectoryUserStore(identity.DirectoryPrincipal{
			AccountName: "alice", Role: identity.RoleUser, Active: false,
		})
		f.directory.Result = ports.DirectoryResult{Authenticated: true}

		_, err := f.svc.DirectoryLogin(ctx, "alice", "secret")
		assert.True(t, apperrors.IsForbidden(err))
	})
}

func TestAuthenticate_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("missing credential", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Authenticate(ctx, "")
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("malformed credential", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Authenticate(ctx, "not-a-token")
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("expired credential", func(t *testing.T) {
		f := newAuthFixture(t)
		seedLocalUser(t, f, 7, "pat@acme.com", "hunter2", identity.RoleUser)
		sess, err := f.svc.LocalLogin(ctx, "pat@acme.com", "hunter2")
		require.NoError(t, err)

		f.clock.advance(31 * time.Minute)
		_, err = f.svc.Authenticate(ctx, sess.Token)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("directory claims are trusted without re-query", func(t *testing.T) {
		f := newAuthFixture(t)
		f.directory.Result = ports.DirectoryResult{Authenticated: true, Email: "alice@acme.com"}
		sess, err := f.svc.DirectoryLogin(ctx, "alice", "secret")
		require.NoError(t, err)

		// Even with the backing record gone, the credential still stands.
		*f.dirUsers = *mocks.NewMemoryDirectoryUserStore()

		req, err := f.svc.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		dp, ok := req.Principal.(identity.DirectoryPrincipal)
		require.True(t, ok)
		assert.Equal(t, "alice", dp.AccountName)
	})

	t.Run("federated principal is re-fetched and store role wins", func(t *testing.T) {
		f := newAuthFixture(t)
		*f.federated = *mocks.NewMemoryFederatedStore(identity.FederatedPrincipal{
			ProviderID: "108234", Email: "dave@acme.com", Role: identity.RoleManager, Active: true,
		})

		// Token issued back when the store still said role user.
		token := mustIssue(t, f, identity.FederatedPrincipal{
			ProviderID: "108234", Email: "dave@acme.com", Role: identity.RoleUser, Active: true,
		})
		req, err := f.svc.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleManager, req.Principal.PrincipalRole())
	})

	t.Run("inactive federated principal is forbidden", func(t *testing.T) {
		f := newAuthFixture(t)
		*f.federated = *mocks.NewMemoryFederatedStore(identity.FederatedPrincipal{
			ProviderID: "108234", Active: false, Role: identity.RoleUser,
		})

		token := mustIssue(t, f, identity.FederatedPrincipal{ProviderID: "108234", Role: identity.RoleUser})
		_, err := f.svc.Authenticate(ctx, token)
		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("missing federated principal is unauthorized", func(t *testing.T) {
		f := newAuthFixture(t)
		token := mustIssue(t, f, identity.FederatedPrincipal{ProviderID: "ghost", Role: identity.RoleUser})
		_, err := f.svc.Authenticate(ctx, token)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("missing local principal is unauthorized", func(t *testing.T) {
		f := newAuthFixture(t)
		token := mustIssue(t, f, identity.LocalPrincipal{ID: 99, Role: identity.RoleUser})
		_, err := f.svc.Authenticate(ctx, token)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("revoked subject is unauthorized", func(t *testing.T) {
		f := newAuthFixture(t)
		seedLocalUser(t, f, 7, "pat@acme.com", "hunter2", identity.RoleUser)
		sess, err := f.svc.LocalLogin(ctx, "pat@acme.com", "hunter2")
		require.NoError(t, err)

		require.NoError(t, f.term.Terminate(ctx, sess.Principal.Subject()))
		_, err = f.svc.Authenticate(ctx, sess.Token)
		assert.True(t, apperrors.IsUnauthorized(err))
	})
}

func TestAuthenticate_AdvisoryRefresh(t *testing.T) {
	f := newAuthFixture(t)
	seedLocalUser(t, f, 7, "pat@acme.com", "hunter2", identity.RoleUser)
	ctx := context.Background()

	sess, err := f.svc.LocalLogin(ctx, "pat@acme.com", "hunter2")
	require.NoError(t, err)

	t.Run("fresh credential is not reissued", func(t *testing.T) {
		req, err := f.svc.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		assert.Nil(t, req.Refreshed)
	})

	t.Run("aged credential gets a strictly newer one", func(t *testing.T) {
		f.clock.advance(11 * time.Minute)

		req, err := f.svc.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		require.NotNil(t, req.Refreshed)
		assert.True(t, req.Refreshed.Credential.IssuedAt.After(req.Credential.IssuedAt),
			"reissued credential has a later IssuedAt")
		// The current request still proceeds on the old claims.
		assert.Equal(t, sess.Credential.IssuedAt, req.Credential.IssuedAt)
	})
}

func TestManagers(t *testing.T) {
	ctx := context.Background()
	sub := identity.Subject{Kind: identity.KindDirectory, Name: "alice"}

	t.Run("recorded references come back for the subject", func(t *testing.T) {
		f := newAuthFixture(t)
		f.managers.Seed(sub, identity.ManagerReference{
			UserID:      "bob",
			Email:       "bob@acme.com",
			DisplayName: "Bob",
			UserType:    identity.ManagerTypeDirectory,
		})

		refs, err := f.svc.Managers(ctx, sub)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "bob@acme.com", refs[0].Email)
	})

	t.Run("subject without references gets an empty list", func(t *testing.T) {
		f := newAuthFixture(t)
		refs, err := f.svc.Managers(ctx, sub)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("no store wired yields an empty list", func(t *testing.T) {
		f := newAuthFixture(t)
		f.svc.managers = nil
		refs, err := f.svc.Managers(ctx, sub)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		f := newAuthFixture(t)
		f.managers.Err = errors.New("connection reset")
		_, err := f.svc.Managers(ctx, sub)
		assert.Error(t, err)
	})
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	seedLocalUser(t, f, 7, "pat@acme.com", "hunter2", identity.RoleUser)
	ctx := context.Background()

	sess, err := f.svc.LocalLogin(ctx, "pat@acme.com", "hunter2")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, sess.Token))
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.True(t, apperrors.IsUnauthorized(err))

	t.Run("garbage token is a no-op", func(t *testing.T) {
		assert.NoError(t, f.svc.Logout(ctx, "not-a-token"))
	})
}

func mustIssue(t *testing.T, f *authFixture, p identity.Principal) string {
	t.Helper()
	sess, err := f.svc.issue(p)
	require.NoError(t, err)
	return sess.Token
}
