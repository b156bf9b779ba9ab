package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/insights-api/internal/domain/identity"
	apperrors "github.com/oakmont/insights-api/internal/errors"
)

func newTestCodec(t *testing.T, now *time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(CodecOptions{
		Secret:       "test-secret",
		Lifetime:     30 * time.Minute,
		RefreshAfter: 30 * time.Minute,
		Now:          func() time.Time { return *now },
	})
	require.NoError(t, err)
	return c
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec(CodecOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, &now)

	principals := []identity.Principal{
		identity.LocalPrincipal{ID: 12, Email: "carol@example.com", Role: identity.RoleAdmin},
		identity.DirectoryPrincipal{AccountName: "alice", Email: "alice@example.com", Role: identity.RoleManager},
		identity.FederatedPrincipal{ProviderID: "108234", Email: "dave@example.com", Role: identity.RoleUser},
	}

	for _, p := range principals {
		token, issued, err := codec.Issue(p)
		require.NoError(t, err)
		assert.Equal(t, now, issued.IssuedAt)
		assert.Equal(t, now.Add(30*time.Minute), issued.ExpiresAt)

		got, err := codec.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, p.Subject(), got.Subject)
		assert.Equal(t, p.PrincipalEmail(), got.Email)
		assert.Equal(t, p.PrincipalRole(), got.Role)
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, &now)

	token, _, err := codec.Issue(identity.LocalPrincipal{ID: 1, Role: identity.RoleUser})
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_Malformed(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, &now)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", token)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, &now)

	other, err := NewCodec(CodecOptions{Secret: "different", Now: func() time.Time { return now }})
	require.NoError(t, err)

	token, _, err := other.Issue(identity.LocalPrincipal{ID: 1, Role: identity.RoleUser})
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.False(t, errors.Is(err, ErrExpired))
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	codec, err := NewCodec(CodecOptions{
		Secret:       "test-secret",
		Lifetime:     2 * time.Hour,
		RefreshAfter: 30 * time.Minute,
		Now:          func() time.Time { return now },
	})
	require.NoError(t, err)

	_, cred, err := codec.Issue(identity.LocalPrincipal{ID: 1, Role: identity.RoleUser})
	require.NoError(t, err)

	assert.False(t, codec.NeedsRefresh(cred))

	now = now.Add(29 * time.Minute)
	assert.False(t, codec.NeedsRefresh(cred))

	now = now.Add(2 * time.Minute)
	assert.True(t, codec.NeedsRefresh(cred))
}

func TestRefreshedCredentialIsStrictlyNewer(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	codec, err := NewCodec(CodecOptions{
		Secret:       "test-secret",
		Lifetime:     2 * time.Hour,
		RefreshAfter: 30 * time.Minute,
		Now:          func() time.Time { return now },
	})
	require.NoError(t, err)

	p := identity.DirectoryPrincipal{AccountName: "alice", Role: identity.RoleUser}
	_, old, err := codec.Issue(p)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	require.True(t, codec.NeedsRefresh(old))

	_, fresh, err := codec.Issue(p)
	require.NoError(t, err)
	assert.True(t, fresh.IssuedAt.After(old.IssuedAt))
}
