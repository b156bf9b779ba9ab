package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/oakmont/insights-api/internal/domain/identity"
	apperrors "github.com/oakmont/insights-api/internal/errors"
	"github.com/oakmont/insights-api/internal/ports"
	"github.com/oakmont/insights-api/internal/session"
)

// Login failures deliberately share one client-visible message so the
// response does not reveal whether the account exists.
const genericLoginFailure = "invalid credentials"

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Codec          *session.Codec
	Directory      ports.DirectoryAuthenticator
	LocalUsers     ports.LocalUserStore
	DirectoryUsers ports.DirectoryUserStore
	Federated      ports.FederatedStore
	Terminator     ports.SessionTerminator
	// Managers is optional; without it Managers() reports an empty list.
	Managers ports.ManagerStore
	Logger   *slog.Logger
}

// AuthService orchestrates the three login paths and per-request session
// authentication.
type AuthService struct {
	codec          *session.Codec
	directory      ports.DirectoryAuthenticator
	localUsers     ports.LocalUserStore
	directoryUsers ports.DirectoryUserStore
	federated      ports.FederatedStore
	terminator     ports.SessionTerminator
	managers       ports.ManagerStore
	logger         *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		codec:          opts.Codec,
		directory:      opts.Directory,
		localUsers:     opts.LocalUsers,
		directoryUsers: opts.DirectoryUsers,
		federated:      opts.Federated,
		terminator:     opts.Terminator,
		managers:       opts.Managers,
		logger:         logger,
	}
}

// IssuedSession pairs a signed credential token with its decoded claims and
// the resolved principal.
type IssuedSession struct {
	Principal  identity.Principal
	Token      string
	Credential session.Credential
}

// LocalLogin authenticates an email/password pair against the local user
// store and issues a session credential.
func (s *AuthService) LocalLogin(ctx context.Context, email, password string) (*IssuedSession, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.Unauthorized(genericLoginFailure)
	}

	user, err := s.localUsers.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsUnavailable(err) || apperrors.IsTimeout(err) {
			return nil, err
		}
		// "no such user" and "wrong password" must be indistinguishable.
		return nil, apperrors.Unauthorized(genericLoginFailure)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized(genericLoginFailure)
	}

	p := identity.LocalPrincipal{ID: user.ID, Email: user.Email, Role: user.Role}
	return s.issue(p)
}

// DirectoryLogin authenticates a username/password pair against the
// directory, records the returned attributes, and issues a session
// credential. Directory-unavailable surfaces as a distinct, retryable
// error; rejected credentials get the generic message.
func (s *AuthService) DirectoryLogin(ctx context.Context, username, password string) (*IssuedSession, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, apperrors.Unauthorized(genericLoginFailure)
	}

	res, err := s.directory.Authenticate(ctx, username, password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable,
			"directory service is unreachable; try again later")
	}
	if !res.Authenticated {
		return nil, apperrors.Unauthorized(genericLoginFailure)
	}

	p, err := s.directoryUsers.Upsert(ctx, identity.DirectoryPrincipal{
		AccountName: accountName(username),
		DisplayName: res.DisplayName,
		Email:       res.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("record directory user: %w", err)
	}
	if !p.Active {
		return nil, apperrors.Forbidden("account is disabled")
	}

	return s.issue(p)
}

// AuthenticatedRequest is the outcome of authenticating one request. When
// the presented credential aged past the refresh threshold, Refreshed
// carries a strictly newer token for the transport layer to propagate; the
// current request still proceeds on the old claims.
type AuthenticatedRequest struct {
	Principal  identity.Principal
	Credential session.Credential
	Refreshed  *IssuedSession
}

// Authenticate verifies a presented credential and revalidates the subject
// against its backing store. Directory claims are trusted as-is between
// logins; federated and local principals are re-fetched every request.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*AuthenticatedRequest, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("missing session credential")
	}

	cred, err := s.codec.Verify(token)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "session expired")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid session credential")
	}

	if s.revoked(ctx, cred.Subject) {
		return nil, apperrors.Unauthorized("session revoked")
	}

	p, err := s.resolvePrincipal(ctx, cred)
	if err != nil {
		return nil, err
	}

	out := &AuthenticatedRequest{Principal: p, Credential: cred}
	if s.codec.NeedsRefresh(cred) {
		refreshed, issueErr := s.issue(p)
		if issueErr != nil {
			// Refresh is advisory; the request proceeds on the old claims.
			s.logger.ErrorContext(ctx, "credential refresh failed",
				"subject", cred.Subject.String(), "error", issueErr)
		} else {
			out.Refreshed = refreshed
		}
	}
	return out, nil
}

func (s *AuthService) resolvePrincipal(ctx context.Context, cred session.Credential) (identity.Principal, error) {
	switch cred.Subject.Kind {
	case identity.KindDirectory:
		// No per-request directory re-query; the bind at login vouched for
		// these claims.
		return identity.DirectoryPrincipal{
			AccountName: cred.Subject.Name,
			Email:       cred.Email,
			Role:        cred.Role,
			Active:      true,
		}, nil

	case identity.KindFederated:
		p, err := s.federated.FindByProviderID(ctx, cred.Subject.Name)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "account not found")
		}
		if !p.Active {
			return nil, apperrors.Forbidden("account is disabled")
		}
		// Store role wins over whatever the token was issued with.
		return p, nil

	case identity.KindLocal:
		p, err := s.localUsers.FindByID(ctx, cred.Subject.LocalID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "account not found")
		}
		return p, nil
	}
	return nil, apperrors.Unauthorized("invalid session credential")
}

// revoked consults the revocation list. A list that cannot be reached does
// not lock every user out; the failure is logged and the credential is
// honored until it expires.
func (s *AuthService) revoked(ctx context.Context, sub identity.Subject) bool {
	if s.terminator == nil {
		return false
	}
	isRevoked, err := s.terminator.IsRevoked(ctx, sub)
	if err != nil {
		s.logger.ErrorContext(ctx, "revocation check failed",
			"subject", sub.String(), "error", err)
		return false
	}
	return isRevoked
}

// Managers lists the manager references recorded for the subject. Subjects
// with no recorded managers, and deployments without a manager store, get an
// empty list.
func (s *AuthService) Managers(ctx context.Context, sub identity.Subject) ([]identity.ManagerReference, error) {
	if s.managers == nil {
		return nil, nil
	}
	refs, err := s.managers.ListForPrincipal(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("list managers: %w", err)
	}
	return refs, nil
}

// Logout revokes the presented credential's subject. An invalid or
// already-expired credential is a no-op: there is nothing left to revoke.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" || s.terminator == nil {
		return nil
	}
	cred, err := s.codec.Verify(token)
	if err != nil {
		return nil
	}
	return s.terminator.Terminate(ctx, cred.Subject)
}

func (s *AuthService) issue(p identity.Principal) (*IssuedSession, error) {
	token, cred, err := s.codec.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	return &IssuedSession{Principal: p, Token: token, Credential: cred}, nil
}

// accountName reduces a supplied directory identifier to the stable account
// name: the local part when a UPN or email was typed, lower-cased.
func accountName(username string) string {
	name := strings.TrimSpace(username)
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}
