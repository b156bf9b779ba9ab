package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	googleadapter "github.com/oakmont/insights-api/internal/adapters/google"
	"github.com/oakmont/insights-api/internal/domain/identity"
	apperrors "github.com/oakmont/insights-api/internal/errors"
	"github.com/oakmont/insights-api/internal/ports"
	"github.com/oakmont/insights-api/internal/session"
)

// GoogleServiceOptions groups dependencies for GoogleService.
type GoogleServiceOptions struct {
	Broker    ports.OAuthBroker
	Federated ports.FederatedStore
	Codec     *session.Codec
	// Vault is the optional mail ingestion integration. Nil disables the
	// auto-skip onboarding optimization and sync-flow token propagation;
	// nothing else changes.
	Vault  ports.MailTokenVault
	Locks  *KeyMutex
	Logger *slog.Logger
}

// GoogleService orchestrates the two Google authorization flows over one
// shared callback.
type GoogleService struct {
	broker    ports.OAuthBroker
	federated ports.FederatedStore
	codec     *session.Codec
	vault     ports.MailTokenVault
	locks     *KeyMutex
	logger    *slog.Logger
}

// NewGoogleService constructs a new GoogleService.
func NewGoogleService(opts GoogleServiceOptions) *GoogleService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locks := opts.Locks
	if locks == nil {
		locks = NewKeyMutex()
	}
	return &GoogleService{
		broker:    opts.Broker,
		federated: opts.Federated,
		codec:     opts.Codec,
		vault:     opts.Vault,
		locks:     locks,
		logger:    logger,
	}
}

// BeginLogin builds the identity-scope authorization URL for an anonymous
// visitor.
func (s *GoogleService) BeginLogin() (string, error) {
	state, err := googleadapter.EncodeState(googleadapter.State{
		Nonce: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	return s.broker.LoginURL(state), nil
}

// BeginSync builds the elevated-scope authorization URL for an
// authenticated federated principal. The acting subject travels in the
// state payload because Google's elevated-scope token response may omit
// profile claims.
func (s *GoogleService) BeginSync(p identity.Principal) (string, error) {
	fp, ok := p.(identity.FederatedPrincipal)
	if !ok {
		return "", apperrors.Validation("mail sync requires a Google-backed account")
	}

	state, err := googleadapter.EncodeState(googleadapter.State{
		Subject: fp.Subject().String(),
		Email:   fp.Email,
		IsSync:  true,
		Nonce:   uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	return s.broker.SyncURL(state), nil
}

// CallbackResult is the outcome of the shared OAuth callback.
type CallbackResult struct {
	Session *IssuedSession
	// IsSync distinguishes which flow completed, for redirect selection.
	IsSync bool
	// Unsaved marks a login that proceeded on an in-memory principal after
	// the identity store rejected the write.
	Unsaved bool
}

// HandleCallback completes whichever flow the state payload identifies.
func (s *GoogleService) HandleCallback(ctx context.Context, stateParam, code string) (*CallbackResult, error) {
	if stateParam == "" {
		return nil, apperrors.Validation("missing state parameter")
	}
	state, err := googleadapter.DecodeState(stateParam)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid state parameter")
	}

	ident, tokens, err := s.broker.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "token exchange failed")
	}

	if state.IsSync {
		return s.completeSync(ctx, state, tokens)
	}
	return s.completeLogin(ctx, ident, tokens)
}

// completeLogin finds-or-creates the federated identity. Tokens are stored
// only when the record has none yet, so a login-scope grant never replaces
// an earlier mail-scope one. A store failure degrades to an in-memory
// principal rather than blocking the login.
func (s *GoogleService) completeLogin(
	ctx context.Context,
	ident ports.ProviderIdentity,
	tokens identity.OAuthTokens,
) (*CallbackResult, error) {
	if ident.ProviderID == "" {
		return nil, apperrors.Unauthorized("provider returned no identity")
	}

	up := ports.FederatedUpsert{
		ProviderID:  ident.ProviderID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		Picture:     ident.Picture,
		Tokens:      &tokens,
	}

	p, created, err := s.federated.FindOrCreate(ctx, up)
	if err != nil {
		s.logger.ErrorContext(ctx, "federated identity write failed; proceeding unsaved",
			"provider_id", ident.ProviderID, "error", err)
		unsaved := identity.FederatedPrincipal{
			ProviderID:  ident.ProviderID,
			Email:       strings.ToLower(ident.Email),
			DisplayName: ident.DisplayName,
			Picture:     ident.Picture,
			Role:        identity.RoleUser,
			Active:      true,
			Tokens:      &tokens,
		}
		sess, issueErr := s.issue(unsaved)
		if issueErr != nil {
			return nil, issueErr
		}
		return &CallbackResult{Session: sess, Unsaved: true}, nil
	}

	if (created || !p.OnboardingComplete) && s.autoSkip(ctx, p.Email) {
		if err := s.federated.SetOnboarding(ctx, p.ProviderID, true, true); err != nil {
			s.logger.WarnContext(ctx, "auto-skip onboarding update failed",
				"provider_id", p.ProviderID, "error", err)
		} else {
			p.OnboardingComplete = true
			p.MailSynced = true
		}
	}

	sess, err := s.issue(p)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{Session: sess}, nil
}

// completeSync overwrites the stored grant with the elevated-scope one and
// marks onboarding complete. The acting principal comes from the state
// payload, not the token response.
func (s *GoogleService) completeSync(
	ctx context.Context,
	state googleadapter.State,
	tokens identity.OAuthTokens,
) (*CallbackResult, error) {
	sub, err := identity.ParseSubject(state.Subject)
	if err != nil || sub.Kind != identity.KindFederated {
		return nil, apperrors.Validation("sync state does not identify a Google-backed account")
	}
	providerID := sub.Name

	if err := s.federated.ReplaceTokens(ctx, providerID, tokens); err != nil {
		return nil, fmt.Errorf("store elevated-scope grant: %w", err)
	}
	if err := s.federated.SetOnboarding(ctx, providerID, true, true); err != nil {
		return nil, fmt.Errorf("mark onboarding complete: %w", err)
	}

	s.propagateToVault(ctx, state.Email, tokens)

	p, err := s.federated.FindByProviderID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("reload federated identity: %w", err)
	}

	sess, err := s.issue(p)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{Session: sess, IsSync: true}, nil
}

// SkipOnboarding marks onboarding complete without granting mail access.
func (s *GoogleService) SkipOnboarding(ctx context.Context, p identity.Principal) (identity.FederatedPrincipal, error) {
	fp, ok := p.(identity.FederatedPrincipal)
	if !ok {
		return identity.FederatedPrincipal{}, apperrors.Validation("onboarding applies to Google-backed accounts only")
	}
	if err := s.federated.SetOnboarding(ctx, fp.ProviderID, true, false); err != nil {
		return identity.FederatedPrincipal{}, fmt.Errorf("skip onboarding: %w", err)
	}
	fp.OnboardingComplete = true
	fp.MailSynced = false
	return fp, nil
}

// autoSkip reports whether the mail ingestion store already holds an
// active token for the email, meaning the mailbox was wired up through
// another path and the user should not be asked to consent again. Vault
// failures disable the optimization for this login, nothing more.
func (s *GoogleService) autoSkip(ctx context.Context, email string) bool {
	if s.vault == nil || email == "" {
		return false
	}
	has, err := s.vault.HasActiveToken(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "mail token lookup failed", "error", err)
		return false
	}
	return has
}

// propagateToVault records the elevated-scope grant in the mail ingestion
// store. Account-id allocation serializes per email; a failure is logged
// and swallowed because the primary record already holds the grant.
func (s *GoogleService) propagateToVault(ctx context.Context, email string, tokens identity.OAuthTokens) {
	if s.vault == nil || email == "" {
		return
	}

	s.locks.Lock(email)
	defer s.locks.Unlock(email)

	if _, err := s.vault.Store(ctx, ports.MailTokenRecord{
		Email:  email,
		Tokens: tokens,
		Active: true,
	}); err != nil {
		s.logger.ErrorContext(ctx, "mail token store failed", "error", err)
	}
}

func (s *GoogleService) issue(p identity.Principal) (*IssuedSession, error) {
	token, cred, err := s.codec.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	return &IssuedSession{Principal: p, Token: token, Credential: cred}, nil
}
