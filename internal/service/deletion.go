package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oakmont/insights-api/internal/domain/identity"
	apperrors "github.com/oakmont/insights-api/internal/errors"
	"github.com/oakmont/insights-api/internal/ports"
)

// DeletionServiceOptions groups dependencies for DeletionService.
type DeletionServiceOptions struct {
	Terminator     ports.SessionTerminator
	LocalUsers     ports.LocalUserStore
	DirectoryUsers ports.DirectoryUserStore
	Federated      ports.FederatedStore
	Managers       ports.ManagerStore
	// Vault is optional; when present, the deleted principal's mail token
	// record is deactivated as secondary cleanup.
	Vault  ports.MailTokenVault
	Logger *slog.Logger
}

// DeletionService removes a principal's identity record. The sequence is
// two-phase and fail-closed: session termination must succeed before the
// record is touched, so a deleted user can never keep an outstanding live
// credential. Secondary cleanup failures are logged and swallowed; the
// deletion has already succeeded at that point.
type DeletionService struct {
	terminator     ports.SessionTerminator
	localUsers     ports.LocalUserStore
	directoryUsers ports.DirectoryUserStore
	federated      ports.FederatedStore
	managers       ports.ManagerStore
	vault          ports.MailTokenVault
	logger         *slog.Logger
}

// NewDeletionService constructs a new DeletionService.
func NewDeletionService(opts DeletionServiceOptions) *DeletionService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DeletionService{
		terminator:     opts.Terminator,
		localUsers:     opts.LocalUsers,
		directoryUsers: opts.DirectoryUsers,
		federated:      opts.Federated,
		managers:       opts.Managers,
		vault:          opts.Vault,
		logger:         logger,
	}
}

// Delete removes the principal's identity record.
func (s *DeletionService) Delete(ctx context.Context, p identity.Principal) error {
	sub := p.Subject()

	// Phase one: revoke credentials. Failure aborts the whole operation.
	if err := s.terminator.Terminate(ctx, sub); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable,
			"session termination failed; deletion aborted")
	}

	// Phase two: delete the primary identity record.
	var err error
	switch sub.Kind {
	case identity.KindLocal:
		err = s.localUsers.Delete(ctx, sub.LocalID)
	case identity.KindDirectory:
		err = s.directoryUsers.Delete(ctx, sub.Name)
	case identity.KindFederated:
		err = s.federated.Delete(ctx, sub.Name)
	default:
		err = fmt.Errorf("unknown principal kind %v", sub.Kind)
	}
	if err != nil {
		return fmt.Errorf("delete identity record: %w", err)
	}

	s.cleanup(ctx, p)
	return nil
}

// cleanup removes dependent records. Failures here do not undo the
// deletion; they are logged for a later reconciliation pass.
func (s *DeletionService) cleanup(ctx context.Context, p identity.Principal) {
	sub := p.Subject()

	if err := s.managers.DeleteForPrincipal(ctx, sub); err != nil {
		s.logger.ErrorContext(ctx, "manager reference cleanup failed",
			"subject", sub.String(), "error", err)
	}

	if s.vault != nil && sub.Kind == identity.KindFederated && p.PrincipalEmail() != "" {
		if err := s.vault.Deactivate(ctx, p.PrincipalEmail()); err != nil {
			s.logger.ErrorContext(ctx, "mail token cleanup failed",
				"subject", sub.String(), "error", err)
		}
	}
}
