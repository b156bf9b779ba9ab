package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/ports"
)

// Terminator implements ports.SessionTerminator with a Redis revocation
// list. Credentials are stateless, so termination is recorded out of band:
// a revocation marker keyed by subject, held for at least one credential
// lifetime so every outstanding credential for the subject dies before the
// marker does.
type Terminator struct {
	client redis.UniversalClient
	prefix string
	hold   time.Duration
}

// TerminatorOptions bundles dependencies for NewTerminator.
type TerminatorOptions struct {
	Client redis.UniversalClient
	// Hold is how long revocation markers persist. Must be at least the
	// session credential lifetime.
	Hold time.Duration
}

// NewTerminator creates a Terminator.
func NewTerminator(opts TerminatorOptions) (*Terminator, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Hold <= 0 {
		return nil, errors.New("revocation hold duration is required")
	}
	return &Terminator{
		client: opts.Client,
		prefix: "revoked:",
		hold:   opts.Hold,
	}, nil
}

var _ ports.SessionTerminator = (*Terminator)(nil)

// Terminate revokes all outstanding credentials for the subject.
func (t *Terminator) Terminate(ctx context.Context, sub identity.Subject) error {
	key := t.prefix + sub.String()
	if err := t.client.Set(ctx, key, "1", t.hold).Err(); err != nil {
		return fmt.Errorf("record revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether the subject's credentials have been revoked.
func (t *Terminator) IsRevoked(ctx context.Context, sub identity.Subject) (bool, error) {
	key := t.prefix + sub.String()
	n, err := t.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
