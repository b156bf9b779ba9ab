package session

// Package session implements the signed, time-bounded session credential.
// The credential carries the tagged subject identifier; the tag is the only
// place the string-prefix identity encoding appears.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oakmont/insights-api/internal/domain/identity"
	apperrors "github.com/oakmont/insights-api/internal/errors"
)

// Verification failure modes. Expired and malformed credentials are both
// rejected with 401, but callers may want to log them differently.
var (
	ErrExpired   = errors.New("session credential expired")
	ErrMalformed = errors.New("session credential malformed")
)

// Credential is the decoded session credential.
type Credential struct {
	Subject   identity.Subject
	Email     string
	Role      identity.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec issues and verifies session credentials.
type Codec struct {
	secret       []byte
	lifetime     time.Duration
	refreshAfter time.Duration
	now          func() time.Time
}

// CodecOptions groups dependencies for NewCodec.
type CodecOptions struct {
	// Secret signs credentials. Required.
	Secret string
	// Lifetime is the credential validity window (default 30m).
	Lifetime time.Duration
	// RefreshAfter is the credential age past which NeedsRefresh reports
	// true (default: Lifetime).
	RefreshAfter time.Duration
	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

// NewCodec constructs a Codec. Fails with a configuration error when no
// signing secret is provided.
func NewCodec(opts CodecOptions) (*Codec, error) {
	if opts.Secret == "" {
		return nil, apperrors.Configuration("session signing secret is not configured")
	}
	lifetime := opts.Lifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	refreshAfter := opts.RefreshAfter
	if refreshAfter <= 0 {
		refreshAfter = lifetime
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		secret:       []byte(opts.Secret),
		lifetime:     lifetime,
		refreshAfter: refreshAfter,
		now:          now,
	}, nil
}

// claims is the JWT claim shape. Subject holds the tagged identifier.
type claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a fresh credential for the principal.
func (c *Codec) Issue(p identity.Principal) (string, Credential, error) {
	now := c.now()
	cred := Credential{
		Subject:   p.Subject(),
		Email:     p.PrincipalEmail(),
		Role:      p.PrincipalRole(),
		IssuedAt:  now,
		ExpiresAt: now.Add(c.lifetime),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: cred.Email,
		Role:  string(cred.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.Subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
			ID:        uuid.NewString(),
		},
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", Credential{}, fmt.Errorf("sign credential: %w", err)
	}
	return signed, cred, nil
}

// Verify parses and validates a credential string. Failures are ErrExpired
// or ErrMalformed; the zero Credential is returned on failure.
func (c *Codec) Verify(token string) (Credential, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Credential{}, ErrExpired
		}
		return Credential{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	sub, err := identity.ParseSubject(cl.Subject)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	role := identity.Role(cl.Role)
	if !identity.ValidRole(role) {
		return Credential{}, fmt.Errorf("%w: unknown role %q", ErrMalformed, cl.Role)
	}

	cred := Credential{
		Subject: sub,
		Email:   cl.Email,
		Role:    role,
	}
	if cl.IssuedAt != nil {
		cred.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		cred.ExpiresAt = cl.ExpiresAt.Time
	}
	return cred, nil
}

// NeedsRefresh reports whether a verified credential has aged past the
// refresh threshold. Refresh is advisory: the current request proceeds on
// the old claims while a replacement is issued for the client transport.
func (c *Codec) NeedsRefresh(cred Credential) bool {
	if cred.IssuedAt.IsZero() {
		return false
	}
	return c.now().Sub(cred.IssuedAt) > c.refreshAfter
}
