package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/oakmont/insights-api/internal/data/cryptoutil"
	"github.com/oakmont/insights-api/internal/data/pgxutil"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/ports"
)

// FederatedRepo persists federated-identity records keyed by provider id.
// The provider token grant is stored as a single encrypted blob; the
// encryptor is mandatory so plaintext tokens never reach the database.
type FederatedRepo struct {
	DB           *sql.DB
	encryptor    cryptoutil.Encryptor
	timeProvider TimeProvider
}

// FederatedRepoOptions bundles dependencies for NewFederatedRepo.
type FederatedRepoOptions struct {
	DB        *sql.DB
	Encryptor cryptoutil.Encryptor
	// TimeProvider defaults to the system clock when nil.
	TimeProvider TimeProvider
}

// NewFederatedRepo creates a new FederatedRepo.
func NewFederatedRepo(opts FederatedRepoOptions) (*FederatedRepo, error) {
	if opts.DB == nil {
		return nil, errors.New("db is required")
	}
	if opts.Encryptor == nil {
		return nil, errors.New("token encryptor is required")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &FederatedRepo{
		DB:           opts.DB,
		encryptor:    opts.Encryptor,
		timeProvider: tp,
	}, nil
}

type federatedRow struct {
	ProviderID         string         `db:"provider_id"`
	Email              string         `db:"email"`
	DisplayName        string         `db:"display_name"`
	Picture            string         `db:"picture"`
	Role               string         `db:"role"`
	Active             bool           `db:"active"`
	OnboardingComplete bool           `db:"onboarding_complete"`
	MailSynced         bool           `db:"mail_synced"`
	TokenCipher        sql.NullString `db:"token_cipher"`
}

const federatedColumns = `provider_id, email, display_name, picture, role, active,
	onboarding_complete, mail_synced, token_cipher`

// FindByProviderID retrieves a federated identity.
func (r *FederatedRepo) FindByProviderID(
	ctx context.Context,
	providerID string,
) (identity.FederatedPrincipal, error) {
	var row federatedRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+federatedColumns+` FROM federated_identities WHERE provider_id = $1`,
			providerID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[federatedRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.FederatedPrincipal{}, ErrFederatedIdentityNotFound
		}
		return identity.FederatedPrincipal{}, fmt.Errorf("find federated identity: %w", err)
	}
	return r.toPrincipal(row)
}

// FindOrCreate is idempotent on provider id. Provider-asserted profile
// fields are always refreshed; the stored token grant is written only when
// the record holds none yet. A second concurrent call cannot create a
// duplicate because provider_id is the primary key.
func (r *FederatedRepo) FindOrCreate(
	ctx context.Context,
	up ports.FederatedUpsert,
) (identity.FederatedPrincipal, bool, error) {
	if up.ProviderID == "" {
		return identity.FederatedPrincipal{}, false, errors.New("provider id is required")
	}

	cipher, err := r.encryptTokens(up.Tokens)
	if err != nil {
		return identity.FederatedPrincipal{}, false, err
	}

	var row federatedRow
	var created bool
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO federated_identities (
				provider_id, email, display_name, picture, role, active,
				onboarding_complete, mail_synced, token_cipher, created_at
			) VALUES ($1, $2, $3, $4, $5, TRUE, FALSE, FALSE, $6, $7)
			ON CONFLICT (provider_id) DO UPDATE SET
				email = EXCLUDED.email,
				display_name = EXCLUDED.display_name,
				picture = EXCLUDED.picture,
				token_cipher = COALESCE(federated_identities.token_cipher, EXCLUDED.token_cipher),
				updated_at = now()
			RETURNING `+federatedColumns+`, (xmax = 0) AS inserted`,
			up.ProviderID,
			strings.ToLower(up.Email),
			up.DisplayName,
			up.Picture,
			string(identity.RoleUser),
			cipher,
			r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		type upsertRow struct {
			federatedRow
			Inserted bool `db:"inserted"`
		}
		out, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[upsertRow])
		if err != nil {
			return err
		}
		row = out.federatedRow
		created = out.Inserted
		return nil
	})
	if err != nil {
		return identity.FederatedPrincipal{}, false, fmt.Errorf("find or create federated identity: %w", err)
	}

	p, err := r.toPrincipal(row)
	return p, created, err
}

// ReplaceTokens unconditionally overwrites the stored grant.
func (r *FederatedRepo) ReplaceTokens(
	ctx context.Context,
	providerID string,
	tokens identity.OAuthTokens,
) error {
	cipher, err := r.encryptTokens(&tokens)
	if err != nil {
		return err
	}
	return r.updateOne(ctx,
		`UPDATE federated_identities SET token_cipher = $2, updated_at = now() WHERE provider_id = $1`,
		providerID, cipher,
	)
}

// SetOnboarding updates the onboarding flags.
func (r *FederatedRepo) SetOnboarding(
	ctx context.Context,
	providerID string,
	complete, mailSynced bool,
) error {
	return r.updateOne(ctx, `
		UPDATE federated_identities
		SET onboarding_complete = $2, mail_synced = $3, updated_at = now()
		WHERE provider_id = $1`,
		providerID, complete, mailSynced,
	)
}

// Delete removes a federated identity by provider id.
func (r *FederatedRepo) Delete(ctx context.Context, providerID string) error {
	return r.updateOne(ctx,
		`DELETE FROM federated_identities WHERE provider_id = $1`,
		providerID,
	)
}

func (r *FederatedRepo) updateOne(ctx context.Context, q string, args ...any) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, q, args...)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("update federated identity: %w", err)
	}
	if affected == 0 {
		return ErrFederatedIdentityNotFound
	}
	return nil
}

// encryptTokens serializes and encrypts a grant. Nil tokens map to SQL NULL.
func (r *FederatedRepo) encryptTokens(tokens *identity.OAuthTokens) (sql.NullString, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal token grant: %w", err)
	}
	cipher, err := r.encryptor.Encrypt(raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encrypt token grant: %w", err)
	}
	return sql.NullString{String: cipher, Valid: true}, nil
}

func (r *FederatedRepo) toPrincipal(row federatedRow) (identity.FederatedPrincipal, error) {
	p := identity.FederatedPrincipal{
		ProviderID:         row.ProviderID,
		Email:              row.Email,
		DisplayName:        row.DisplayName,
		Picture:            row.Picture,
		Role:               identity.Role(row.Role),
		Active:             row.Active,
		OnboardingComplete: row.OnboardingComplete,
		MailSynced:         row.MailSynced,
	}
	if row.TokenCipher.Valid {
		raw, err := r.encryptor.Decrypt(row.TokenCipher.String)
		if err != nil {
			return identity.FederatedPrincipal{}, fmt.Errorf("decrypt token grant: %w", err)
		}
		var tokens identity.OAuthTokens
		if err := json.Unmarshal(raw, &tokens); err != nil {
			return identity.FederatedPrincipal{}, fmt.Errorf("unmarshal token grant: %w", err)
		}
		p.Tokens = &tokens
	}
	return p, nil
}
