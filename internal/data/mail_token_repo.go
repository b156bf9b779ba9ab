package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgerrcode"

	"github.com/oakmont/insights-api/internal/data/cryptoutil"
	"github.com/oakmont/insights-api/internal/data/pgxutil"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/ports"
)

// MailTokenRepo is the persistence side of the mail ingestion integration.
// Each record carries a sequential account id allocated at insert time; the
// ingestion system addresses mailboxes by that id, so ids must be dense and
// never reused while a record exists.
type MailTokenRepo struct {
	DB        *sql.DB
	encryptor cryptoutil.Encryptor
}

// MailTokenRepoOptions bundles dependencies for NewMailTokenRepo.
type MailTokenRepoOptions struct {
	DB        *sql.DB
	Encryptor cryptoutil.Encryptor
}

// NewMailTokenRepo creates a new MailTokenRepo.
func NewMailTokenRepo(opts MailTokenRepoOptions) (*MailTokenRepo, error) {
	if opts.DB == nil {
		return nil, errors.New("db is required")
	}
	if opts.Encryptor == nil {
		return nil, errors.New("token encryptor is required")
	}
	return &MailTokenRepo{DB: opts.DB, encryptor: opts.Encryptor}, nil
}

// HasActiveToken reports whether an active, token-bearing record exists for
// the email.
func (r *MailTokenRepo) HasActiveToken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM mail_tokens
				WHERE lower(email) = lower($1) AND active AND token_cipher IS NOT NULL
			)`,
			strings.TrimSpace(email),
		).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("check mail token: %w", err)
	}
	return exists, nil
}

// Store persists a record, allocating the next sequential account id inside
// the insert itself. The subquery and insert execute as one statement, so
// two concurrent stores cannot both read the same MAX; the loser hits the
// unique constraint and retries once with a fresh allocation.
func (r *MailTokenRepo) Store(ctx context.Context, rec ports.MailTokenRecord) (int64, error) {
	if strings.TrimSpace(rec.Email) == "" {
		return 0, errors.New("email is required")
	}

	cipher, err := r.encryptTokens(rec.Tokens)
	if err != nil {
		return 0, err
	}

	var accountID int64
	for attempt := 0; attempt < 2; attempt++ {
		err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
			return conn.QueryRow(ctx, `
				INSERT INTO mail_tokens (account_id, email, token_cipher, active)
				SELECT COALESCE(MAX(account_id), 0) + 1, $1, $2, $3 FROM mail_tokens
				ON CONFLICT (email) DO UPDATE SET
					token_cipher = EXCLUDED.token_cipher,
					active = EXCLUDED.active,
					updated_at = now()
				RETURNING account_id`,
				strings.ToLower(strings.TrimSpace(rec.Email)),
				cipher,
				rec.Active,
			).Scan(&accountID)
		})
		if err == nil {
			return accountID, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// Lost the account-id race; one retry reallocates.
			continue
		}
		break
	}
	return 0, fmt.Errorf("store mail token: %w", err)
}

// Deactivate marks the record for an email inactive without discarding the
// allocated account id.
func (r *MailTokenRepo) Deactivate(ctx context.Context, email string) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			UPDATE mail_tokens SET active = FALSE, updated_at = now()
			WHERE lower(email) = lower($1)`,
			strings.TrimSpace(email),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("deactivate mail token: %w", err)
	}
	return nil
}

func (r *MailTokenRepo) encryptTokens(tokens identity.OAuthTokens) (sql.NullString, error) {
	if tokens.AccessToken == "" {
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
