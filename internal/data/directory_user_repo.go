package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/oakmont/insights-api/internal/data/pgxutil"
	"github.com/oakmont/insights-api/internal/domain/identity"
)

// DirectoryUserRepo persists synchronized directory-user records. The
// directory itself stays authoritative for credentials; this table only
// mirrors the attributes the application needs between binds.
type DirectoryUserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewDirectoryUserRepo creates a new DirectoryUserRepo.
func NewDirectoryUserRepo(db *sql.DB) *DirectoryUserRepo {
	return &DirectoryUserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewDirectoryUserRepoWithTimeProvider creates a new DirectoryUserRepo with a
// custom time provider.
func NewDirectoryUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *DirectoryUserRepo {
	return &DirectoryUserRepo{DB: db, timeProvider: tp}
}

type directoryUserRow struct {
	AccountName string `db:"account_name"`
	DisplayName string `db:"display_name"`
	Email       string `db:"email"`
	Role        string `db:"role"`
	Active      bool   `db:"active"`
}

const directoryUserColumns = `account_name, display_name, email, role, active`

// FindByAccountName retrieves a directory user by its stable account name.
func (r *DirectoryUserRepo) FindByAccountName(
	ctx context.Context,
	accountName string,
) (identity.DirectoryPrincipal, error) {
	var row directoryUserRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+directoryUserColumns+` FROM directory_users WHERE account_name = $1`,
			strings.TrimSpace(accountName),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[directoryUserRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.DirectoryPrincipal{}, ErrDirectoryUserNotFound
		}
		return identity.DirectoryPrincipal{}, fmt.Errorf("find directory user: %w", err)
	}
	return row.toPrincipal(), nil
}

// Upsert records the latest directory attributes after a successful bind.
// Role and active flag are application-managed: an insert takes defaults, a
// conflicting row keeps its existing values.
func (r *DirectoryUserRepo) Upsert(
	ctx context.Context,
	p identity.DirectoryPrincipal,
) (identity.DirectoryPrincipal, error) {
	if strings.TrimSpace(p.AccountName) == "" {
		return identity.DirectoryPrincipal{}, errors.New("account name is required")
	}

	role := p.Role
	if role == "" {
		role = identity.RoleUser
	}

	var row directoryUserRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO directory_users (account_name, display_name, email, role, active, created_at)
			VALUES ($1, $2, $3, $4, TRUE, $5)
			ON CONFLICT (account_name) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				email = EXCLUDED.email,
				updated_at = now()
			RETURNING `+directoryUserColumns,
			strings.TrimSpace(p.AccountName),
			p.DisplayName,
			strings.ToLower(p.Email),
			string(role),
			r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[directoryUserRow])
		return err
	})
	if err != nil {
		return identity.DirectoryPrincipal{}, fmt.Errorf("upsert directory user: %w", err)
	}
	return row.toPrincipal(), nil
}

// Delete removes a directory-user record by account name.
func (r *DirectoryUserRepo) Delete(ctx context.Context, accountName string) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`DELETE FROM directory_users WHERE account_name = $1`,
			strings.TrimSpace(accountName),
		)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete directory user: %w", err)
	}
	if affected == 0 {
		return ErrDirectoryUserNotFound
	}
	return nil
}

func (row directoryUserRow) toPrincipal() identity.DirectoryPrincipal {
	return identity.DirectoryPrincipal{
		AccountName: row.AccountName,
		DisplayName: row.DisplayName,
		Email:       row.Email,
		Role:        identity.Role(row.Role),
		Active:      row.Active,
	}
}
