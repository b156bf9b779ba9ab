package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgerrcode"

	"github.com/oakmont/insights-api/internal/data/pgxutil"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/ports"
)

// LocalUserRepo provides database operations for local (password) accounts.
type LocalUserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewLocalUserRepo creates a new LocalUserRepo with real time provider.
func NewLocalUserRepo(db *sql.DB) *LocalUserRepo {
	return &LocalUserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewLocalUserRepoWithTimeProvider creates a new LocalUserRepo with a custom
// time provider.
func NewLocalUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *LocalUserRepo {
	return &LocalUserRepo{DB: db, timeProvider: tp}
}

// localUserRow mirrors the users table.
type localUserRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
}

const localUserColumns = `id, email, password_hash, role`

// FindByID retrieves a local principal by row id.
func (r *LocalUserRepo) FindByID(ctx context.Context, id int64) (identity.LocalPrincipal, error) {
	row, err := r.findOne(ctx, `SELECT `+localUserColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return identity.LocalPrincipal{}, err
	}
	return identity.LocalPrincipal{ID: row.ID, Email: row.Email, Role: identity.Role(row.Role)}, nil
}

// FindByEmail retrieves a user row, including the password hash, for the
// login path. Email matching is case-insensitive.
func (r *LocalUserRepo) FindByEmail(ctx context.Context, email string) (ports.LocalUser, error) {
	row, err := r.findOne(ctx,
		`SELECT `+localUserColumns+` FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email),
	)
	if err != nil {
		return ports.LocalUser{}, err
	}
	return ports.LocalUser{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         identity.Role(row.Role),
	}, nil
}

// Create inserts a new local account.
func (r *LocalUserRepo) Create(
	ctx context.Context,
	email, passwordHash string,
	role identity.Role,
) (identity.LocalPrincipal, error) {
	if strings.TrimSpace(email) == "" {
		return identity.LocalPrincipal{}, errors.New("email is required")
	}
	if passwordHash == "" {
		return identity.LocalPrincipal{}, errors.New("password hash is required")
	}

	var row localUserRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (email, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING `+localUserColumns,
			strings.ToLower(strings.TrimSpace(email)),
			passwordHash,
			string(role),
			r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[localUserRow])
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return identity.LocalPrincipal{}, ErrUserEmailExists
		}
		return identity.LocalPrincipal{}, fmt.Errorf("create user: %w", err)
	}
	return identity.LocalPrincipal{ID: row.ID, Email: row.Email, Role: identity.Role(row.Role)}, nil
}

// Delete removes a local account by id.
func (r *LocalUserRepo) Delete(ctx context.Context, id int64) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *LocalUserRepo) findOne(ctx context.Context, q string, args ...any) (localUserRow, error) {
	var row localUserRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[localUserRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return localUserRow{}, ErrUserNotFound
		}
		return localUserRow{}, fmt.Errorf("find user: %w", err)
	}
	return row, nil
}
