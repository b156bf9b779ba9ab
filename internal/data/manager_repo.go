package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oakmont/insights-api/internal/data/pgxutil"
	"github.com/oakmont/insights-api/internal/domain/identity"
)

// ManagerRepo lists manager cross-references for a principal. References
// are non-owning: deleting a manager's own account leaves the reference
// rows in place until a cleanup pass removes them.
type ManagerRepo struct {
	DB *sql.DB
}

// NewManagerRepo creates a new ManagerRepo.
func NewManagerRepo(db *sql.DB) *ManagerRepo {
	return &ManagerRepo{DB: db}
}

type managerRow struct {
	UserID      string `db:"user_id"`
	Email       string `db:"email"`
	DisplayName string `db:"display_name"`
	UserType    string `db:"user_type"`
}

// ListForPrincipal returns the managers recorded for the given subject,
// zero or many.
func (r *ManagerRepo) ListForPrincipal(
	ctx context.Context,
	sub identity.Subject,
) ([]identity.ManagerReference, error) {
	subjectTag := sub.String()

	var rowsOut []managerRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT user_id, email, display_name, user_type
			FROM manager_refs
			WHERE subject = $1
			ORDER BY display_name, email`,
			subjectTag,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[managerRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list managers: %w", err)
	}

	res := make([]identity.ManagerReference, len(rowsOut))
	for i, row := range rowsOut {
		res[i] = identity.ManagerReference{
			UserID:      row.UserID,
			Email:       row.Email,
			DisplayName: row.DisplayName,
			UserType:    row.UserType,
		}
	}
	return res, nil
}

// Add records a manager reference for a subject.
func (r *ManagerRepo) Add(
	ctx context.Context,
	sub identity.Subject,
	ref identity.ManagerReference,
) error {
	if ref.UserType != identity.ManagerTypeDirectory && ref.UserType != identity.ManagerTypeFederated {
		return fmt.Errorf("invalid manager user type %q", ref.UserType)
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO manager_refs (subject, user_id, email, display_name, user_type)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (subject, user_id) DO UPDATE SET
				email = EXCLUDED.email,
				display_name = EXCLUDED.display_name,
				user_type = EXCLUDED.user_type`,
			sub.String(), ref.UserID, ref.Email, ref.DisplayName, ref.UserType,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("add manager reference: %w", err)
	}
	return nil
}

// DeleteForPrincipal removes all manager references recorded for a subject.
// Used by the deletion service's secondary cleanup.
func (r *ManagerRepo) DeleteForPrincipal(ctx context.Context, sub identity.Subject) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `DELETE FROM manager_refs WHERE subject = $1`, sub.String())
		return err
	})
	if err != nil {
		return fmt.Errorf("delete manager references: %w", err)
	}
	return nil
}
