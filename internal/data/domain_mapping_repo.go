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

	"github.com/oakmont/insights-api/internal/data/database"
	"github.com/oakmont/insights-api/internal/data/pgxutil"
	"github.com/oakmont/insights-api/internal/domain/tenant"
)

// DomainMappingRepo provides database operations for email-domain to
// tenant-schema mappings. Domains are normalized before every read and
// write so `WWW.Acme.COM` and `acme.com` resolve to the same row.
type DomainMappingRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewDomainMappingRepo creates a new DomainMappingRepo.
func NewDomainMappingRepo(db *sql.DB) *DomainMappingRepo {
	return &DomainMappingRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewDomainMappingRepoWithTimeProvider creates a new DomainMappingRepo with a
// custom time provider.
func NewDomainMappingRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *DomainMappingRepo {
	return &DomainMappingRepo{DB: db, timeProvider: tp}
}

type domainMappingRow struct {
	ID           int64        `db:"id"`
	Domain       string       `db:"domain"`
	TenantSchema string       `db:"tenant_schema"`
	CreatedBy    string       `db:"created_by"`
	CreatedAt    sql.NullTime `db:"created_at"`
	UpdatedAt    sql.NullTime `db:"updated_at"`
}

func domainMappingColumns() []string {
	return []string{"id", "domain", "tenant_schema", "created_by", "created_at", "updated_at"}
}

// FindByDomain resolves a normalized domain to its mapping. A missing
// mapping is data, not a fault: it returns (nil, nil).
func (r *DomainMappingRepo) FindByDomain(
	ctx context.Context,
	domain string,
) (*tenant.DomainMapping, error) {
	normalized := tenant.NormalizeDomain(domain)
	if normalized == "" {
		return nil, nil
	}

	var row domainMappingRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, domain, tenant_schema, created_by, created_at, updated_at
			FROM domain_mappings WHERE domain = $1`,
			normalized,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainMappingRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find domain mapping: %w", err)
	}

	out := row.toMapping()
	return &out, nil
}

// Create inserts a mapping for the normalized form of the given domain.
func (r *DomainMappingRepo) Create(
	ctx context.Context,
	domain, tenantSchema, createdBy string,
) (*tenant.DomainMapping, error) {
	normalized := tenant.NormalizeDomain(domain)
	if normalized == "" {
		return nil, errors.New("domain is required")
	}
	if strings.TrimSpace(tenantSchema) == "" {
		return nil, errors.New("tenant schema is required")
	}

	var row domainMappingRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO domain_mappings (domain, tenant_schema, created_by, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, domain, tenant_schema, created_by, created_at, updated_at`,
			normalized,
			strings.TrimSpace(tenantSchema),
			createdBy,
			r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainMappingRow])
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrMappingDomainExists
		}
		return nil, fmt.Errorf("create domain mapping: %w", err)
	}

	out := row.toMapping()
	return &out, nil
}

// Delete removes a mapping by id.
func (r *DomainMappingRepo) Delete(ctx context.Context, id int64) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM domain_mappings WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete domain mapping: %w", err)
	}
	if affected == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// MappingListOptions filters and pages the mapping list.
type MappingListOptions struct {
	// Q matches a substring of the domain or schema.
	Q      string
	Limit  int
	Offset int
}

// List retrieves mappings ordered by domain.
func (r *DomainMappingRepo) List(
	ctx context.Context,
	opts MappingListOptions,
) ([]tenant.DomainMapping, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := []database.ListQueryOption{
		database.WithColumns(domainMappingColumns()...),
		database.WithLimit(limit),
		database.WithOffset(offset),
		database.WithOrderBy("domain", "ASC"),
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereRawCond("(domain ILIKE $1 OR tenant_schema ILIKE $2)", "%"+q+"%", "%"+q+"%"),
		))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("domain_mappings", queryOpts...))

	var rowsOut []domainMappingRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainMappingRow])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list domain mappings: %w", err)
	}

	res := make([]tenant.DomainMapping, len(rowsOut))
	for i := range rowsOut {
		res[i] = rowsOut[i].toMapping()
	}
	return res, nil
}

func (row domainMappingRow) toMapping() tenant.DomainMapping {
	m := tenant.DomainMapping{
		ID:           row.ID,
		Domain:       row.Domain,
		TenantSchema: row.TenantSchema,
		CreatedBy:    row.CreatedBy,
	}
	if row.CreatedAt.Valid {
		m.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		m.UpdatedAt = row.UpdatedAt.Time
	}
	return m
}
