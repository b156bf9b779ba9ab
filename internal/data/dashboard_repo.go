package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oakmont/insights-api/internal/data/pgxutil"
	"github.com/oakmont/insights-api/internal/domain/dashboard"
)

// DashboardRepo reads the aggregated dashboard table out of a tenant's
// schema. The schema name arrives pre-resolved from the tenant mapping and
// is quoted as an identifier, never interpolated raw.
type DashboardRepo struct {
	DB *sql.DB
}

// NewDashboardRepo creates a new DashboardRepo.
func NewDashboardRepo(db *sql.DB) *DashboardRepo {
	return &DashboardRepo{DB: db}
}

type metricRow struct {
	Metric string    `db:"metric"`
	Day    time.Time `db:"day"`
	Value  float64   `db:"value"`
}

// FetchDataset retrieves the tenant's daily metrics.
func (r *DashboardRepo) FetchDataset(ctx context.Context, schema string) (dashboard.Dataset, error) {
	if schema == "" {
		return dashboard.Dataset{}, errors.New("schema is required")
	}

	table := pgx.Identifier{schema, "daily_metrics"}.Sanitize()

	var rowsOut []metricRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT metric, day, value FROM `+table+` ORDER BY day DESC, metric`,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[metricRow])
		return err
	})
	if err != nil {
		return dashboard.Dataset{}, fmt.Errorf("fetch daily metrics: %w", err)
	}

	ds := dashboard.Dataset{
		Schema:      schema,
		Rows:        make([]dashboard.MetricRow, len(rowsOut)),
		GeneratedAt: time.Now().UTC(),
	}
	for i, row := range rowsOut {
		ds.Rows[i] = dashboard.MetricRow{Metric: row.Metric, Day: row.Day, Value: row.Value}
	}
	return ds, nil
}
