package ports

import (
	"context"

	"github.com/oakmont/insights-api/internal/domain/dashboard"
)

// TenantDataReader fetches the dashboard dataset from a tenant's schema.
// Callers resolve the schema first; the reader never infers tenancy itself.
type TenantDataReader interface {
	FetchDataset(ctx context.Context, schema string) (dashboard.Dataset, error)
}
