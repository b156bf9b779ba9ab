package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oakmont/insights-api/internal/core"
	"github.com/oakmont/insights-api/internal/domain/dashboard"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/ports"
)

// DashboardServiceOptions groups dependencies for DashboardService.
type DashboardServiceOptions struct {
	Tenants *TenantService
	Cache   *core.DailyCache
	Source  ports.TenantDataReader
	Logger  *slog.Logger
}

// DashboardService serves the tenant-scoped dashboard read path through
// the daily cache. The tenant is derived exclusively from the principal's
// email domain; requests carry no tenant parameter.
type DashboardService struct {
	tenants *TenantService
	cache   *core.DailyCache
	source  ports.TenantDataReader
	logger  *slog.Logger
}

// NewDashboardService constructs a new DashboardService.
func NewDashboardService(opts DashboardServiceOptions) *DashboardService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		tenants: opts.Tenants,
		cache:   opts.Cache,
		source:  opts.Source,
		logger:  logger,
	}
}

// GetDashboard returns the dataset for the principal's tenant. A principal
// whose domain has no mapping gets an empty dataset, never an error.
func (s *DashboardService) GetDashboard(ctx context.Context, p identity.Principal) (dashboard.Dataset, error) {
	schema, err := s.tenants.ResolveSchema(ctx, p.PrincipalEmail())
	if err != nil {
		return dashboard.Dataset{}, err
	}
	if schema == "" {
		return dashboard.Empty(time.Now().UTC()), nil
	}

	key := "dashboard:" + schema
	var cached dashboard.Dataset
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		// Treat an unreachable cache as a miss; the source still serves.
		s.logger.WarnContext(ctx, "dashboard cache read failed", "schema", schema, "error", err)
	} else if hit {
		return cached, nil
	}

	ds, err := s.source.FetchDataset(ctx, schema)
	if err != nil {
		return dashboard.Dataset{}, fmt.Errorf("fetch dashboard for schema %q: %w", schema, err)
	}

	if err := s.cache.Set(ctx, key, ds); err != nil {
		s.logger.WarnContext(ctx, "dashboard cache write failed", "schema", schema, "error", err)
	}
	return ds, nil
}
