package service

import (
	"context"
	"fmt"

	"github.com/oakmont/insights-api/internal/domain/tenant"
	"github.com/oakmont/insights-api/internal/ports"
)

// TenantService resolves a principal's email domain to its tenant schema.
type TenantService struct {
	mappings ports.TenantMappingStore
}

// NewTenantService constructs a new TenantService.
func NewTenantService(mappings ports.TenantMappingStore) *TenantService {
	return &TenantService{mappings: mappings}
}

// ResolveSchema maps an email to a tenant schema name. An email with no
// domain part, or a domain with no mapping, resolves to the empty string
// with no error: the caller treats it as zero visible tenant data.
func (s *TenantService) ResolveSchema(ctx context.Context, email string) (string, error) {
	domain := tenant.EmailDomain(email)
	if domain == "" {
		return "", nil
	}

	mapping, err := s.mappings.FindByDomain(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("resolve tenant for domain %q: %w", domain, err)
	}
	if mapping == nil {
		return "", nil
	}
	return mapping.TenantSchema, nil
}
