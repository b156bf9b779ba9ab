package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oakmont/insights-api/internal/domain/tenant"
	"github.com/oakmont/insights-api/internal/mocks"
)

func TestResolveSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("mapped domain resolves to its schema", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockTenantMappingStore(ctrl)
		store.EXPECT().
			FindByDomain(gomock.Any(), "acme.com").
			Return(&tenant.DomainMapping{Domain: "acme.com", TenantSchema: "tenant_acme"}, nil)

		schema, err := NewTenantService(store).ResolveSchema(ctx, "pat@acme.com")
		require.NoError(t, err)
		assert.Equal(t, "tenant_acme", schema)
	})

	t.Run("domain is normalized before lookup", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockTenantMappingStore(ctrl)
		store.EXPECT().
			FindByDomain(gomock.Any(), "acme.com").
			Return(&tenant.DomainMapping{Domain: "acme.com", TenantSchema: "tenant_acme"}, nil)

		schema, err := NewTenantService(store).ResolveSchema(ctx, "Pat@WWW.Acme.COM")
		require.NoError(t, err)
		assert.Equal(t, "tenant_acme", schema)
	})

	t.Run("unmapped domain is empty, not an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockTenantMappingStore(ctrl)
		store.EXPECT().
			FindByDomain(gomock.Any(), "nowhere.test").
			Return(nil, nil)

		schema, err := NewTenantService(store).ResolveSchema(ctx, "pat@nowhere.test")
		require.NoError(t, err)
		assert.Empty(t, schema)
	})

	t.Run("email without a domain never hits the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockTenantMappingStore(ctrl)

		for _, email := range []string{"", "pat", "pat@"} {
			schema, err := NewTenantService(store).ResolveSchema(ctx, email)
			require.NoError(t, err)
			assert.Empty(t, schema)
		}
	})

	t.Run("store failure propagates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockTenantMappingStore(ctrl)
		store.EXPECT().
			FindByDomain(gomock.Any(), "acme.com").
			Return(nil, errors.New("connection reset"))

		_, err := NewTenantService(store).ResolveSchema(ctx, "pat@acme.com")
		assert.Error(t, err)
	})
}
