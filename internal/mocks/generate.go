// Package mocks provides test doubles for the identity and tenant ports.
//
// Hand-written in-memory fakes live in identity.go and are the default
// choice for unit tests. Type-safe gomock mocks are generated with
// go.uber.org/mock for interfaces where tests need call expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for TenantMappingStore interface from internal/ports.
// This creates MockTenantMappingStore with FindByDomain.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=tenant_mapping_store_mock.go github.com/oakmont/insights-api/internal/ports TenantMappingStore

// Generate mock for TenantDataReader interface from internal/ports.
// This creates MockTenantDataReader with FetchDataset.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=tenant_data_reader_mock.go github.com/oakmont/insights-api/internal/ports TenantDataReader
