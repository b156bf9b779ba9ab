package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Local user repository sentinels.
	ErrUserNotFound    = errors.New("user not found")
	ErrUserEmailExists = errors.New("user email already exists")

	// Directory user repository sentinels.
	ErrDirectoryUserNotFound = errors.New("directory user not found")

	// Federated identity repository sentinels.
	ErrFederatedIdentityNotFound = errors.New("federated identity not found")

	// Domain mapping repository sentinels.
	ErrMappingNotFound     = errors.New("domain mapping not found")
	ErrMappingDomainExists = errors.New("domain mapping already exists")
)
