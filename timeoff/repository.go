package timeoff

import "context"

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// RawRecord is one record as the system of record returns it. Its field set
// selects the shape (see normalize.go); values may be numbers or strings.
type RawRecord map[string]any

// Repository is the network/storage layer holding raw records.
//
// Implementations:
//   - store/memory: camelCase records, for tests and local development
//   - store/sqlite: snake_case records backed by SQLite
type Repository interface {
	// FetchRequests returns raw records, only those owned by ownerID when it
	// is non-empty. Authorization is the caller's responsibility.
	FetchRequests(ctx context.Context, ownerID string) ([]RawRecord, error)

	// MutateStatus sets the approval status of a request.
	// Returns ErrRequestNotFound when no record has requestID.
	MutateStatus(ctx context.Context, requestID string, status Status) error

	// CreateRequest stores a new request and returns its assigned id.
	CreateRequest(ctx context.Context, req Request) (string, error)

	// DeleteRequest removes a request. Returns ErrRequestNotFound when absent.
	DeleteRequest(ctx context.Context, requestID string) error
}

// UserLookup resolves user ids. It returns (nil, nil) for unknown ids.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, id string) (*User, error)

func (f UserLookupFunc) GetUser(ctx context.Context, id string) (*User, error) { return f(ctx, id) }
