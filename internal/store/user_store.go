package store

import (
	"context"
	"github.com/RezaEskandarii/userfire/types"
)

// UserStore handles user-related database operations.
type UserStore interface {
	// FindAll returns every user ordered by id.
	FindAll(ctx context.Context) ([]types.User, error)

	// FindByID returns nil, nil when no user has the given id.
	FindByID(ctx context.Context, id int64) (*types.User, error)

	Insert(ctx context.Context, input types.UserInput) (*types.User, error)

	// Update returns nil, nil when no user has the given id.
	Update(ctx context.Context, id int64, input types.UserInput) (*types.User, error)

	// Remove reports whether a row was deleted.
	Remove(ctx context.Context, id int64) (bool, error)

	// WithTransaction runs fn against a store bound to a single transaction.
	// The transaction commits only if fn returns nil.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx UserStore) error) error
}
