package intake

import (
	"context"

	"github.com/tripvera/travel-intake/internal/domain"
)

// Repository defines the data access contract for cases.
// Implementations must be safe for concurrent use.
type Repository interface {
	// SaveCase persists a fully-decided case together with its travellers
	// in a single transaction. Returns ErrDuplicateCase when another
	// request already stored the same idempotency key.
	SaveCase(ctx context.Context, c *domain.Case, travellers []domain.Traveller) error

	// GetByIdempotencyKey returns the case previously stored for the given
	// key. Returns ErrNotFound if no case exists.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Case, error)

	// GetByID returns a single case. Returns ErrNotFound if it doesn't exist.
	GetByID(ctx context.Context, caseID string) (*domain.Case, error)

	// ListTravellers returns the travellers attached to a case, in
	// insertion order.
	ListTravellers(ctx context.Context, caseID string) ([]domain.Traveller, error)

	// List returns cases matching the given filter, ordered by received_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Case, int, error)

	// RouteStats returns the number of cases per route.
	RouteStats(ctx context.Context) (map[domain.Route]int, error)
}

// ListFilter controls pagination and filtering for case lists.
type ListFilter struct {
	Route  string
	Limit  int
	Offset int
}
