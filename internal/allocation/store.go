package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/models"
)

// Store is everything the allocator needs from persistence.
//
// CommitAllocation is the unit of work: it inserts the order and its items and
// reserves every item at the order's dealer, or changes nothing at all. The
// reservation of each item must be conditional on availableQty still covering
// the quantity at commit time; when it does not the implementation returns an
// error matching database.ErrInsufficientStock. A clash on order number must
// match database.ErrDuplicateOrderNumber.
type Store interface {
	ProductsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	CandidateDealers(ctx context.Context, productIDs []uuid.UUID) ([]models.Dealer, error)
	CommitAllocation(ctx context.Context, draft models.Order) (*models.Order, error)
}
