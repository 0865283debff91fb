package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/apperr"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/logger"
	"github.com/safar/go-dealer-router/internal/metrics"
	"github.com/safar/go-dealer-router/internal/models"
)

const defaultOrderNumberAttempts = 3

type OrderRequest struct {
	FarmerName      string
	FarmerPhone     string
	FarmerEmail     string
	Delivery        geo.Point
	DeliveryAddress string
	Items           []LineItem
}

type Allocator struct {
	store               Store
	log                 *logger.Logger
	metrics             *metrics.AllocationMetrics
	now                 func() time.Time
	orderNumber         func(time.Time) string
	orderNumberAttempts int
}

type Option func(*Allocator)

func WithLogger(log *logger.Logger) Option {
	return func(a *Allocator) { a.log = log }
}

func WithMetrics(m *metrics.AllocationMetrics) Option {
	return func(a *Allocator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

func WithOrderNumbers(gen func(time.Time) string, attempts int) Option {
	return func(a *Allocator) {
		if gen != nil {
			a.orderNumber = gen
		}
		if attempts > 0 {
			a.orderNumberAttempts = attempts
		}
	}
}

func New(store Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:               store,
		log:                 logger.Nop(),
		now:                 time.Now,
		orderNumber:         NewOrderNumber,
		orderNumberAttempts: defaultOrderNumberAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate routes req to the best dealer and commits the order, its items and
// the matching stock reservations in one unit of work. On any error nothing is
// persisted.
func (a *Allocator) Allocate(ctx context.Context, req OrderRequest) (*models.Order, error) {
	start := a.now()
	order, err := a.allocate(ctx, req)
	a.metrics.ObserveDuration(a.now().Sub(start))
	a.metrics.IncResult(resultLabel(err))
	return order, err
}

func (a *Allocator) allocate(ctx context.Context, req OrderRequest) (*models.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	productIDs := distinctProductIDs(req.Items)

	products, err := a.store.ProductsByID(ctx, productIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load products")
	}
	for _, id := range productIDs {
		if _, ok := products[id]; !ok {
			return nil, apperr.Wrap(apperr.CodeNotFound, database.ErrProductNotFound,
				fmt.Sprintf("product with ID %s not found", id)).
				WithDetails(map[string]any{"product_id": id.String()})
		}
	}

	dealers, err := a.store.CandidateDealers(ctx, productIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load candidate dealers")
	}

	matches := make([]DealerMatch, 0, len(dealers))
	for _, dealer := range dealers {
		if !carriesAny(dealer, productIDs) {
			continue
		}
		match, err := EvaluateDealer(dealer, req.Items, products, req.Delivery)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	a.metrics.ObserveCandidates(len(matches))
	a.log.Debug(a.log.WithFields(ctx, map[string]any{
		"candidates": len(matches),
		"items":      len(req.Items),
	}), "allocation.evaluated")

	best, err := SelectDealer(matches)
	if err != nil {
		a.log.Warn(a.log.WithField(ctx, "candidates", len(matches)), "allocation.rejected")
		return nil, apperr.Wrap(apperr.CodeInsufficientStock, err,
			"no dealer found with sufficient stock to fulfill this order").
			WithDetails(map[string]any{"candidates": len(matches)})
	}

	draft := a.draftOrder(req, best)

	order, err := a.commit(ctx, draft)
	if err != nil {
		return nil, err
	}

	a.log.Info(a.log.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"dealer_id":    best.Dealer.ID.String(),
		"total_amount": order.TotalAmount.String(),
		"distance_km":  order.DistanceKm,
	}), "allocation.committed")

	return order, nil
}

func (a *Allocator) draftOrder(req OrderRequest, best DealerMatch) models.Order {
	dealerID := best.Dealer.ID
	now := a.now().UTC()

	items := make([]models.OrderItem, 0, len(best.Items))
	for _, line := range best.Items {
		items = append(items, models.OrderItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit,
			TotalPrice:   line.TotalPrice,
		})
	}

	return models.Order{
		FarmerName:        req.FarmerName,
		FarmerPhone:       req.FarmerPhone,
		FarmerEmail:       req.FarmerEmail,
		DeliveryLatitude:  req.Delivery.Latitude,
		DeliveryLongitude: req.Delivery.Longitude,
		DeliveryAddress:   req.DeliveryAddress,
		DealerID:          &dealerID,
		Dealer: &models.DealerSummary{
			ID:      best.Dealer.ID,
			Name:    best.Dealer.Name,
			Phone:   best.Dealer.Phone,
			Address: best.Dealer.Address,
		},
		Status:                 models.OrderStatusConfirmed,
		TotalAmount:            best.TotalCost,
		DistanceKm:             geo.RoundKm(best.DistanceKm),
		EstimatedDeliveryHours: EstimateDeliveryHours(best.DistanceKm),
		ConfirmedAt:            &now,
		Items:                  items,
	}
}

// commit retries only order number clashes. A stock conflict means another
// allocation won the race; the caller should re-run the whole allocation.
func (a *Allocator) commit(ctx context.Context, draft models.Order) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt < a.orderNumberAttempts; attempt++ {
		draft.OrderNumber = a.orderNumber(a.now())

		order, err := a.store.CommitAllocation(ctx, draft)
		switch {
		case err == nil:
			return order, nil
		case errors.Is(err, database.ErrDuplicateOrderNumber):
			lastErr = err
			a.log.Warn(a.log.WithField(ctx, "order_number", draft.OrderNumber), "allocation.order_number_clash")
			continue
		case errors.Is(err, database.ErrInsufficientStock):
			a.log.Warn(a.log.WithField(ctx, "dealer_id", draft.DealerID.String()), "allocation.reservation_conflict")
			return nil, apperr.Wrap(apperr.CodeInsufficientStock, err,
				"stock changed while the order was being allocated; retry the order").
				WithDetails(map[string]any{"dealer_id": draft.DealerID.String()})
		case apperr.As(err) != nil:
			return nil, err
		default:
			return nil, apperr.Wrap(apperr.CodeInternal, err, "commit allocation")
		}
	}
	return nil, apperr.Wrap(apperr.CodeConflict, lastErr,
		fmt.Sprintf("could not assign a unique order number after %d attempts", a.orderNumberAttempts))
}

func validateRequest(req OrderRequest) error {
	if len(req.Items) == 0 {
		return apperr.New(apperr.CodeValidation, "order must contain at least one item")
	}
	if err := req.Delivery.Validate(); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, err.Error())
	}
	for i, item := range req.Items {
		if item.ProductID == uuid.Nil {
			return apperr.Newf(apperr.CodeValidation, "item %d has no product id", i)
		}
		if !item.Quantity.IsPositive() {
			return apperr.Newf(apperr.CodeValidation, "item %d quantity %s must be greater than 0", i, item.Quantity)
		}
	}
	return nil
}

func distinctProductIDs(items []LineItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func resultLabel(err error) string {
	if err == nil {
		return metrics.ResultConfirmed
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeInsufficientStock:
		return metrics.ResultInsufficientStock
	case apperr.CodeNotFound:
		return metrics.ResultNotFound
	case apperr.CodeValidation:
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
