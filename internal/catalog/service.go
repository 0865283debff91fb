// Package catalog holds the product, dealer, inventory and order bookkeeping
// that surrounds allocation. It turns store sentinels into apperr codes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/apperr"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/logger"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/safar/go-dealer-router/internal/pricing"
	"github.com/safar/go-dealer-router/internal/store"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Repository interface {
	Ping(ctx context.Context) error
	CreateProduct(ctx context.Context, p models.Product) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	CreateDealer(ctx context.Context, d models.Dealer) (*models.Dealer, error)
	GetDealer(ctx context.Context, id uuid.UUID) (*models.Dealer, error)
	ListDealers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	AllDealers(ctx context.Context) ([]models.Dealer, error)
	SetInventory(ctx context.Context, dealerID, productID uuid.UUID, quantity decimal.Decimal) (*models.InventoryItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, status models.OrderStatus, cursor string, limit int) (*store.CursorPage, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, next models.OrderStatus) (*models.Order, error)
}

type Service struct {
	repo         Repository
	log          *logger.Logger
	nearbyRadius float64
}

func NewService(repo Repository, log *logger.Logger, nearbyRadiusKm float64) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if nearbyRadiusKm <= 0 {
		nearbyRadiusKm = 50
	}
	return &Service{repo: repo, log: log, nearbyRadius: nearbyRadiusKm}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// CreateProduct rejects a malformed tier table before anything is written.
func (s *Service) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, apperr.New(apperr.CodeValidation, "product name is required")
	}
	if err := pricing.Validate(p.PricingTiers); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create product")
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"product_id": created.ID.String(),
		"tiers":      len(created.PricingTiers),
	}), "catalog.product_created")
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, translate(err, "get product")
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	result, err := s.repo.ListProducts(ctx, page, pageSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list products")
	}
	return result, nil
}

func (s *Service) CreateDealer(ctx context.Context, d models.Dealer) (*models.Dealer, error) {
	location := geo.Point{Latitude: d.Latitude, Longitude: d.Longitude}
	if err := location.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, err.Error())
	}

	created, err := s.repo.CreateDealer(ctx, d)
	if err != nil {
		return nil, translate(err, "create dealer")
	}

	s.log.Info(s.log.WithField(ctx, "dealer_id", created.ID.String()), "catalog.dealer_created")
	return created, nil
}

func (s *Service) GetDealer(ctx context.Context, id uuid.UUID) (*models.Dealer, error) {
	d, err := s.repo.GetDealer(ctx, id)
	if err != nil {
		return nil, translate(err, "get dealer")
	}
	return d, nil
}

func (s *Service) ListDealers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	result, err := s.repo.ListDealers(ctx, page, pageSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list dealers")
	}
	return result, nil
}

// NearbyDealers returns the dealers within radiusKm of origin, nearest first.
// A non-positive radius falls back to the configured default.
func (s *Service) NearbyDealers(ctx context.Context, origin geo.Point, radiusKm float64) ([]models.NearbyDealer, error) {
	if err := origin.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, err.Error())
	}
	if radiusKm <= 0 {
		radiusKm = s.nearbyRadius
	}

	dealers, err := s.repo.AllDealers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list dealers")
	}

	nearby := []models.NearbyDealer{}
	for _, d := range dealers {
		distance := geo.Between(origin, geo.Point{Latitude: d.Latitude, Longitude: d.Longitude})
		if distance > radiusKm {
			continue
		}
		nearby = append(nearby, models.NearbyDealer{Dealer: d, DistanceKm: geo.RoundKm(distance)})
	}
	slices.SortStableFunc(nearby, func(a, b models.NearbyDealer) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return nearby, nil
}

func (s *Service) SetInventory(ctx context.Context, dealerID, productID uuid.UUID, quantity decimal.Decimal) (*models.InventoryItem, error) {
	if quantity.IsNegative() {
		return nil, apperr.Newf(apperr.CodeValidation, "quantity %s must not be negative", quantity)
	}

	item, err := s.repo.SetInventory(ctx, dealerID, productID, quantity)
	if err != nil {
		return nil, translate(err, "set inventory")
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"dealer_id":     dealerID.String(),
		"product_id":    productID.String(),
		"quantity":      item.Quantity.String(),
		"available_qty": item.AvailableQty.String(),
	}), "catalog.inventory_set")
	return item, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, translate(err, "get order")
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, status models.OrderStatus, cursor string, limit int) (*store.CursorPage, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown order status %q", status)
	}
	_, limit = normalizePage(1, limit)

	result, err := s.repo.ListOrders(ctx, status, cursor, limit)
	if errors.Is(err, store.ErrInvalidCursor) {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "invalid cursor")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list orders")
	}
	return result, nil
}

// UpdateOrderStatus applies a lifecycle transition; leaving a terminal
// status is a state conflict.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown order status %q", next)
	}

	o, err := s.repo.UpdateOrderStatus(ctx, id, next)
	if err != nil {
		return nil, translate(err, "update order status")
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"order_number": o.OrderNumber,
		"status":       string(o.Status),
	}), "order.status_updated")
	return o, nil
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, database.ErrProductNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "product not found")
	case errors.Is(err, database.ErrDealerNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "dealer not found")
	case errors.Is(err, database.ErrOrderNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "order not found")
	case errors.Is(err, database.ErrDuplicateDealerEmail):
		return apperr.Wrap(apperr.CodeConflict, err, "dealer with this email already exists")
	case errors.Is(err, database.ErrReservedExceedsStock):
		return apperr.Wrap(apperr.CodeValidation, err, "quantity cannot be lower than the reserved stock")
	case errors.Is(err, database.ErrInvalidTransition):
		return apperr.Wrap(apperr.CodeStateConflict, err, fmt.Sprintf("order status cannot change: %v", err))
	default:
		return apperr.Wrap(apperr.CodeInternal, err, op)
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
