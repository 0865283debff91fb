package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/shopspring/decimal"
)

// Postgres binds the package functions to one connection pool so the store can
// be handed to the allocator and the catalog service as a value.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) ProductsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return ProductsByID(ctx, p.db, ids)
}

func (p *Postgres) CandidateDealers(ctx context.Context, productIDs []uuid.UUID) ([]models.Dealer, error) {
	return CandidateDealers(ctx, p.db, productIDs)
}

func (p *Postgres) CommitAllocation(ctx context.Context, draft models.Order) (*models.Order, error) {
	return CommitAllocation(ctx, p.db, draft)
}

func (p *Postgres) CreateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	return CreateProduct(ctx, p.db, product)
}

func (p *Postgres) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return GetProduct(ctx, p.db, id)
}

func (p *Postgres) ListProducts(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListProducts(ctx, p.db, page, pageSize)
}

func (p *Postgres) CreateDealer(ctx context.Context, dealer models.Dealer) (*models.Dealer, error) {
	return CreateDealer(ctx, p.db, dealer)
}

func (p *Postgres) GetDealer(ctx context.Context, id uuid.UUID) (*models.Dealer, error) {
	return GetDealer(ctx, p.db, id)
}

func (p *Postgres) ListDealers(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListDealers(ctx, p.db, page, pageSize)
}

func (p *Postgres) AllDealers(ctx context.Context) ([]models.Dealer, error) {
	return AllDealers(ctx, p.db)
}

func (p *Postgres) SetInventory(ctx context.Context, dealerID, productID uuid.UUID, quantity decimal.Decimal) (*models.InventoryItem, error) {
	return SetInventory(ctx, p.db, dealerID, productID, quantity)
}

func (p *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return GetOrder(ctx, p.db, id)
}

func (p *Postgres) ListOrders(ctx context.Context, status models.OrderStatus, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, p.db, status, cursor, limit)
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, id uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	return UpdateOrderStatus(ctx, p.db, id, next)
}
