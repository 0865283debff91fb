// Package memstore keeps products, dealers, inventory and orders in process
// memory. It honours the same all-or-nothing, conditional-reservation
// contract as the Postgres store and backs STORE_DRIVER=memory and the
// allocator's tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/shopspring/decimal"
)

type inventoryKey struct {
	dealerID  uuid.UUID
	productID uuid.UUID
}

type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	products  map[uuid.UUID]models.Product
	dealers   map[uuid.UUID]models.Dealer
	inventory map[inventoryKey]models.InventoryItem
	orders    map[uuid.UUID]models.Order
	numbers   map[string]uuid.UUID
}

func New() *Store {
	return &Store{
		now:       time.Now,
		products:  make(map[uuid.UUID]models.Product),
		dealers:   make(map[uuid.UUID]models.Dealer),
		inventory: make(map[inventoryKey]models.InventoryItem),
		orders:    make(map[uuid.UUID]models.Order),
		numbers:   make(map[string]uuid.UUID),
	}
}

// PutProduct stores p as given, assigning an id when it has none.
func (s *Store) PutProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.PricingTiers = slices.Clone(p.PricingTiers)
	s.products[p.ID] = p
	return p
}

// PutDealer stores d without its inventory, assigning an id when it has none.
func (s *Store) PutDealer(d models.Dealer) models.Dealer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putDealer(d)
}

func (s *Store) putDealer(d models.Dealer) models.Dealer {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := s.now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Inventory = nil
	s.dealers[d.ID] = d
	return d
}

// SetInventory sets stock on hand for a dealer-product pair, keeping what is
// already reserved.
func (s *Store) SetInventory(_ context.Context, dealerID, productID uuid.UUID, quantity decimal.Decimal) (*models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dealers[dealerID]; !ok {
		return nil, database.ErrDealerNotFound
	}
	if _, ok := s.products[productID]; !ok {
		return nil, database.ErrProductNotFound
	}

	key := inventoryKey{dealerID: dealerID, productID: productID}
	item, ok := s.inventory[key]
	if !ok {
		item = models.InventoryItem{
			ID:          uuid.New(),
			DealerID:    dealerID,
			ProductID:   productID,
			ReservedQty: decimal.Zero,
		}
	}
	if quantity.LessThan(item.ReservedQty) {
		return nil, database.ErrReservedExceedsStock
	}

	item.Quantity = quantity
	item.AvailableQty = quantity.Sub(item.ReservedQty)
	item.UpdatedAt = s.now().UTC()
	s.inventory[key] = item
	return &item, nil
}

// Inventory returns the stock row for a dealer-product pair.
func (s *Store) Inventory(dealerID, productID uuid.UUID) (models.InventoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventory[inventoryKey{dealerID: dealerID, productID: productID}]
	return item, ok
}

func (s *Store) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b models.Order) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return orders
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) ProductsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[uuid.UUID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			p.PricingTiers = slices.Clone(p.PricingTiers)
			found[id] = p
		}
	}
	return found, nil
}

func (s *Store) CandidateDealers(_ context.Context, productIDs []uuid.UUID) ([]models.Dealer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dealers []models.Dealer
	for _, dealer := range s.dealers {
		var rows []models.InventoryItem
		for _, productID := range productIDs {
			if item, ok := s.inventory[inventoryKey{dealerID: dealer.ID, productID: productID}]; ok {
				rows = append(rows, item)
			}
		}
		if len(rows) == 0 {
			continue
		}
		dealer.Inventory = rows
		dealers = append(dealers, dealer)
	}

	slices.SortFunc(dealers, func(a, b models.Dealer) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return dealers, nil
}

// CommitAllocation checks every reservation before applying any of them, all
// under the write lock, so a failed commit leaves no trace.
func (s *Store) CommitAllocation(_ context.Context, draft models.Order) (*models.Order, error) {
	if draft.DealerID == nil {
		return nil, fmt.Errorf("commit allocation: order has no dealer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.numbers[draft.OrderNumber]; taken {
		return nil, fmt.Errorf("create order %s: %w", draft.OrderNumber, database.ErrDuplicateOrderNumber)
	}

	dealer, ok := s.dealers[*draft.DealerID]
	if !ok {
		return nil, database.ErrDealerNotFound
	}

	needed := make(map[inventoryKey]decimal.Decimal, len(draft.Items))
	for _, item := range draft.Items {
		key := inventoryKey{dealerID: dealer.ID, productID: item.ProductID}
		needed[key] = needed[key].Add(item.Quantity)
	}
	for key, qty := range needed {
		row, ok := s.inventory[key]
		if !ok || row.AvailableQty.LessThan(qty) {
			return nil, fmt.Errorf("reserve product %s at dealer %s: %w", key.productID, key.dealerID, database.ErrInsufficientStock)
		}
	}

	now := s.now().UTC()
	for key, qty := range needed {
		row := s.inventory[key]
		row.ReservedQty = row.ReservedQty.Add(qty)
		row.AvailableQty = row.AvailableQty.Sub(qty)
		row.UpdatedAt = now
		s.inventory[key] = row
	}

	order := cloneOrder(draft)
	order.ID = uuid.New()
	order.Dealer = &models.DealerSummary{
		ID:      dealer.ID,
		Name:    dealer.Name,
		Phone:   dealer.Phone,
		Address: dealer.Address,
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = now
	}

	s.orders[order.ID] = order
	s.numbers[order.OrderNumber] = order.ID

	out := cloneOrder(order)
	return &out, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = slices.Clone(o.Items)
	if o.Dealer != nil {
		summary := *o.Dealer
		o.Dealer = &summary
	}
	return o
}
