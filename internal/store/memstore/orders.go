package memstore

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/safar/go-dealer-router/internal/store"
)

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

// ListOrders pages newest first with the same cursor encoding as the
// Postgres store.
func (s *Store) ListOrders(_ context.Context, status models.OrderStatus, cursor string, limit int) (*store.CursorPage, error) {
	position, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	s.mu.RLock()
	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if status != "" && o.Status != status {
			continue
		}
		if !position.Before(o.CreatedAt, o.ID) {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	s.mu.RUnlock()

	slices.SortFunc(orders, func(a, b models.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})

	return store.NewCursorPage(orders, limit, store.OrderKey), nil
}

// UpdateOrderStatus mirrors the Postgres store: DELIVERED consumes the
// reservation, CANCELLED releases it, terminal orders are frozen.
func (s *Store) UpdateOrderStatus(_ context.Context, id uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, next, database.ErrInvalidTransition)
	}
	if order.Status == next {
		out := cloneOrder(order)
		return &out, nil
	}

	now := s.now().UTC()
	if order.DealerID != nil && order.Status.HoldsReservation() && next.Terminal() {
		for _, item := range order.Items {
			key := inventoryKey{dealerID: *order.DealerID, productID: item.ProductID}
			row, ok := s.inventory[key]
			if !ok {
				continue
			}
			row.ReservedQty = row.ReservedQty.Sub(item.Quantity)
			if next == models.OrderStatusDelivered {
				row.Quantity = row.Quantity.Sub(item.Quantity)
			} else {
				row.AvailableQty = row.AvailableQty.Add(item.Quantity)
			}
			row.UpdatedAt = now
			s.inventory[key] = row
		}
	}

	order.Status = next
	if next == models.OrderStatusDelivered {
		order.DeliveredAt = &now
	}
	order.UpdatedAt = now
	s.orders[id] = order

	out := cloneOrder(order)
	return &out, nil
}
