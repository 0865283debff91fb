package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/shopspring/decimal"
)

const orderColumns = `o.id, o.order_number, o.farmer_name, o.farmer_phone, o.farmer_email,
	o.delivery_latitude, o.delivery_longitude, o.delivery_address, o.dealer_id, o.status,
	o.total_amount, o.distance_km, o.estimated_delivery_hours, o.confirmed_at, o.delivered_at,
	o.created_at, o.updated_at`

// CommitAllocation persists a routed order. The order row, its items and a
// conditional reservation per product either all land or none do. A reservation
// that finds less available stock than it needs fails with
// database.ErrInsufficientStock; an order number that is already taken fails
// with database.ErrDuplicateOrderNumber.
func CommitAllocation(ctx context.Context, db *sql.DB, draft models.Order) (*models.Order, error) {
	if draft.DealerID == nil {
		return nil, fmt.Errorf("commit allocation: order has no dealer")
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(ctx context.Context, tx *sql.Tx) error {
		created := draft
		created.Items = slices.Clone(draft.Items)

		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, farmer_name, farmer_phone, farmer_email,
			     delivery_latitude, delivery_longitude, delivery_address, dealer_id, status,
			     total_amount, distance_km, estimated_delivery_hours, confirmed_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
			 RETURNING id, created_at, updated_at`,
			created.OrderNumber, created.FarmerName, created.FarmerPhone, created.FarmerEmail,
			created.DeliveryLatitude, created.DeliveryLongitude, created.DeliveryAddress,
			*created.DealerID, created.Status, created.TotalAmount, created.DistanceKm,
			created.EstimatedDeliveryHours, created.ConfirmedAt,
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			if database.IsUniqueViolation(err, database.ConstraintOrderNumber) {
				return fmt.Errorf("create order %s: %w", created.OrderNumber, database.ErrDuplicateOrderNumber)
			}
			return fmt.Errorf("create order: %w", err)
		}

		for i := range created.Items {
			item := &created.Items[i]
			item.OrderID = created.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_per_unit, total_price, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 RETURNING id, created_at`,
				created.ID, item.ProductID, item.Quantity, item.PricePerUnit, item.TotalPrice,
			).Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		// Reserve in product id order so concurrent commits lock rows in the
		// same sequence.
		needed := quantitiesByProduct(created.Items)
		productIDs := make([]uuid.UUID, 0, len(needed))
		for id := range needed {
			productIDs = append(productIDs, id)
		}
		slices.SortFunc(productIDs, func(a, b uuid.UUID) int {
			return bytes.Compare(a[:], b[:])
		})

		for _, productID := range productIDs {
			result, err := tx.ExecContext(ctx,
				`UPDATE inventory
				 SET reserved_qty = reserved_qty + $1,
				     available_qty = available_qty - $1,
				     updated_at = NOW()
				 WHERE dealer_id = $2
				   AND product_id = $3
				   AND available_qty >= $1`,
				needed[productID], *created.DealerID, productID)
			if err != nil {
				return fmt.Errorf("reserve stock: %w", err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}

			if rowsAffected == 0 {
				return fmt.Errorf("reserve product %s at dealer %s: %w", productID, *created.DealerID, database.ErrInsufficientStock)
			}
		}

		summary, err := loadDealerSummary(ctx, tx, *created.DealerID)
		if err != nil {
			return err
		}
		created.Dealer = summary

		order = &created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.Order, error) {
	return getOrder(ctx, db, id)
}

func getOrder(ctx context.Context, q querier, id uuid.UUID) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `, d.name, d.phone, d.address
		FROM orders o
		LEFT JOIN dealers d ON d.id = o.dealer_id
		WHERE o.id = $1`

	order, err := scanOrderWithDealer(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, quantity, price_per_unit, total_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id`

	rows, err := q.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.PricePerUnit,
			&item.TotalPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return order, nil
}

// ListOrdersCursor pages through orders newest first. An empty status lists
// every order.
func ListOrdersCursor(ctx context.Context, db *sql.DB, status models.OrderStatus, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `, d.name, d.phone, d.address
		FROM orders o
		LEFT JOIN dealers d ON d.id = o.dealer_id
		WHERE ($1 = '' OR o.status = $1)
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, string(status), cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrderWithDealer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewCursorPage(orders, limit, OrderKey), nil
}

// OrderKey is the keyset position of o.
func OrderKey(o models.Order) OrderCursor {
	return OrderCursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// UpdateOrderStatus moves an order to next under a row lock. Reaching
// DELIVERED consumes the order's reservation and stamps delivered_at;
// reaching CANCELLED hands the reserved stock back. Re-applying the current
// status changes nothing.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(ctx context.Context, tx *sql.Tx) error {
		var (
			current  models.OrderStatus
			dealerID uuid.NullUUID
		)
		err := tx.QueryRowContext(ctx,
			`SELECT status, dealer_id FROM orders WHERE id = $1 FOR UPDATE`,
			id).Scan(&current, &dealerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !current.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", current, next, database.ErrInvalidTransition)
		}

		if current != next {
			if dealerID.Valid && current.HoldsReservation() && next.Terminal() {
				if err := settleReservation(ctx, tx, id, dealerID.UUID, next); err != nil {
					return err
				}
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE orders
				 SET status = $1,
				     delivered_at = CASE WHEN $1 = 'DELIVERED' THEN NOW() ELSE delivered_at END,
				     updated_at = NOW()
				 WHERE id = $2`,
				next, id)
			if err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
		}

		order, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// settleReservation consumes (DELIVERED) or releases (CANCELLED) the stock an
// order holds at its dealer.
func settleReservation(ctx context.Context, tx *sql.Tx, orderID, dealerID uuid.UUID, next models.OrderStatus) error {
	var query string
	switch next {
	case models.OrderStatusDelivered:
		query = `
			UPDATE inventory i
			SET quantity = i.quantity - held.qty,
			    reserved_qty = i.reserved_qty - held.qty,
			    updated_at = NOW()
			FROM (SELECT product_id, SUM(quantity) AS qty
			      FROM order_items WHERE order_id = $1 GROUP BY product_id) held
			WHERE i.dealer_id = $2 AND i.product_id = held.product_id`
	case models.OrderStatusCancelled:
		query = `
			UPDATE inventory i
			SET reserved_qty = i.reserved_qty - held.qty,
			    available_qty = i.available_qty + held.qty,
			    updated_at = NOW()
			FROM (SELECT product_id, SUM(quantity) AS qty
			      FROM order_items WHERE order_id = $1 GROUP BY product_id) held
			WHERE i.dealer_id = $2 AND i.product_id = held.product_id`
	default:
		return nil
	}

	if _, err := tx.ExecContext(ctx, query, orderID, dealerID); err != nil {
		return fmt.Errorf("settle reservation for %s: %w", next, err)
	}
	return nil
}

func loadDealerSummary(ctx context.Context, q querier, dealerID uuid.UUID) (*models.DealerSummary, error) {
	summary := &models.DealerSummary{ID: dealerID}
	err := q.QueryRowContext(ctx,
		`SELECT name, phone, address FROM dealers WHERE id = $1`,
		dealerID).Scan(&summary.Name, &summary.Phone, &summary.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrDealerNotFound
		}
		return nil, fmt.Errorf("load dealer summary: %w", err)
	}
	return summary, nil
}

func scanOrderWithDealer(row rowScanner) (*models.Order, error) {
	var (
		order    models.Order
		dealerID uuid.NullUUID
		name     sql.NullString
		phone    sql.NullString
		address  sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.FarmerName,
		&order.FarmerPhone,
		&order.FarmerEmail,
		&order.DeliveryLatitude,
		&order.DeliveryLongitude,
		&order.DeliveryAddress,
		&dealerID,
		&order.Status,
		&order.TotalAmount,
		&order.DistanceKm,
		&order.EstimatedDeliveryHours,
		&order.ConfirmedAt,
		&order.DeliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
		&name,
		&phone,
		&address,
	)
	if err != nil {
		return nil, err
	}

	if dealerID.Valid {
		id := dealerID.UUID
		order.DealerID = &id
		order.Dealer = &models.DealerSummary{
			ID:      id,
			Name:    name.String,
			Phone:   phone.String,
			Address: address.String,
		}
	}

	return &order, nil
}

func quantitiesByProduct(items []models.OrderItem) map[uuid.UUID]decimal.Decimal {
	needed := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, item := range items {
		needed[item.ProductID] = needed[item.ProductID].Add(item.Quantity)
	}
	return needed
}
