package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/shopspring/decimal"
)

const dealerColumns = `d.id, d.name, d.email, d.phone, d.latitude, d.longitude, d.address,
	d.rating, d.total_orders_fulfilled, d.average_delivery_time, d.created_at, d.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDealer(row rowScanner, dealer *models.Dealer, extra ...any) error {
	dest := []any{
		&dealer.ID,
		&dealer.Name,
		&dealer.Email,
		&dealer.Phone,
		&dealer.Latitude,
		&dealer.Longitude,
		&dealer.Address,
		&dealer.Rating,
		&dealer.TotalOrdersFulfilled,
		&dealer.AverageDeliveryTime,
		&dealer.CreatedAt,
		&dealer.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func CreateDealer(ctx context.Context, db *sql.DB, d models.Dealer) (*models.Dealer, error) {
	dealer := &models.Dealer{}

	query := `
		INSERT INTO dealers AS d (name, email, phone, latitude, longitude, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + dealerColumns

	err := scanDealer(db.QueryRowContext(ctx, query,
		d.Name, d.Email, d.Phone, d.Latitude, d.Longitude, d.Address,
	), dealer)
	if err != nil {
		if database.IsUniqueViolation(err, database.ConstraintDealerEmail) {
			return nil, fmt.Errorf("create dealer %s: %w", d.Email, database.ErrDuplicateDealerEmail)
		}
		return nil, fmt.Errorf("create dealer: %w", err)
	}

	return dealer, nil
}

// GetDealer returns the dealer with its full inventory.
func GetDealer(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.Dealer, error) {
	dealer := &models.Dealer{}

	query := `SELECT ` + dealerColumns + ` FROM dealers d WHERE d.id = $1`

	err := scanDealer(db.QueryRowContext(ctx, query, id), dealer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrDealerNotFound
		}
		return nil, fmt.Errorf("get dealer: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, dealer_id, product_id, quantity, reserved_qty, available_qty, updated_at
		 FROM inventory
		 WHERE dealer_id = $1
		 ORDER BY product_id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get dealer inventory: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.InventoryItem
		if err := scanInventory(rows, &item); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		dealer.Inventory = append(dealer.Inventory, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return dealer, nil
}

func ListDealers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dealers`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count dealers: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + dealerColumns + `
		FROM dealers d
		ORDER BY d.name, d.id
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list dealers: %w", err)
	}
	defer rows.Close()

	dealers := []models.Dealer{}
	for rows.Next() {
		var dealer models.Dealer
		if err := scanDealer(rows, &dealer); err != nil {
			return nil, fmt.Errorf("scan dealer: %w", err)
		}
		dealers = append(dealers, dealer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(dealers, total, page, pageSize), nil
}

// AllDealers returns every dealer without inventory. Distance filtering
// happens in the caller.
func AllDealers(ctx context.Context, db *sql.DB) ([]models.Dealer, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+dealerColumns+` FROM dealers d ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("list all dealers: %w", err)
	}
	defer rows.Close()

	var dealers []models.Dealer
	for rows.Next() {
		var dealer models.Dealer
		if err := scanDealer(rows, &dealer); err != nil {
			return nil, fmt.Errorf("scan dealer: %w", err)
		}
		dealers = append(dealers, dealer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return dealers, nil
}

// CandidateDealers returns the dealers holding a stock row for at least one of
// productIDs, each carrying only those rows. Dealers come back in creation
// order; ranking is the allocator's job.
func CandidateDealers(ctx context.Context, db *sql.DB, productIDs []uuid.UUID) ([]models.Dealer, error) {
	query := `SELECT ` + dealerColumns + `,
			i.id, i.dealer_id, i.product_id, i.quantity, i.reserved_qty, i.available_qty, i.updated_at
		FROM dealers d
		JOIN inventory i ON i.dealer_id = d.id
		WHERE i.product_id = ANY($1::uuid[])
		ORDER BY d.created_at, d.id, i.product_id`

	rows, err := db.QueryContext(ctx, query, pq.Array(uuidStrings(productIDs)))
	if err != nil {
		return nil, fmt.Errorf("load candidate dealers: %w", err)
	}
	defer rows.Close()

	var dealers []models.Dealer
	for rows.Next() {
		var (
			dealer models.Dealer
			item   models.InventoryItem
		)
		err := scanDealer(rows, &dealer,
			&item.ID, &item.DealerID, &item.ProductID,
			&item.Quantity, &item.ReservedQty, &item.AvailableQty, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan candidate dealer: %w", err)
		}

		if n := len(dealers); n > 0 && dealers[n-1].ID == dealer.ID {
			dealers[n-1].Inventory = append(dealers[n-1].Inventory, item)
			continue
		}
		dealer.Inventory = []models.InventoryItem{item}
		dealers = append(dealers, dealer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return dealers, nil
}

// SetInventory creates or replaces the on-hand quantity of a dealer-product
// pair. Reserved stock is kept, so quantity may not drop below it.
func SetInventory(ctx context.Context, db *sql.DB, dealerID, productID uuid.UUID, quantity decimal.Decimal) (*models.InventoryItem, error) {
	item := &models.InventoryItem{}

	query := `
		INSERT INTO inventory (dealer_id, product_id, quantity, reserved_qty, available_qty, updated_at)
		VALUES ($1, $2, $3, 0, $3, NOW())
		ON CONFLICT (dealer_id, product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    available_qty = EXCLUDED.quantity - inventory.reserved_qty,
		    updated_at = NOW()
		WHERE inventory.reserved_qty <= EXCLUDED.quantity
		RETURNING id, dealer_id, product_id, quantity, reserved_qty, available_qty, updated_at`

	err := scanInventory(db.QueryRowContext(ctx, query, dealerID, productID, quantity), item)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, database.ErrReservedExceedsStock
		case database.IsForeignKeyViolation(err, database.ConstraintInventoryDealer):
			return nil, database.ErrDealerNotFound
		case database.IsForeignKeyViolation(err, database.ConstraintInventoryProduct):
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("set inventory: %w", err)
	}

	return item, nil
}

func scanInventory(row rowScanner, item *models.InventoryItem) error {
	return row.Scan(
		&item.ID,
		&item.DealerID,
		&item.ProductID,
		&item.Quantity,
		&item.ReservedQty,
		&item.AvailableQty,
		&item.UpdatedAt,
	)
}
