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
	"github.com/safar/go-dealer-router/internal/pricing"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateProduct inserts p and its pricing tiers in one transaction. Tiers are
// expected to be validated already.
func CreateProduct(ctx context.Context, db *sql.DB, p models.Product) (*models.Product, error) {
	product := p
	product.PricingTiers = pricing.Sorted(p.PricingTiers)

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO products (name, description, category, unit, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW())
			 RETURNING id, created_at, updated_at`,
			product.Name, product.Description, product.Category, product.Unit,
		).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		for i := range product.PricingTiers {
			tier := &product.PricingTiers[i]
			err := tx.QueryRowContext(ctx,
				`INSERT INTO pricing_tiers (product_id, min_quantity, max_quantity, price_per_unit)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id`,
				product.ID, tier.MinQuantity, tier.MaxQuantity, tier.PricePerUnit,
			).Scan(&tier.ID)
			if err != nil {
				return fmt.Errorf("create pricing tier %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// GetProduct returns the product with its tiers and the dealers stocking it.
func GetProduct(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, name, description, category, unit, created_at, updated_at
		FROM products
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Category,
		&product.Unit,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	tiers, err := loadTiers(ctx, db, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	product.PricingTiers = tiers[id]

	rows, err := db.QueryContext(ctx,
		`SELECT d.id, d.name, i.available_qty
		 FROM inventory i
		 JOIN dealers d ON d.id = i.dealer_id
		 WHERE i.product_id = $1
		 ORDER BY i.available_qty DESC, d.id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get product stockists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stock models.DealerStock
		if err := rows.Scan(&stock.DealerID, &stock.DealerName, &stock.AvailableQty); err != nil {
			return nil, fmt.Errorf("scan stockist: %w", err)
		}
		product.Stockists = append(product.Stockists, stock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return product, nil
}

// ProductsByID loads the requested products with tiers. Missing ids are
// simply absent from the result.
func ProductsByID(ctx context.Context, db *sql.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, category, unit, created_at, updated_at
		 FROM products
		 WHERE id = ANY($1::uuid[])`,
		pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]models.Product, len(ids))
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Unit, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(products) == 0 {
		return products, nil
	}

	found := make([]uuid.UUID, 0, len(products))
	for id := range products {
		found = append(found, id)
	}
	tiers, err := loadTiers(ctx, db, found)
	if err != nil {
		return nil, err
	}
	for id, p := range products {
		p.PricingTiers = tiers[id]
		products[id] = p
	}

	return products, nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, name, description, category, unit, created_at, updated_at
		FROM products
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	var ids []uuid.UUID
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Category,
			&product.Unit,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
		ids = append(ids, product.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) > 0 {
		tiers, err := loadTiers(ctx, db, ids)
		if err != nil {
			return nil, err
		}
		for i := range products {
			products[i].PricingTiers = tiers[products[i].ID]
		}
	}

	return NewOffsetPage(products, total, page, pageSize), nil
}

func loadTiers(ctx context.Context, q querier, productIDs []uuid.UUID) (map[uuid.UUID][]models.PricingTier, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, min_quantity, max_quantity, price_per_unit
		 FROM pricing_tiers
		 WHERE product_id = ANY($1::uuid[])
		 ORDER BY product_id, min_quantity`,
		pq.Array(uuidStrings(productIDs)))
	if err != nil {
		return nil, fmt.Errorf("load pricing tiers: %w", err)
	}
	defer rows.Close()

	tiers := make(map[uuid.UUID][]models.PricingTier, len(productIDs))
	for rows.Next() {
		var (
			tier      models.PricingTier
			productID uuid.UUID
		)
		if err := rows.Scan(&tier.ID, &productID, &tier.MinQuantity, &tier.MaxQuantity, &tier.PricePerUnit); err != nil {
			return nil, fmt.Errorf("scan pricing tier: %w", err)
		}
		tiers[productID] = append(tiers[productID], tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tiers, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
