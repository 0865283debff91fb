package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/allocation"
	"github.com/safar/go-dealer-router/internal/apperr"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func fertilizerTiers() []models.PricingTier {
	return []models.PricingTier{
		{MinQuantity: dec("100"), PricePerUnit: dec("15")},
		{MinQuantity: dec("0"), MaxQuantity: decimal.NewNullDecimal(dec("50")), PricePerUnit: dec("20")},
		{MinQuantity: dec("50"), MaxQuantity: decimal.NewNullDecimal(dec("100")), PricePerUnit: dec("18")},
	}
}

type seed struct {
	product models.Product
	dealer  models.Dealer
}

func seedCatalog(t *testing.T, db *sql.DB, stock string) seed {
	t.Helper()
	ctx := context.Background()

	product, err := CreateProduct(ctx, db, models.Product{
		Name:         "Urea 46%",
		Category:     "fertilizer",
		Unit:         "kg",
		PricingTiers: fertilizerTiers(),
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	dealer, err := CreateDealer(ctx, db, models.Dealer{
		Name:      "Sandton Agri",
		Email:     "sales@sandton.test",
		Phone:     "+27110000000",
		Latitude:  -26.1076,
		Longitude: 28.0567,
		Address:   "1 Rivonia Rd",
	})
	if err != nil {
		t.Fatalf("Create dealer: %v", err)
	}

	if _, err := SetInventory(ctx, db, dealer.ID, product.ID, dec(stock)); err != nil {
		t.Fatalf("Set inventory: %v", err)
	}

	return seed{product: *product, dealer: *dealer}
}

func draftOrder(s seed, number string, qty string) models.Order {
	dealerID := s.dealer.ID
	quantity := dec(qty)
	return models.Order{
		OrderNumber:       number,
		FarmerName:        "Thandi",
		FarmerPhone:       "+27820000000",
		DeliveryLatitude:  -26.2041,
		DeliveryLongitude: 28.0473,
		DeliveryAddress:   "Plot 12",
		DealerID:          &dealerID,
		Status:            models.OrderStatusConfirmed,
		TotalAmount:       quantity.Mul(dec("20")),
		Items: []models.OrderItem{{
			ProductID:    s.product.ID,
			Quantity:     quantity,
			PricePerUnit: dec("20"),
			TotalPrice:   quantity.Mul(dec("20")),
		}},
	}
}

func inventoryRow(t *testing.T, db *sql.DB, s seed) models.InventoryItem {
	t.Helper()
	dealer, err := GetDealer(context.Background(), db, s.dealer.ID)
	if err != nil {
		t.Fatalf("Get dealer: %v", err)
	}
	item, ok := dealer.InventoryFor(s.product.ID)
	if !ok {
		t.Fatalf("dealer has no inventory for %s", s.product.ID)
	}
	return item
}

func TestProductRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db, "100")

	product, err := GetProduct(ctx, db, s.product.ID)
	require.NoError(t, err)
	require.Len(t, product.PricingTiers, 3)
	assert.True(t, product.PricingTiers[0].MinQuantity.IsZero())
	assert.False(t, product.PricingTiers[2].Bounded())
	require.Len(t, product.Stockists, 1)
	assert.Equal(t, s.dealer.ID, product.Stockists[0].DealerID)

	byID, err := ProductsByID(ctx, db, []uuid.UUID{s.product.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Len(t, byID[s.product.ID].PricingTiers, 3)

	_, err = GetProduct(ctx, db, uuid.New())
	assert.ErrorIs(t, err, database.ErrProductNotFound)

	page, err := ListProducts(ctx, db, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestDealerEmailIsUnique(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := seedCatalog(t, db, "1")
	assert.True(t, dec("5").Equal(s.dealer.Rating))

	_, err := CreateDealer(context.Background(), db, models.Dealer{Name: "Copy", Email: s.dealer.Email})
	assert.ErrorIs(t, err, database.ErrDuplicateDealerEmail)
}

func TestSetInventoryGuards(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db, "100")

	_, err := SetInventory(ctx, db, uuid.New(), s.product.ID, dec("1"))
	assert.ErrorIs(t, err, database.ErrDealerNotFound)
	_, err = SetInventory(ctx, db, s.dealer.ID, uuid.New(), dec("1"))
	assert.ErrorIs(t, err, database.ErrProductNotFound)

	_, err = CommitAllocation(ctx, db, draftOrder(s, "ORD-1-AAAAAAAAA", "40"))
	require.NoError(t, err)

	_, err = SetInventory(ctx, db, s.dealer.ID, s.product.ID, dec("30"))
	assert.ErrorIs(t, err, database.ErrReservedExceedsStock)

	item, err := SetInventory(ctx, db, s.dealer.ID, s.product.ID, dec("60"))
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(item.ReservedQty))
	assert.True(t, dec("20").Equal(item.AvailableQty))
}

func TestCommitAllocation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db, "100")

	order, err := CommitAllocation(ctx, db, draftOrder(s, "ORD-1-AAAAAAAAA", "30"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, order.ID)
	require.NotNil(t, order.Dealer)
	assert.Equal(t, "Sandton Agri", order.Dealer.Name)

	row := inventoryRow(t, db, s)
	assert.True(t, dec("30").Equal(row.ReservedQty))
	assert.True(t, dec("70").Equal(row.AvailableQty))

	loaded, err := GetOrder(ctx, db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1-AAAAAAAAA", loaded.OrderNumber)
	require.Len(t, loaded.Items, 1)
	assert.True(t, dec("600").Equal(loaded.TotalAmount))

	_, err = CommitAllocation(ctx, db, draftOrder(s, "ORD-1-AAAAAAAAA", "1"))
	assert.ErrorIs(t, err, database.ErrDuplicateOrderNumber)

	_, err = CommitAllocation(ctx, db, draftOrder(s, "ORD-1-BBBBBBBBB", "71"))
	assert.ErrorIs(t, err, database.ErrInsufficientStock)

	row = inventoryRow(t, db, s)
	assert.True(t, dec("70").Equal(row.AvailableQty), "failed commits reserve nothing")

	var orders int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	assert.Equal(t, 1, orders, "failed commits leave no order rows")
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db, "20")

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := CommitAllocation(ctx, db, draftOrder(s, fmt.Sprintf("ORD-1-%09d", i), "3"))
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 6 {
		t.Errorf("Expected 6 successful commits, got %d", successCount)
	}

	row := inventoryRow(t, db, s)
	assert.True(t, dec("2").Equal(row.AvailableQty), row.AvailableQty.String())
	assert.True(t, dec("18").Equal(row.ReservedQty), row.ReservedQty.String())
}

func TestUpdateOrderStatusSettlesReservation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db, "100")

	delivered, err := CommitAllocation(ctx, db, draftOrder(s, "ORD-1-AAAAAAAAA", "30"))
	require.NoError(t, err)
	cancelled, err := CommitAllocation(ctx, db, draftOrder(s, "ORD-1-BBBBBBBBB", "20"))
	require.NoError(t, err)

	_, err = UpdateOrderStatus(ctx, db, delivered.ID, models.OrderStatusOutForDelivery)
	require.NoError(t, err)
	got, err := UpdateOrderStatus(ctx, db, delivered.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.NotNil(t, got.DeliveredAt)

	_, err = UpdateOrderStatus(ctx, db, cancelled.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	row := inventoryRow(t, db, s)
	assert.True(t, dec("70").Equal(row.Quantity), row.Quantity.String())
	assert.True(t, row.ReservedQty.IsZero(), row.ReservedQty.String())
	assert.True(t, dec("70").Equal(row.AvailableQty), row.AvailableQty.String())

	_, err = UpdateOrderStatus(ctx, db, cancelled.ID, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)

	_, err = UpdateOrderStatus(ctx, db, cancelled.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(inventoryRow(t, db, s).AvailableQty), "repeat is a no-op")

	_, err = UpdateOrderStatus(ctx, db, uuid.New(), models.OrderStatusCancelled)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db, "100")

	for i := 0; i < 15; i++ {
		if _, err := CommitAllocation(ctx, db, draftOrder(s, fmt.Sprintf("ORD-1-%09d", i), "1")); err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
	}

	seen := map[uuid.UUID]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := ListOrdersCursor(ctx, db, "", cursor, 10)
		require.NoError(t, err)
		pages++
		for _, o := range page.Items.([]models.Order) {
			assert.False(t, seen[o.ID], "order %s listed twice", o.ID)
			seen[o.ID] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 2, pages)
	assert.Len(t, seen, 15)

	page, err := ListOrdersCursor(ctx, db, models.OrderStatusDelivered, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items.([]models.Order))
}

func TestAllocatorOverPostgres(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db, "100")
	pg := NewPostgres(db)

	alloc := allocation.New(pg)
	order, err := alloc.Allocate(ctx, allocation.OrderRequest{
		FarmerName:      "Thandi",
		FarmerPhone:     "+27820000000",
		Delivery:        geo.Point{Latitude: -26.2041, Longitude: 28.0473},
		DeliveryAddress: "Plot 12",
		Items:           []allocation.LineItem{{ProductID: s.product.ID, Quantity: dec("75")}},
	})
	require.NoError(t, err)
	assert.True(t, dec("1350").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.Equal(t, s.dealer.ID, *order.DealerID)

	_, err = alloc.Allocate(ctx, allocation.OrderRequest{
		FarmerName:      "Thandi",
		FarmerPhone:     "+27820000000",
		Delivery:        geo.Point{Latitude: -26.2041, Longitude: 28.0473},
		DeliveryAddress: "Plot 12",
		Items:           []allocation.LineItem{{ProductID: s.product.ID, Quantity: dec("26")}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))

	require.NoError(t, pg.Ping(ctx))
}
