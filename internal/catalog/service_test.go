package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/apperr"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/safar/go-dealer-router/internal/pricing"
	"github.com/safar/go-dealer-router/internal/store/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	return NewService(s, nil, 0), s
}

func openTier(min, price string) models.PricingTier {
	return models.PricingTier{MinQuantity: dec(min), PricePerUnit: dec(price)}
}

func TestCreateProductValidatesTiersFirst(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, models.Product{Name: "Bad", PricingTiers: []models.PricingTier{openTier("5", "1")}})
	require.ErrorIs(t, err, pricing.ErrTierPartition)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	page, err := s.ListProducts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total, "nothing written")

	_, err = svc.CreateProduct(ctx, models.Product{Name: "  ", PricingTiers: []models.PricingTier{openTier("0", "1")}})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	created, err := svc.CreateProduct(ctx, models.Product{Name: "Lime", PricingTiers: []models.PricingTier{openTier("0", "3")}})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
}

func TestNotFoundTranslation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.GetProduct(ctx, uuid.New())
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.ErrorIs(t, err, database.ErrProductNotFound)

	_, err = svc.GetDealer(ctx, uuid.New())
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = svc.GetOrder(ctx, uuid.New())
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = svc.SetInventory(ctx, uuid.New(), uuid.New(), dec("1"))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestCreateDealer(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateDealer(ctx, models.Dealer{Name: "Nowhere", Email: "n@agri.test", Latitude: 95})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = svc.CreateDealer(ctx, models.Dealer{Name: "Agri", Email: "a@agri.test"})
	require.NoError(t, err)

	_, err = svc.CreateDealer(ctx, models.Dealer{Name: "Agri again", Email: "a@agri.test"})
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	assert.ErrorIs(t, err, database.ErrDuplicateDealerEmail)
}

func TestSetInventory(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	product := s.PutProduct(models.Product{Name: "Urea", PricingTiers: []models.PricingTier{openTier("0", "20")}})
	dealer := s.PutDealer(models.Dealer{Name: "Agri"})

	_, err := svc.SetInventory(ctx, dealer.ID, product.ID, dec("-1"))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	item, err := svc.SetInventory(ctx, dealer.ID, product.ID, dec("12.5"))
	require.NoError(t, err)
	assert.True(t, dec("12.5").Equal(item.AvailableQty))

	dealerID := dealer.ID
	_, err = s.CommitAllocation(ctx, models.Order{
		OrderNumber: "ORD-1",
		DealerID:    &dealerID,
		Status:      models.OrderStatusConfirmed,
		Items:       []models.OrderItem{{ProductID: product.ID, Quantity: dec("10")}},
	})
	require.NoError(t, err)

	_, err = svc.SetInventory(ctx, dealer.ID, product.ID, dec("9"))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.ErrorIs(t, err, database.ErrReservedExceedsStock)
}

func TestNearbyDealers(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	johannesburg := geo.Point{Latitude: -26.2041, Longitude: 28.0473}

	far := s.PutDealer(models.Dealer{Name: "Pretoria", Latitude: -25.7479, Longitude: 28.2293})
	near := s.PutDealer(models.Dealer{Name: "Sandton", Latitude: -26.1076, Longitude: 28.0567})
	s.PutDealer(models.Dealer{Name: "Durban", Latitude: -29.8587, Longitude: 31.0218})

	nearby, err := svc.NearbyDealers(ctx, johannesburg, 0)
	require.NoError(t, err)
	require.Len(t, nearby, 1, "default radius is 50km")
	assert.Equal(t, near.ID, nearby[0].ID)
	assert.Equal(t, geo.RoundKm(nearby[0].DistanceKm), nearby[0].DistanceKm)

	nearby, err = svc.NearbyDealers(ctx, johannesburg, 60)
	require.NoError(t, err)
	require.Len(t, nearby, 2)
	assert.Equal(t, near.ID, nearby[0].ID)
	assert.Equal(t, far.ID, nearby[1].ID)

	_, err = svc.NearbyDealers(ctx, geo.Point{Latitude: 0, Longitude: 200}, 10)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestUpdateOrderStatus(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	product := s.PutProduct(models.Product{Name: "Urea", PricingTiers: []models.PricingTier{openTier("0", "20")}})
	dealer := s.PutDealer(models.Dealer{Name: "Agri"})
	_, err := s.SetInventory(ctx, dealer.ID, product.ID, dec("10"))
	require.NoError(t, err)

	dealerID := dealer.ID
	order, err := s.CommitAllocation(ctx, models.Order{
		OrderNumber: "ORD-1",
		DealerID:    &dealerID,
		Status:      models.OrderStatusConfirmed,
		Items:       []models.OrderItem{{ProductID: product.ID, Quantity: dec("4")}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, order.ID, "LOST")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	delivered, err := svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusProcessing)
	assert.Equal(t, apperr.CodeStateConflict, apperr.CodeOf(err))
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestListOrdersRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ListOrders(ctx, "SHIPPED", "", 10)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = svc.ListOrders(ctx, "", "%%%not-base64", 10)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	page, err := svc.ListOrders(ctx, "", "", 0)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)

	_, size = normalizePage(2, 1000)
	assert.Equal(t, MaxPageSize, size)
}
