package allocation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/safar/go-dealer-router/internal/store/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	johannesburg = geo.Point{Latitude: -26.2041, Longitude: 28.0473}
	pretoria     = geo.Point{Latitude: -25.7479, Longitude: 28.2293}
	sandton      = geo.Point{Latitude: -26.1076, Longitude: 28.0567}
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func tier(min, max, price string) models.PricingTier {
	t := models.PricingTier{
		MinQuantity:  dec(min),
		PricePerUnit: dec(price),
	}
	if max != "" {
		t.MaxQuantity = decimal.NewNullDecimal(dec(max))
	}
	return t
}

func fertilizerTiers() []models.PricingTier {
	return []models.PricingTier{
		tier("0", "50", "20"),
		tier("50", "100", "18"),
		tier("100", "", "15"),
	}
}

type fixture struct {
	store *memstore.Store
	urea  models.Product
	seed  models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	return &fixture{
		store: s,
		urea:  s.PutProduct(models.Product{Name: "Urea 46%", Category: "fertilizer", Unit: "kg", PricingTiers: fertilizerTiers()}),
		seed:  s.PutProduct(models.Product{Name: "Maize seed", Category: "seed", Unit: "kg", PricingTiers: []models.PricingTier{tier("0", "", "40")}}),
	}
}

func (f *fixture) dealer(t *testing.T, name string, at geo.Point, stock map[uuid.UUID]string) models.Dealer {
	t.Helper()
	d := f.store.PutDealer(models.Dealer{
		Name:      name,
		Email:     name + "@dealers.test",
		Phone:     "+27110000000",
		Latitude:  at.Latitude,
		Longitude: at.Longitude,
		Address:   name + " depot",
	})
	for productID, qty := range stock {
		_, err := f.store.SetInventory(context.Background(), d.ID, productID, dec(qty))
		require.NoError(t, err)
	}
	return d
}

func (f *fixture) available(t *testing.T, dealer models.Dealer, product models.Product) decimal.Decimal {
	t.Helper()
	item, ok := f.store.Inventory(dealer.ID, product.ID)
	require.True(t, ok)
	return item.AvailableQty
}
