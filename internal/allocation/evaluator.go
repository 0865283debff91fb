package allocation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/safar/go-dealer-router/internal/pricing"
	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// ItemBreakdown is the priced view of one line item at one dealer.
type ItemBreakdown struct {
	ProductID    uuid.UUID
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	TotalPrice   decimal.Decimal
	// AvailableStock is the dealer's unreserved quantity, zero when the dealer
	// carries no row for the product.
	AvailableStock decimal.Decimal
	Shortfall      decimal.Decimal
	Sufficient     bool
}

// DealerMatch is the outcome of evaluating one dealer against an order.
//
// TotalCost only sums lines the dealer can cover. For a dealer that cannot
// fulfil the whole order it is therefore not a complete price; such dealers
// always rank behind feasible ones.
type DealerMatch struct {
	Dealer     models.Dealer
	Items      []ItemBreakdown
	TotalCost  decimal.Decimal
	DistanceKm float64
	CanFulfill bool
}

func (m DealerMatch) DealerID() uuid.UUID {
	return m.Dealer.ID
}

// EvaluateDealer prices items against products' tiers and checks dealer's
// stock for each. Lines naming the same product are checked cumulatively so a
// dealer is feasible only if it covers all of them at once.
func EvaluateDealer(dealer models.Dealer, items []LineItem, products map[uuid.UUID]models.Product, delivery geo.Point) (DealerMatch, error) {
	match := DealerMatch{
		Dealer:     dealer,
		Items:      make([]ItemBreakdown, 0, len(items)),
		TotalCost:  decimal.Zero,
		CanFulfill: true,
	}

	requested := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return DealerMatch{}, fmt.Errorf("evaluate dealer %s: product %s not loaded", dealer.ID, item.ProductID)
		}

		quote, err := pricing.QuoteFor(product.PricingTiers, item.Quantity)
		if err != nil {
			return DealerMatch{}, fmt.Errorf("price product %s: %w", item.ProductID, err)
		}

		needed := requested[item.ProductID].Add(item.Quantity)
		requested[item.ProductID] = needed

		available := decimal.Zero
		if inv, ok := dealer.InventoryFor(item.ProductID); ok {
			available = inv.AvailableQty
		}

		line := ItemBreakdown{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			PricePerUnit:   quote.UnitPrice,
			TotalPrice:     quote.Total,
			AvailableStock: available,
			Shortfall:      decimal.Zero,
			Sufficient:     available.GreaterThanOrEqual(needed),
		}

		if line.Sufficient {
			match.TotalCost = match.TotalCost.Add(quote.Total)
		} else {
			match.CanFulfill = false
			line.Shortfall = needed.Sub(available)
		}

		match.Items = append(match.Items, line)
	}

	match.DistanceKm = geo.DistanceKm(delivery.Latitude, delivery.Longitude, dealer.Latitude, dealer.Longitude)

	return match, nil
}

// carriesAny reports whether dealer has a stock row for any of productIDs.
func carriesAny(dealer models.Dealer, productIDs []uuid.UUID) bool {
	for _, id := range productIDs {
		if _, ok := dealer.InventoryFor(id); ok {
			return true
		}
	}
	return false
}
