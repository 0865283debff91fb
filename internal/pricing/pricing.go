// Package pricing validates quantity-tiered price schedules and evaluates the
// total price of a quantity against them.
//
// A valid schedule partitions [0, ∞) exactly: sorted by minimum quantity the
// first tier starts at 0, every tier but the last is bounded, each bounded
// tier ends where the next one starts, and the last tier is open-ended.
package pricing

import (
	"errors"
	"fmt"
	"slices"

	"github.com/safar/go-dealer-router/internal/apperr"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrTierPartition   = errors.New("pricing tiers do not partition the quantity range")
	ErrNoTierMatch     = errors.New("no pricing tier matches quantity")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Rule names the partition condition a schedule violated.
type Rule string

const (
	RuleNonEmpty         Rule = "non_empty"
	RuleStartsAtZero     Rule = "starts_at_zero"
	RuleNonNegative      Rule = "non_negative"
	RuleMinBelowMax      Rule = "min_below_max"
	RuleBoundedUntilLast Rule = "bounded_until_last"
	RuleContiguous       Rule = "contiguous"
	RuleOpenEnded        Rule = "open_ended"
)

// Quote is the price of a quantity under one schedule.
type Quote struct {
	Tier      models.PricingTier
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Sorted returns a copy of tiers ordered by minimum quantity.
func Sorted(tiers []models.PricingTier) []models.PricingTier {
	sorted := slices.Clone(tiers)
	slices.SortStableFunc(sorted, func(a, b models.PricingTier) int {
		return a.MinQuantity.Cmp(b.MinQuantity)
	})
	return sorted
}

// Validate reports the first partition rule tiers break. The caller's slice is
// never reordered.
func Validate(tiers []models.PricingTier) error {
	if len(tiers) == 0 {
		return partitionError(RuleNonEmpty, -1, "at least one pricing tier is required")
	}

	sorted := Sorted(tiers)

	if !sorted[0].MinQuantity.IsZero() {
		return partitionError(RuleStartsAtZero, 0, "first pricing tier must start at quantity 0")
	}

	last := len(sorted) - 1
	for i, tier := range sorted {
		if tier.MinQuantity.IsNegative() || tier.PricePerUnit.IsNegative() {
			return partitionError(RuleNonNegative, i,
				fmt.Sprintf("pricing tier at position %d has a negative quantity or price", i))
		}

		if tier.Bounded() && tier.MinQuantity.GreaterThanOrEqual(tier.MaxQuantity.Decimal) {
			return partitionError(RuleMinBelowMax, i,
				fmt.Sprintf("minQuantity must be less than maxQuantity in tier at position %d", i))
		}

		if i == last {
			break
		}

		if !tier.Bounded() {
			return partitionError(RuleBoundedUntilLast, i,
				fmt.Sprintf("pricing tier at position %d must have a maxQuantity when followed by another tier", i))
		}

		next := sorted[i+1]
		if !next.MinQuantity.Equal(tier.MaxQuantity.Decimal) {
			return partitionError(RuleContiguous, i,
				fmt.Sprintf("gap or overlap detected between pricing tiers at positions %d and %d", i, i+1))
		}
	}

	if sorted[last].Bounded() {
		return partitionError(RuleOpenEnded, last,
			fmt.Sprintf("last pricing tier at position %d must not have a maxQuantity", last))
	}

	return nil
}

// QuoteFor finds the tier covering quantity and prices it. Tier bounds are
// inclusive on both ends; where two tiers share a boundary the lower tier wins.
func QuoteFor(tiers []models.PricingTier, quantity decimal.Decimal) (Quote, error) {
	if !quantity.IsPositive() {
		return Quote{}, apperr.Wrap(apperr.CodeValidation, ErrInvalidQuantity,
			fmt.Sprintf("quantity %s must be greater than 0", quantity)).
			WithDetails(map[string]any{"quantity": quantity.String()})
	}

	for _, tier := range Sorted(tiers) {
		if quantity.LessThan(tier.MinQuantity) {
			continue
		}
		if tier.Bounded() && quantity.GreaterThan(tier.MaxQuantity.Decimal) {
			continue
		}
		return Quote{
			Tier:      tier,
			Quantity:  quantity,
			UnitPrice: tier.PricePerUnit,
			Total:     tier.PricePerUnit.Mul(quantity),
		}, nil
	}

	// Stored schedules are validated on creation, so reaching here means the
	// persisted tiers were altered behind our back.
	return Quote{}, apperr.Wrap(apperr.CodeDataIntegrity, ErrNoTierMatch,
		fmt.Sprintf("no pricing tier found for quantity %s", quantity)).
		WithDetails(map[string]any{"quantity": quantity.String()})
}

// PriceFor returns the total price of quantity under tiers.
func PriceFor(tiers []models.PricingTier, quantity decimal.Decimal) (decimal.Decimal, error) {
	quote, err := QuoteFor(tiers, quantity)
	if err != nil {
		return decimal.Zero, err
	}
	return quote.Total, nil
}

func partitionError(rule Rule, position int, message string) error {
	details := map[string]any{"rule": string(rule)}
	if position >= 0 {
		details["position"] = position
	}
	return apperr.Wrap(apperr.CodeValidation, ErrTierPartition, message).WithDetails(details)
}
