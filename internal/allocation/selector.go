package allocation

import (
	"cmp"
	"errors"
	"slices"

	"github.com/shopspring/decimal"
)

var ErrNoFeasibleDealer = errors.New("no dealer can fulfil every line item")

// CostTolerance is the band within which two total costs count as equal.
var CostTolerance = decimal.RequireFromString("0.01")

// Rank orders matches best first: feasible before infeasible, then cheaper
// (outside CostTolerance), then nearer, then by dealer id.
func Rank(matches []DealerMatch) []DealerMatch {
	ranked := slices.Clone(matches)
	slices.SortStableFunc(ranked, compareMatches)
	return ranked
}

// SelectDealer returns the best feasible match.
func SelectDealer(matches []DealerMatch) (DealerMatch, error) {
	if len(matches) == 0 {
		return DealerMatch{}, ErrNoFeasibleDealer
	}

	best := Rank(matches)[0]
	if !best.CanFulfill {
		return DealerMatch{}, ErrNoFeasibleDealer
	}
	return best, nil
}

func compareMatches(a, b DealerMatch) int {
	if a.CanFulfill != b.CanFulfill {
		if a.CanFulfill {
			return -1
		}
		return 1
	}

	if a.TotalCost.Sub(b.TotalCost).Abs().GreaterThan(CostTolerance) {
		return a.TotalCost.Cmp(b.TotalCost)
	}

	if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
		return c
	}

	return cmp.Compare(a.Dealer.ID.String(), b.Dealer.ID.String())
}
