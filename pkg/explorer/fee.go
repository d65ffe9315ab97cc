package explorer

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// MinConfTarget ...
	MinConfTarget = 1
	// MaxConfTarget is the greatest target reported by FeeEstimates.
	MaxConfTarget = 25
)

var (
	// ErrInvalidConfTarget ...
	ErrInvalidConfTarget = errors.New("confirmation target must be at least 1 block")
	// ErrNoFeeEstimates ...
	ErrNoFeeEstimates = errors.New("provider returned no fee estimates")
)

// FeeEstimator is implemented by providers that return the rates of every
// confirmation target they know in a single request, as a target -> sat/vB
// table.
type FeeEstimator interface {
	EstimateFeeRates(ctx context.Context) (map[int]decimal.Decimal, error)
}

// PickFeeRate returns the rate for the given confirmation target out of a
// target -> sat/vB table. Without an exact entry, the closest faster target
// is used; if the table has none, the fastest available is used.
func PickFeeRate(
	estimates map[int]decimal.Decimal, blocks int,
) (decimal.Decimal, error) {
	if blocks < MinConfTarget {
		return decimal.Zero, ErrInvalidConfTarget
	}
	if len(estimates) <= 0 {
		return decimal.Zero, ErrNoFeeEstimates
	}
	if rate, ok := estimates[blocks]; ok {
		return rate, nil
	}

	targets := make([]int, 0, len(estimates))
	for t := range estimates {
		targets = append(targets, t)
	}
	sort.Ints(targets)

	best := targets[0]
	for _, t := range targets {
		if t > blocks {
			break
		}
		best = t
	}
	return estimates[best], nil
}
