// Package metrics derives display figures from raw production counters.
package metrics

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates a product parameter that cannot support the
// calculation (zero pallet capacity, non-positive rate).
var ErrInvalidConfig = errors.New("invalid product parameters")

// RemainingPallets returns how many full pallet loads are still needed to
// complete the plan. Overruns clamp to zero; partial loads round down.
func RemainingPallets(plan, actual, palletCapacity int) (int, error) {
	if palletCapacity < 1 {
		return 0, fmt.Errorf("%w: pallet capacity %d", ErrInvalidConfig, palletCapacity)
	}
	remaining := plan - actual
	if remaining < 0 {
		remaining = 0
	}
	return remaining / palletCapacity, nil
}

// RemainingMinutes estimates the minutes until plan completion at the
// product's nominal rate. Overruns clamp to zero.
func RemainingMinutes(plan, actual int, ratePerMinute float64) (float64, error) {
	if ratePerMinute <= 0 {
		return 0, fmt.Errorf("%w: rate per minute %g", ErrInvalidConfig, ratePerMinute)
	}
	remaining := plan - actual
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining) / ratePerMinute, nil
}
