package mathutil

import (
	"errors"
	"fmt"
	"math"
)

var ErrOverflow = errors.New("value exceeds target type capacity")

// Uint64ToInt converts a configured count to an int index bound
func Uint64ToInt(v uint64) (int, error) {
	if v > math.MaxInt {
		return 0, fmt.Errorf("value %d overflows int: %w", v, ErrOverflow)
	}
	return int(v), nil
}

// PercentOf returns total * pct / 100, rounding down
func PercentOf(total uint64, pct int) uint64 {
	if pct <= 0 {
		return 0
	}
	return total/100*uint64(pct) + total%100*uint64(pct)/100
}
