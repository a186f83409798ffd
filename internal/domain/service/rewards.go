package service

import (
	"math"

	"github.com/holiman/uint256"
)

// Entitlement returns staked * rate * epochs, saturating at math.MaxUint64.
func Entitlement(staked, rate, epochs uint64) uint64 {
	var product, total uint256.Int
	if _, overflow := product.MulOverflow(uint256.NewInt(staked), uint256.NewInt(rate)); overflow {
		return math.MaxUint64
	}
	if _, overflow := total.MulOverflow(&product, uint256.NewInt(epochs)); overflow || !total.IsUint64() {
		return math.MaxUint64
	}
	return total.Uint64()
}

// EpochsElapsed is the number of whole epochs since the last claim, never negative.
func EpochsElapsed(current, lastClaim uint64) uint64 {
	if current <= lastClaim {
		return 0
	}
	return current - lastClaim
}

// addChecked adds b to a, reporting ErrArithmeticOverflow instead of wrapping.
func addChecked(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// saturatingAdd is used for lifetime counters, which stop at the maximum.
func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
