package custody

import (
	"fmt"
	"math/bits"

	"github.com/liquidityos/custody-engine-go/domain"
)

// ValidateSchedule checks vesting periods at initialization. The vesting
// period must be positive and the cliff must fall inside it.
func ValidateSchedule(vestingPeriod, cliffPeriod int64) error {
	if vestingPeriod <= 0 {
		return fmt.Errorf("vesting period %d must be positive: %w", vestingPeriod, domain.ErrInvalidSchedule)
	}
	if cliffPeriod < 0 {
		return fmt.Errorf("cliff period %d must be non-negative: %w", cliffPeriod, domain.ErrInvalidSchedule)
	}
	if cliffPeriod > vestingPeriod {
		return fmt.Errorf("cliff period %d exceeds vesting period %d: %w",
			cliffPeriod, vestingPeriod, domain.ErrInvalidSchedule)
	}
	return nil
}

// Unlocked computes the amount currently withdrawable from a linear schedule:
// zero before the cliff, everything unreleased after the end, and otherwise
// the vested share measured from start (not from the cliff) minus what was
// already released. Vesting progress is computed in basis points with the
// multiply widened to 128 bits, so the largest representable totals cannot
// overflow.
func Unlocked(now, start, cliff, end int64, total, released uint64) (uint64, error) {
	if end <= start {
		return 0, fmt.Errorf("vesting duration %d..%d: %w", start, end, domain.ErrArithmetic)
	}
	if cliff < start || cliff > end {
		return 0, fmt.Errorf("cliff %d outside %d..%d: %w", cliff, start, end, domain.ErrInvalidSchedule)
	}
	if released > total {
		return 0, fmt.Errorf("released %d exceeds total %d: %w", released, total, domain.ErrArithmetic)
	}
	if now < cliff {
		return 0, nil
	}
	if now >= end {
		return total - released, nil
	}

	elapsed := uint64(now - start)
	duration := uint64(end - start)

	// floor(elapsed * 10000 / duration); elapsed < duration keeps the 128-bit
	// quotient under 10000.
	hi, lo := bits.Mul64(elapsed, domain.BasisPointsDenom)
	vestedBps, _ := bits.Div64(hi, lo, duration)

	// floor(total * vestedBps / 10000); vestedBps < 10000 keeps hi below the
	// divisor.
	hi, lo = bits.Mul64(total, vestedBps)
	vested, _ := bits.Div64(hi, lo, domain.BasisPointsDenom)

	if vested < released {
		return 0, nil
	}
	return vested - released, nil
}
