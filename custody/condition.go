package custody

import (
	"fmt"
	"math/bits"

	"github.com/liquidityos/custody-engine-go/domain"
)

// ValidateCondition checks a release condition at creation time. Timestamp
// conditions must be strictly in the future: a condition that is already
// satisfiable at creation is a validation error, not a degenerate escrow.
func ValidateCondition(cond domain.ReleaseCondition, now int64) error {
	switch cond.Kind {
	case domain.ConditionUnconditional:
		return nil
	case domain.ConditionTimestamp:
		if cond.Timestamp <= now {
			return fmt.Errorf("release timestamp %d is not in the future (now %d): %w",
				cond.Timestamp, now, domain.ErrInvalidCondition)
		}
		return nil
	case domain.ConditionPercentage:
		if cond.ThresholdBps == 0 || cond.ThresholdBps > domain.BasisPointsDenom {
			return fmt.Errorf("threshold %d bps outside (0, %d]: %w",
				cond.ThresholdBps, domain.BasisPointsDenom, domain.ErrInvalidCondition)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %d: %w", cond.Kind, domain.ErrInvalidCondition)
	}
}

// EvaluateCondition decides whether a release of `requested` out of `total`
// may proceed at time `now`. A failed evaluation is a timing error the caller
// may retry later; it never mutates state.
func EvaluateCondition(cond domain.ReleaseCondition, now int64, requested, total uint64) error {
	switch cond.Kind {
	case domain.ConditionUnconditional:
		return nil
	case domain.ConditionTimestamp:
		if now < cond.Timestamp {
			return fmt.Errorf("release time %d not reached (now %d): %w",
				cond.Timestamp, now, domain.ErrConditionNotMet)
		}
		return nil
	case domain.ConditionPercentage:
		share, err := shareBps(requested, total)
		if err != nil {
			return err
		}
		if share < uint64(cond.ThresholdBps) {
			return fmt.Errorf("requested %d of %d is %d bps, threshold %d bps: %w",
				requested, total, share, cond.ThresholdBps, domain.ErrConditionNotMet)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %d: %w", cond.Kind, domain.ErrInvalidCondition)
	}
}

// shareBps computes floor(requested * 10000 / total) with the multiply
// widened to 128 bits so the largest representable amounts cannot overflow.
func shareBps(requested, total uint64) (uint64, error) {
	if total == 0 {
		return 0, fmt.Errorf("share of zero total: %w", domain.ErrArithmetic)
	}
	if requested > total {
		return 0, fmt.Errorf("requested %d exceeds total %d: %w", requested, total, domain.ErrInvalidAmount)
	}
	hi, lo := bits.Mul64(requested, domain.BasisPointsDenom)
	// requested <= total, so the quotient is at most 10000 and hi < total.
	q, _ := bits.Div64(hi, lo, total)
	return q, nil
}
