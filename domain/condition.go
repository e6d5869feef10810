package domain

import "fmt"

// ConditionKind tags the release-condition variant stored on a record.
type ConditionKind uint8

const (
	// ConditionUnconditional is always satisfied.
	ConditionUnconditional ConditionKind = iota
	// ConditionTimestamp is satisfied once the clock reaches the stored time.
	ConditionTimestamp
	// ConditionPercentage is satisfied when the requested release, as a share
	// of the total amount, meets the stored threshold.
	ConditionPercentage
)

func (k ConditionKind) String() string {
	switch k {
	case ConditionUnconditional:
		return "UNCONDITIONAL"
	case ConditionTimestamp:
		return "TIMESTAMP"
	case ConditionPercentage:
		return "PERCENTAGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// BasisPointsDenom is the proportional-arithmetic scale. Thresholds are kept
// in basis points (1/10,000) rather than whole percent to reduce truncation
// bias for small amounts.
const BasisPointsDenom = 10_000

// ReleaseCondition is the tagged variant gating release of a custody record.
// Exactly one of the payload fields is meaningful, selected by Kind.
type ReleaseCondition struct {
	Kind ConditionKind

	// Timestamp is the unix-seconds release time for ConditionTimestamp.
	Timestamp int64

	// ThresholdBps is the release threshold in basis points, in (0, 10000],
	// for ConditionPercentage.
	ThresholdBps uint32
}

// Unconditional builds an always-satisfied condition.
func Unconditional() ReleaseCondition {
	return ReleaseCondition{Kind: ConditionUnconditional}
}

// AfterTimestamp builds a time-threshold condition satisfied once now >= t.
func AfterTimestamp(t int64) ReleaseCondition {
	return ReleaseCondition{Kind: ConditionTimestamp, Timestamp: t}
}

// PercentageThreshold builds a percentage-of-amount condition. The percent is
// stored scaled to basis points.
func PercentageThreshold(percent uint32) ReleaseCondition {
	return ReleaseCondition{Kind: ConditionPercentage, ThresholdBps: percent * 100}
}

func (c ReleaseCondition) String() string {
	switch c.Kind {
	case ConditionTimestamp:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Timestamp)
	case ConditionPercentage:
		return fmt.Sprintf("%s(%dbps)", c.Kind, c.ThresholdBps)
	default:
		return c.Kind.String()
	}
}
