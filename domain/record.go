package domain

// State is the lifecycle position of a custody record. Transitions only ever
// run Active -> Executed or Active -> Cancelled; a terminal state never
// reverses and never repeats. A closed record is erased rather than given a
// fourth state.
type State uint8

const (
	// StateUninitialized is the zero value; no live record carries it.
	StateUninitialized State = iota
	StateActive
	StateExecuted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateActive:
		return "ACTIVE"
	case StateExecuted:
		return "EXECUTED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the record can no longer release value (except the
// final reservation-floor reclaim during close).
func (s State) Terminal() bool {
	return s == StateExecuted || s == StateCancelled
}

// ReservedLen is the forward-compatibility padding carried by every record.
const ReservedLen = 64

// CustodyRecord is the stored state of one escrow instance. The record lives
// at Address, which is reproducible only from (program identity, Owner, Seed,
// Bump); every mutating operation re-derives and verifies it before trusting
// the record's contents.
type CustodyRecord struct {
	Address      Address
	Owner        Address
	Counterparty Address // zero until bound; zero means any non-owner may execute
	Amount       uint64  // immutable after creation, > 0
	Condition    ReleaseCondition
	State        State
	Seed         uint64
	Bump         uint8
	CreatedAt    int64 // unix seconds, monotonically non-decreasing
	UpdatedAt    int64
	Reserved     [ReservedLen]byte
}
