package domain

import "errors"

// Error taxonomy for custody operations. Every operation fails with exactly
// one of these sentinels (possibly wrapped with context via fmt.Errorf and %w)
// and leaves all state untouched.

// Validation errors: rejected before any state mutation.
var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidCondition   = errors.New("invalid release condition")
	ErrInvalidSchedule    = errors.New("invalid vesting schedule")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
)

// Authorization errors: rejected before any state mutation.
var (
	ErrUnauthorized = errors.New("caller is not authorized")
	ErrSelfDeal     = errors.New("owner cannot execute own custody record")
)

// State errors: the operation is invalid for the record's current state.
var (
	ErrNotActive        = errors.New("custody record is not active")
	ErrStillActive      = errors.New("custody record is still active")
	ErrFundsRemaining   = errors.New("custody record is not fully drained")
	ErrNotFound         = errors.New("custody record not found")
	ErrDuplicateAddress = errors.New("a live record already occupies the derived address")
	ErrAddressMismatch  = errors.New("presented address does not match derivation")
)

// Arithmetic errors: the whole operation aborts with no partial write.
var (
	ErrArithmetic        = errors.New("checked arithmetic overflow or underflow")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Timing errors: the condition is not met yet; the caller may retry later.
var (
	ErrConditionNotMet    = errors.New("release condition not met")
	ErrCliffNotReached    = errors.New("cliff time not reached yet")
	ErrInsufficientVested = errors.New("insufficient vested amount available")
)

// ErrAddressDerivation is returned when no disambiguation nonce yields a
// usable address. With a 256-bit hash this is not reachable in practice.
var ErrAddressDerivation = errors.New("unable to derive a custody address")
