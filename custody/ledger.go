package custody

import (
	"context"
	"fmt"

	"github.com/liquidityos/custody-engine-go/domain"
)

// Ledger wraps a ValueStore with checked-arithmetic guards and
// reservation-floor enforcement. Every state transition that moves value goes
// through it; nothing else in the engine touches the ValueStore's transfer
// primitive directly.
type Ledger struct {
	values ValueStore
}

// NewLedger wraps the given value store.
func NewLedger(values ValueStore) *Ledger {
	return &Ledger{values: values}
}

// Move transfers amount from one account to another, requiring the source to
// retain its reservation floor afterwards. The underlying store commits both
// legs or neither.
func (l *Ledger) Move(ctx context.Context, from, to domain.Address, amount uint64) error {
	bal, err := l.values.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("ledger move: %w", err)
	}
	floor, err := l.values.ReserveFloor(ctx, from)
	if err != nil {
		return fmt.Errorf("ledger move: %w", err)
	}
	need, err := CheckedAdd(amount, floor)
	if err != nil {
		return fmt.Errorf("ledger move: %w", err)
	}
	if bal < need {
		return fmt.Errorf("ledger move: balance %d, need %d (amount %d + floor %d): %w",
			bal, need, amount, floor, domain.ErrInsufficientFunds)
	}
	if err := l.values.Transfer(ctx, from, to, amount); err != nil {
		return fmt.Errorf("ledger move: %w", err)
	}
	return nil
}

// Drain transfers the account's entire balance, reservation floor included,
// to the destination. Only the closing path uses this: once a record is
// terminal and drained, the floor itself is released back to the payer.
func (l *Ledger) Drain(ctx context.Context, from, to domain.Address) (uint64, error) {
	bal, err := l.values.Balance(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("ledger drain: %w", err)
	}
	if bal == 0 {
		return 0, nil
	}
	if err := l.values.Transfer(ctx, from, to, bal); err != nil {
		return 0, fmt.Errorf("ledger drain: %w", err)
	}
	return bal, nil
}

// CheckedAdd adds two amounts, failing with domain.ErrArithmetic on overflow
// instead of wrapping.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("add %d + %d: %w", a, b, domain.ErrArithmetic)
	}
	return sum, nil
}

// CheckedSub subtracts b from a, failing with domain.ErrArithmetic on
// underflow instead of wrapping.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("sub %d - %d: %w", a, b, domain.ErrArithmetic)
	}
	return a - b, nil
}
