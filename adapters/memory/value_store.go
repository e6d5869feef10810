package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/liquidityos/custody-engine-go/domain"
)

// ValueStore implements custody.ValueStore with in-process maps, for tests
// and demos. Every account carries the same reservation floor, configured at
// construction (zero disables floors entirely).
type ValueStore struct {
	mu       sync.Mutex
	balances map[domain.Address]uint64
	floor    uint64
}

// NewValueStore creates an empty store with the given per-account
// reservation floor.
func NewValueStore(floor uint64) *ValueStore {
	return &ValueStore{
		balances: make(map[domain.Address]uint64),
		floor:    floor,
	}
}

// Fund credits an account directly, bypassing transfer checks. Test and demo
// helper, analogous to simulating an incoming deposit.
func (s *ValueStore) Fund(account domain.Address, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] += amount
}

// Transfer debits the source and credits the destination, committing both
// legs or neither. Underflow on the debit or overflow on the credit aborts
// the whole transfer.
func (s *ValueStore) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fromBal := s.balances[from]
	if fromBal < amount {
		return fmt.Errorf("transfer %d from %s (balance %d): %w", amount, from, fromBal, domain.ErrInsufficientFunds)
	}
	toBal := s.balances[to]
	credited := toBal + amount
	if credited < toBal {
		return fmt.Errorf("credit %d to %s (balance %d): %w", amount, to, toBal, domain.ErrArithmetic)
	}

	s.balances[from] = fromBal - amount
	s.balances[to] = credited
	return nil
}

// Balance returns the account balance, zero for unknown accounts.
func (s *ValueStore) Balance(ctx context.Context, account domain.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account], nil
}

// ReserveFloor returns the uniform floor configured for this store.
func (s *ValueStore) ReserveFloor(ctx context.Context, account domain.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.floor, nil
}
