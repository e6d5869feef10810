package custody

import (
	"context"
	"time"

	"github.com/liquidityos/custody-engine-go/domain"
)

// ValueStore is the chain-agnostic port for the substrate that actually holds
// balances. Implementations include the in-memory store (tests, demos) or any
// ledger whose native transfer primitive can be wrapped. The Engine talks
// ONLY to this interface, never to a chain, daemon, or database directly.
type ValueStore interface {
	// Transfer moves amount base units between accounts. Both legs commit or
	// neither does; overflow on the credit leg aborts the whole transfer.
	Transfer(ctx context.Context, from, to domain.Address, amount uint64) error

	// Balance returns the current balance of an account (zero if unknown).
	Balance(ctx context.Context, account domain.Address) (uint64, error)

	// ReserveFloor returns the minimum balance the account must retain to
	// remain allocated in the substrate's storage model.
	ReserveFloor(ctx context.Context, account domain.Address) (uint64, error)
}

// RecordStore persists custody and vesting records keyed by derived address.
// Puts upsert; lookups and deletes for absent records return
// domain.ErrNotFound. Duplicate-creation checks belong to the Engine.
type RecordStore interface {
	GetCustody(ctx context.Context, addr domain.Address) (domain.CustodyRecord, error)
	PutCustody(ctx context.Context, rec domain.CustodyRecord) error
	DeleteCustody(ctx context.Context, addr domain.Address) error

	GetVesting(ctx context.Context, addr domain.Address) (domain.VestingRecord, error)
	PutVesting(ctx context.Context, rec domain.VestingRecord) error
	DeleteVesting(ctx context.Context, addr domain.Address) error
}

// Clock supplies the current time for condition evaluation and record
// timestamps. Production wiring uses SystemClock; tests substitute a manual
// clock to step through schedules.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Registry event kinds, mirrored on the audit trail.
const (
	EventEscrowCreated   = "ESCROW_CREATE"
	EventEscrowExecuted  = "ESCROW_EXECUTE"
	EventEscrowCancelled = "ESCROW_CANCEL"
	EventEscrowClosed    = "ESCROW_CLOSE"
	EventVestingCreated  = "VESTING_CREATE"
	EventVestingWithdraw = "VESTING_WITHDRAW"
	EventVestingCancel   = "VESTING_CANCEL"
	EventVestingClosed   = "VESTING_CLOSE"
)

// MaxEventDescriptionLen bounds the free-text field of a registry event.
const MaxEventDescriptionLen = 100

// RegistryEvent is one audit record of a committed custody operation.
type RegistryEvent struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Amount      uint64         `json:"amount"`
	Initiator   domain.Address `json:"initiator"`
	Target      domain.Address `json:"target"`
	Description string         `json:"description"`
	Timestamp   int64          `json:"timestamp"`
}

// RegistryLogger receives audit events after a custody operation commits.
// It is strictly best-effort: a Record failure must never roll back the fund
// movement it describes; the Engine reports the failure and moves on.
type RegistryLogger interface {
	Record(ctx context.Context, ev RegistryEvent) error
}
