package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/liquidityos/custody-engine-go/domain"
)

// Engine is the custody state machine: it validates preconditions, executes
// the state transition, moves value through the Ledger, and updates the
// stored record. Each operation is all-or-nothing: the host-substrate
// serialization the design assumes is reproduced in-process with a mutex plus
// an explicit record rollback if a transfer fails after the state flip.
//
// Ordering discipline inside every operation: validate, then flip the
// record's state, then move value, never the reverse. A failed transfer can
// therefore never leave a record in a state that would let the same release
// succeed twice.
type Engine struct {
	mu       sync.Mutex
	deriver  *AddressDeriver
	records  RecordStore
	values   ValueStore
	ledger   *Ledger
	clock    Clock
	registry RegistryLogger
	log      *slog.Logger
}

// NewEngine wires the state machine. registry may be nil to disable audit
// logging; log may be nil to use the default slog logger.
func NewEngine(deriver *AddressDeriver, records RecordStore, values ValueStore, clock Clock, registry RegistryLogger, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		deriver:  deriver,
		records:  records,
		values:   values,
		ledger:   NewLedger(values),
		clock:    clock,
		registry: registry,
		log:      log,
	}
}

// CreateRequest parameterizes a new escrow. Counterparty may be zero, in
// which case any non-owner caller may execute once the condition holds.
type CreateRequest struct {
	Owner        domain.Address
	Counterparty domain.Address
	Amount       uint64
	Condition    domain.ReleaseCondition
	Seed         uint64
}

// Create derives the custody address, writes the Active record, and moves the
// deposit (plus the account's reservation floor) from the owner into custody.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (domain.CustodyRecord, error) {
	now := e.clock.Now().Unix()
	if req.Amount == 0 {
		return domain.CustodyRecord{}, fmt.Errorf("create: %w", domain.ErrInvalidAmount)
	}
	if err := ValidateCondition(req.Condition, now); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("create: %w", err)
	}

	addr, bump, err := e.deriver.Derive(req.Owner, req.Seed)
	if err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("create: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Only a positive not-found proves the address is free. Any other read
	// failure must not be mistaken for a vacant slot: an upsert over a live
	// record would reopen a terminal escrow.
	if _, err := e.records.GetCustody(ctx, addr); err == nil {
		return domain.CustodyRecord{}, fmt.Errorf("create %s: %w", addr, domain.ErrDuplicateAddress)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.CustodyRecord{}, fmt.Errorf("create %s: %w", addr, err)
	}

	rec := domain.CustodyRecord{
		Address:      addr,
		Owner:        req.Owner,
		Counterparty: req.Counterparty,
		Amount:       req.Amount,
		Condition:    req.Condition,
		State:        domain.StateActive,
		Seed:         req.Seed,
		Bump:         bump,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.records.PutCustody(ctx, rec); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("create: %w", err)
	}

	// Deposit covers the escrow amount plus the custody account's
	// reservation floor, reclaimed later by close.
	floor, err := e.values.ReserveFloor(ctx, addr)
	if err == nil {
		var deposit uint64
		deposit, err = CheckedAdd(req.Amount, floor)
		if err == nil {
			err = e.ledger.Move(ctx, req.Owner, addr, deposit)
		}
	}
	if err != nil {
		if derr := e.records.DeleteCustody(ctx, addr); derr != nil {
			e.log.Error("create rollback failed", "address", addr, "error", derr)
		}
		return domain.CustodyRecord{}, fmt.Errorf("create: %w", err)
	}

	e.log.Info("escrow created", "address", addr, "owner", req.Owner, "amount", req.Amount, "condition", req.Condition)
	e.audit(ctx, EventEscrowCreated, req.Amount, req.Owner, addr, "escrow deposit taken into custody")
	return rec, nil
}

// ExecuteRequest identifies the record by re-derivable inputs. Amount zero
// requests the full escrow amount.
type ExecuteRequest struct {
	Caller  domain.Address
	Address domain.Address
	Owner   domain.Address
	Seed    uint64
	Amount  uint64
}

// Execute releases custody to the counterparty. The caller must not be the
// owner (self-dealing), must be the bound counterparty if one exists, and the
// release condition must hold. For percentage-threshold escrows a partial
// request releases the requested amount to the caller and refunds the
// remainder to the owner in the same operation, so a record leaving Active is
// always fully drained.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (domain.CustodyRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadCustody(ctx, req.Address, req.Owner, req.Seed)
	if err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("execute: %w", err)
	}
	if rec.State != domain.StateActive {
		return domain.CustodyRecord{}, fmt.Errorf("execute %s (state %s): %w", rec.Address, rec.State, domain.ErrNotActive)
	}
	if req.Caller.Equal(rec.Owner) {
		return domain.CustodyRecord{}, fmt.Errorf("execute %s: %w", rec.Address, domain.ErrSelfDeal)
	}
	if !rec.Counterparty.IsZero() && !req.Caller.Equal(rec.Counterparty) {
		return domain.CustodyRecord{}, fmt.Errorf("execute %s: %w", rec.Address, domain.ErrUnauthorized)
	}

	requested := req.Amount
	if requested == 0 {
		requested = rec.Amount
	}
	if requested > rec.Amount {
		return domain.CustodyRecord{}, fmt.Errorf("execute %s: requested %d exceeds escrow amount %d: %w",
			rec.Address, requested, rec.Amount, domain.ErrInvalidAmount)
	}

	now := e.clock.Now().Unix()
	if err := EvaluateCondition(rec.Condition, now, requested, rec.Amount); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("execute %s: %w", rec.Address, err)
	}

	recipient := rec.Counterparty
	if recipient.IsZero() {
		recipient = req.Caller
	}
	refund := rec.Amount - requested

	// Flip state before moving value.
	prev := rec
	rec.State = domain.StateExecuted
	rec.UpdatedAt = now
	if err := e.records.PutCustody(ctx, rec); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("execute: %w", err)
	}

	if err := e.payout(ctx, rec.Address, recipient, requested, rec.Owner, refund); err != nil {
		if rerr := e.records.PutCustody(ctx, prev); rerr != nil {
			e.log.Error("execute rollback failed", "address", rec.Address, "error", rerr)
		}
		return domain.CustodyRecord{}, fmt.Errorf("execute %s: %w", rec.Address, err)
	}

	e.log.Info("escrow executed", "address", rec.Address, "recipient", recipient, "released", requested, "refunded", refund)
	e.audit(ctx, EventEscrowExecuted, requested, req.Caller, recipient, "escrow released to counterparty")
	return rec, nil
}

// payout performs the release leg and, for partial releases, the owner refund
// leg. If the refund leg fails the release leg is compensated, keeping the
// operation all-or-nothing across both transfers.
func (e *Engine) payout(ctx context.Context, custody, recipient domain.Address, released uint64, owner domain.Address, refund uint64) error {
	if err := e.ledger.Move(ctx, custody, recipient, released); err != nil {
		return err
	}
	if refund == 0 {
		return nil
	}
	if err := e.ledger.Move(ctx, custody, owner, refund); err != nil {
		if cerr := e.values.Transfer(ctx, recipient, custody, released); cerr != nil {
			e.log.Error("payout compensation failed", "custody", custody, "error", cerr)
		}
		return err
	}
	return nil
}

// CancelRequest identifies the record by re-derivable inputs.
type CancelRequest struct {
	Caller  domain.Address
	Address domain.Address
	Owner   domain.Address
	Seed    uint64
}

// Cancel returns the escrowed amount to the owner. Only the owner may cancel,
// and only while the record is Active; if an execute already committed, the
// cancel observes the terminal state and fails.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (domain.CustodyRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadCustody(ctx, req.Address, req.Owner, req.Seed)
	if err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("cancel: %w", err)
	}
	if rec.State != domain.StateActive {
		return domain.CustodyRecord{}, fmt.Errorf("cancel %s (state %s): %w", rec.Address, rec.State, domain.ErrNotActive)
	}
	if !req.Caller.Equal(rec.Owner) {
		return domain.CustodyRecord{}, fmt.Errorf("cancel %s: %w", rec.Address, domain.ErrUnauthorized)
	}

	prev := rec
	rec.State = domain.StateCancelled
	rec.UpdatedAt = e.clock.Now().Unix()
	if err := e.records.PutCustody(ctx, rec); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("cancel: %w", err)
	}

	if err := e.ledger.Move(ctx, rec.Address, rec.Owner, rec.Amount); err != nil {
		if rerr := e.records.PutCustody(ctx, prev); rerr != nil {
			e.log.Error("cancel rollback failed", "address", rec.Address, "error", rerr)
		}
		return domain.CustodyRecord{}, fmt.Errorf("cancel %s: %w", rec.Address, err)
	}

	e.log.Info("escrow cancelled", "address", rec.Address, "owner", rec.Owner, "refunded", rec.Amount)
	e.audit(ctx, EventEscrowCancelled, rec.Amount, req.Caller, rec.Owner, "escrow refunded to owner")
	return rec, nil
}

// CloseRequest identifies the record by re-derivable inputs.
type CloseRequest struct {
	Caller  domain.Address
	Address domain.Address
	Owner   domain.Address
	Seed    uint64
}

// Close deallocates a terminal, fully-drained record, reclaiming the
// reservation floor to the owner. A second close finds no record and fails
// with not-found, so the floor can never be refunded twice.
func (e *Engine) Close(ctx context.Context, req CloseRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadCustody(ctx, req.Address, req.Owner, req.Seed)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if !rec.State.Terminal() {
		return fmt.Errorf("close %s (state %s): %w", rec.Address, rec.State, domain.ErrStillActive)
	}
	if !req.Caller.Equal(rec.Owner) {
		return fmt.Errorf("close %s: %w", rec.Address, domain.ErrUnauthorized)
	}
	if err := e.requireDrained(ctx, rec.Address); err != nil {
		return fmt.Errorf("close %s: %w", rec.Address, err)
	}

	reclaimed, err := e.ledger.Drain(ctx, rec.Address, rec.Owner)
	if err != nil {
		return fmt.Errorf("close %s: %w", rec.Address, err)
	}
	if err := e.records.DeleteCustody(ctx, rec.Address); err != nil {
		return fmt.Errorf("close %s: %w", rec.Address, err)
	}

	e.log.Info("escrow closed", "address", rec.Address, "owner", rec.Owner, "floor_reclaimed", reclaimed)
	e.audit(ctx, EventEscrowClosed, reclaimed, req.Caller, rec.Owner, "custody account deallocated")
	return nil
}

// GetCustody fetches a record for read-only inspection.
func (e *Engine) GetCustody(ctx context.Context, addr domain.Address) (domain.CustodyRecord, error) {
	return e.records.GetCustody(ctx, addr)
}

// loadCustody fetches the record and proves the presented address is the one
// derived from (owner, seed) and the stored bump before any field is trusted.
func (e *Engine) loadCustody(ctx context.Context, addr, owner domain.Address, seed uint64) (domain.CustodyRecord, error) {
	rec, err := e.records.GetCustody(ctx, addr)
	if err != nil {
		return domain.CustodyRecord{}, err
	}
	if !e.deriver.Verify(addr, owner, seed, rec.Bump) {
		return domain.CustodyRecord{}, fmt.Errorf("address %s: %w", addr, domain.ErrAddressMismatch)
	}
	if !rec.Owner.Equal(owner) || rec.Seed != seed {
		return domain.CustodyRecord{}, fmt.Errorf("address %s: %w", addr, domain.ErrAddressMismatch)
	}
	return rec, nil
}

// requireDrained verifies no value beyond the reservation floor remains.
func (e *Engine) requireDrained(ctx context.Context, addr domain.Address) error {
	bal, err := e.values.Balance(ctx, addr)
	if err != nil {
		return err
	}
	floor, err := e.values.ReserveFloor(ctx, addr)
	if err != nil {
		return err
	}
	if bal > floor {
		return fmt.Errorf("balance %d exceeds floor %d: %w", bal, floor, domain.ErrFundsRemaining)
	}
	return nil
}

// audit reports a committed operation to the registry. Failures are logged
// and swallowed: the audit trail is best-effort and must never undo a fund
// movement that already committed.
func (e *Engine) audit(ctx context.Context, kind string, amount uint64, initiator, target domain.Address, desc string) {
	if e.registry == nil {
		return
	}
	ev := RegistryEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		Amount:      amount,
		Initiator:   initiator,
		Target:      target,
		Description: desc,
		Timestamp:   e.clock.Now().Unix(),
	}
	if err := e.registry.Record(ctx, ev); err != nil {
		e.log.Warn("registry record failed", "kind", kind, "target", target, "error", err)
	}
}
