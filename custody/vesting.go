package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/liquidityos/custody-engine-go/domain"
)

// VestingCreateRequest parameterizes a new linear vesting schedule. Periods
// are in seconds relative to the creation time: the schedule starts now,
// cliffs at now+CliffPeriod, and ends at now+VestingPeriod.
type VestingCreateRequest struct {
	Admin         domain.Address
	Beneficiary   domain.Address
	Total         uint64
	VestingPeriod int64
	CliffPeriod   int64
	Seed          uint64
}

// CreateVesting derives the schedule address, writes the Active record, and
// moves the total (plus the account's reservation floor) from the admin into
// custody.
func (e *Engine) CreateVesting(ctx context.Context, req VestingCreateRequest) (domain.VestingRecord, error) {
	if req.Total == 0 {
		return domain.VestingRecord{}, fmt.Errorf("create vesting: %w", domain.ErrInvalidAmount)
	}
	if req.Beneficiary.IsZero() {
		return domain.VestingRecord{}, fmt.Errorf("create vesting: beneficiary required: %w", domain.ErrInvalidSchedule)
	}
	if err := ValidateSchedule(req.VestingPeriod, req.CliffPeriod); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("create vesting: %w", err)
	}

	addr, bump, err := e.deriver.Derive(req.Admin, req.Seed, req.Beneficiary)
	if err != nil {
		return domain.VestingRecord{}, fmt.Errorf("create vesting: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Same discipline as escrow creation: only not-found means the address
	// is free; any other read failure aborts before the record upsert.
	if _, err := e.records.GetVesting(ctx, addr); err == nil {
		return domain.VestingRecord{}, fmt.Errorf("create vesting %s: %w", addr, domain.ErrDuplicateAddress)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.VestingRecord{}, fmt.Errorf("create vesting %s: %w", addr, err)
	}

	now := e.clock.Now().Unix()
	rec := domain.VestingRecord{
		Address:     addr,
		Admin:       req.Admin,
		Beneficiary: req.Beneficiary,
		Total:       req.Total,
		Released:    0,
		StartTime:   now,
		CliffTime:   now + req.CliffPeriod,
		EndTime:     now + req.VestingPeriod,
		State:       domain.StateActive,
		Seed:        req.Seed,
		Bump:        bump,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.records.PutVesting(ctx, rec); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("create vesting: %w", err)
	}

	floor, err := e.values.ReserveFloor(ctx, addr)
	if err == nil {
		var deposit uint64
		deposit, err = CheckedAdd(req.Total, floor)
		if err == nil {
			err = e.ledger.Move(ctx, req.Admin, addr, deposit)
		}
	}
	if err != nil {
		if derr := e.records.DeleteVesting(ctx, addr); derr != nil {
			e.log.Error("create vesting rollback failed", "address", addr, "error", derr)
		}
		return domain.VestingRecord{}, fmt.Errorf("create vesting: %w", err)
	}

	e.log.Info("vesting created", "address", addr, "admin", req.Admin, "beneficiary", req.Beneficiary,
		"total", req.Total, "cliff", rec.CliffTime, "end", rec.EndTime)
	e.audit(ctx, EventVestingCreated, req.Total, req.Admin, addr, "vesting schedule funded")
	return rec, nil
}

// WithdrawRequest identifies the schedule by re-derivable inputs. Amount is
// the exact number of base units to withdraw and must be positive.
type WithdrawRequest struct {
	Caller      domain.Address
	Address     domain.Address
	Admin       domain.Address
	Beneficiary domain.Address
	Seed        uint64
	Amount      uint64
}

// Withdraw releases up to the currently-unlocked amount to the beneficiary.
// Released grows monotonically; once it reaches Total the schedule turns
// terminal on its own.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (domain.VestingRecord, error) {
	if req.Amount == 0 {
		return domain.VestingRecord{}, fmt.Errorf("withdraw: %w", domain.ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadVesting(ctx, req.Address, req.Admin, req.Beneficiary, req.Seed)
	if err != nil {
		return domain.VestingRecord{}, fmt.Errorf("withdraw: %w", err)
	}
	if rec.State != domain.StateActive {
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s (state %s): %w", rec.Address, rec.State, domain.ErrNotActive)
	}
	if !req.Caller.Equal(rec.Beneficiary) {
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s: %w", rec.Address, domain.ErrUnauthorized)
	}
	if req.Caller.Equal(rec.Admin) {
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s: %w", rec.Address, domain.ErrSelfDeal)
	}

	now := e.clock.Now().Unix()
	if now < rec.CliffTime {
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s (cliff %d, now %d): %w",
			rec.Address, rec.CliffTime, now, domain.ErrCliffNotReached)
	}

	unlocked, err := Unlocked(now, rec.StartTime, rec.CliffTime, rec.EndTime, rec.Total, rec.Released)
	if err != nil {
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s: %w", rec.Address, err)
	}
	if req.Amount > unlocked {
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s: requested %d, unlocked %d: %w",
			rec.Address, req.Amount, unlocked, domain.ErrInsufficientVested)
	}

	released, err := CheckedAdd(rec.Released, req.Amount)
	if err != nil {
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s: %w", rec.Address, err)
	}

	prev := rec
	rec.Released = released
	rec.UpdatedAt = now
	if rec.Released == rec.Total {
		rec.State = domain.StateExecuted
	}
	if err := e.records.PutVesting(ctx, rec); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("withdraw: %w", err)
	}

	if err := e.ledger.Move(ctx, rec.Address, rec.Beneficiary, req.Amount); err != nil {
		if rerr := e.records.PutVesting(ctx, prev); rerr != nil {
			e.log.Error("withdraw rollback failed", "address", rec.Address, "error", rerr)
		}
		return domain.VestingRecord{}, fmt.Errorf("withdraw %s: %w", rec.Address, err)
	}

	e.log.Info("vesting withdrawal", "address", rec.Address, "beneficiary", rec.Beneficiary,
		"amount", req.Amount, "released", rec.Released, "total", rec.Total)
	e.audit(ctx, EventVestingWithdraw, req.Amount, req.Caller, rec.Beneficiary, "vested value withdrawn")
	return rec, nil
}

// VestingCancelRequest identifies the schedule by re-derivable inputs.
type VestingCancelRequest struct {
	Caller      domain.Address
	Address     domain.Address
	Admin       domain.Address
	Beneficiary domain.Address
	Seed        uint64
}

// CancelVesting refunds Total - Released to the admin and freezes further
// release. Only the admin may cancel.
func (e *Engine) CancelVesting(ctx context.Context, req VestingCancelRequest) (domain.VestingRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadVesting(ctx, req.Address, req.Admin, req.Beneficiary, req.Seed)
	if err != nil {
		return domain.VestingRecord{}, fmt.Errorf("cancel vesting: %w", err)
	}
	if rec.State != domain.StateActive {
		return domain.VestingRecord{}, fmt.Errorf("cancel vesting %s (state %s): %w", rec.Address, rec.State, domain.ErrNotActive)
	}
	if !req.Caller.Equal(rec.Admin) {
		return domain.VestingRecord{}, fmt.Errorf("cancel vesting %s: %w", rec.Address, domain.ErrUnauthorized)
	}

	remaining, err := CheckedSub(rec.Total, rec.Released)
	if err != nil {
		return domain.VestingRecord{}, fmt.Errorf("cancel vesting %s: %w", rec.Address, err)
	}

	prev := rec
	rec.State = domain.StateCancelled
	rec.UpdatedAt = e.clock.Now().Unix()
	if err := e.records.PutVesting(ctx, rec); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("cancel vesting: %w", err)
	}

	if remaining > 0 {
		if err := e.ledger.Move(ctx, rec.Address, rec.Admin, remaining); err != nil {
			if rerr := e.records.PutVesting(ctx, prev); rerr != nil {
				e.log.Error("cancel vesting rollback failed", "address", rec.Address, "error", rerr)
			}
			return domain.VestingRecord{}, fmt.Errorf("cancel vesting %s: %w", rec.Address, err)
		}
	}

	e.log.Info("vesting cancelled", "address", rec.Address, "admin", rec.Admin, "refunded", remaining)
	e.audit(ctx, EventVestingCancel, remaining, req.Caller, rec.Admin, "vesting remainder refunded to admin")
	return rec, nil
}

// VestingCloseRequest identifies the schedule by re-derivable inputs.
type VestingCloseRequest struct {
	Caller      domain.Address
	Address     domain.Address
	Admin       domain.Address
	Beneficiary domain.Address
	Seed        uint64
}

// CloseVesting deallocates a terminal, fully-drained schedule and reclaims
// the reservation floor to the admin. A fully-withdrawn schedule and a
// cancelled one both qualify: in either case no value beyond the floor
// remains in custody.
func (e *Engine) CloseVesting(ctx context.Context, req VestingCloseRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadVesting(ctx, req.Address, req.Admin, req.Beneficiary, req.Seed)
	if err != nil {
		return fmt.Errorf("close vesting: %w", err)
	}
	if !rec.State.Terminal() {
		return fmt.Errorf("close vesting %s (state %s): %w", rec.Address, rec.State, domain.ErrStillActive)
	}
	if !req.Caller.Equal(rec.Admin) {
		return fmt.Errorf("close vesting %s: %w", rec.Address, domain.ErrUnauthorized)
	}
	if err := e.requireDrained(ctx, rec.Address); err != nil {
		return fmt.Errorf("close vesting %s: %w", rec.Address, err)
	}

	reclaimed, err := e.ledger.Drain(ctx, rec.Address, rec.Admin)
	if err != nil {
		return fmt.Errorf("close vesting %s: %w", rec.Address, err)
	}
	if err := e.records.DeleteVesting(ctx, rec.Address); err != nil {
		return fmt.Errorf("close vesting %s: %w", rec.Address, err)
	}

	e.log.Info("vesting closed", "address", rec.Address, "admin", rec.Admin, "floor_reclaimed", reclaimed)
	e.audit(ctx, EventVestingClosed, reclaimed, req.Caller, rec.Admin, "vesting account deallocated")
	return nil
}

// GetVesting fetches a schedule for read-only inspection.
func (e *Engine) GetVesting(ctx context.Context, addr domain.Address) (domain.VestingRecord, error) {
	return e.records.GetVesting(ctx, addr)
}

// UnlockedNow reports the withdrawable amount at the engine's current clock.
func (e *Engine) UnlockedNow(rec domain.VestingRecord) (uint64, error) {
	return e.UnlockedAt(rec, e.clock.Now().Unix())
}

// UnlockedAt reports the withdrawable amount for a schedule at a given time.
func (e *Engine) UnlockedAt(rec domain.VestingRecord, now int64) (uint64, error) {
	if now < rec.CliffTime {
		return 0, nil
	}
	return Unlocked(now, rec.StartTime, rec.CliffTime, rec.EndTime, rec.Total, rec.Released)
}

func (e *Engine) loadVesting(ctx context.Context, addr, admin, beneficiary domain.Address, seed uint64) (domain.VestingRecord, error) {
	rec, err := e.records.GetVesting(ctx, addr)
	if err != nil {
		return domain.VestingRecord{}, err
	}
	if !e.deriver.Verify(addr, admin, seed, rec.Bump, beneficiary) {
		return domain.VestingRecord{}, fmt.Errorf("address %s: %w", addr, domain.ErrAddressMismatch)
	}
	if !rec.Admin.Equal(admin) || !rec.Beneficiary.Equal(beneficiary) || rec.Seed != seed {
		return domain.VestingRecord{}, fmt.Errorf("address %s: %w", addr, domain.ErrAddressMismatch)
	}
	return rec, nil
}
