package sqlite_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/liquidityos/custody-engine-go/adapters/sqlite"
	"github.com/liquidityos/custody-engine-go/domain"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "custody.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCustodyRecordRoundtrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	rec := domain.CustodyRecord{
		Address:      domain.AddressFromSeed("escrow"),
		Owner:        domain.AddressFromSeed("alice"),
		Counterparty: domain.AddressFromSeed("bob"),
		Amount:       math.MaxUint64, // full uint64 range must survive storage
		Condition:    domain.PercentageThreshold(75),
		State:        domain.StateActive,
		Seed:         math.MaxUint64,
		Bump:         254,
		CreatedAt:    1_700_000_000,
		UpdatedAt:    1_700_000_000,
	}
	if err := store.PutCustody(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetCustody(ctx, rec.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != rec {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestPutCustodyUpdatesState(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	rec := domain.CustodyRecord{
		Address:   domain.AddressFromSeed("escrow"),
		Owner:     domain.AddressFromSeed("alice"),
		Amount:    100,
		Condition: domain.Unconditional(),
		State:     domain.StateActive,
		Seed:      1,
		Bump:      255,
		CreatedAt: 10,
		UpdatedAt: 10,
	}
	if err := store.PutCustody(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec.State = domain.StateExecuted
	rec.UpdatedAt = 20
	if err := store.PutCustody(ctx, rec); err != nil {
		t.Fatalf("put update: %v", err)
	}

	got, err := store.GetCustody(ctx, rec.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != domain.StateExecuted || got.UpdatedAt != 20 {
		t.Fatalf("update not applied: state=%s updated_at=%d", got.State, got.UpdatedAt)
	}
}

func TestVestingRecordRoundtrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	rec := domain.VestingRecord{
		Address:     domain.AddressFromSeed("vesting"),
		Admin:       domain.AddressFromSeed("alice"),
		Beneficiary: domain.AddressFromSeed("bob"),
		Total:       math.MaxUint64,
		Released:    math.MaxUint64 / 2,
		StartTime:   1_700_000_000,
		CliffTime:   1_700_086_400,
		EndTime:     1_708_640_000,
		State:       domain.StateActive,
		Seed:        7,
		Bump:        253,
		CreatedAt:   1_700_000_000,
		UpdatedAt:   1_700_000_000,
	}
	if err := store.PutVesting(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetVesting(ctx, rec.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != rec {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestMissingRecordsReturnNotFound(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	addr := domain.AddressFromSeed("nobody")

	if _, err := store.GetCustody(ctx, addr); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get custody error = %v, want %v", err, domain.ErrNotFound)
	}
	if _, err := store.GetVesting(ctx, addr); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get vesting error = %v, want %v", err, domain.ErrNotFound)
	}
	if err := store.DeleteCustody(ctx, addr); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete custody error = %v, want %v", err, domain.ErrNotFound)
	}
	if err := store.DeleteVesting(ctx, addr); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete vesting error = %v, want %v", err, domain.ErrNotFound)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	rec := domain.CustodyRecord{
		Address:   domain.AddressFromSeed("escrow"),
		Owner:     domain.AddressFromSeed("alice"),
		Amount:    100,
		Condition: domain.Unconditional(),
		State:     domain.StateExecuted,
		Seed:      1,
		Bump:      255,
	}
	if err := store.PutCustody(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.DeleteCustody(ctx, rec.Address); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetCustody(ctx, rec.Address); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after delete error = %v, want %v", err, domain.ErrNotFound)
	}
}
