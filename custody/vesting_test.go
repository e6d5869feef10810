package custody_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liquidityos/custody-engine-go/adapters/memory"
	"github.com/liquidityos/custody-engine-go/custody"
	"github.com/liquidityos/custody-engine-go/domain"
)

const day = 24 * time.Hour

func (env *testEnv) mustCreateVesting(t *testing.T, req custody.VestingCreateRequest) domain.VestingRecord {
	t.Helper()
	rec, err := env.engine.CreateVesting(context.Background(), req)
	if err != nil {
		t.Fatalf("create vesting: %v", err)
	}
	return rec
}

func TestCreateVestingValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tests := []struct {
		name    string
		req     custody.VestingCreateRequest
		wantErr error
	}{
		{
			"zero total",
			custody.VestingCreateRequest{Admin: env.alice, Beneficiary: env.bob, Total: 0, VestingPeriod: 100, Seed: 1},
			domain.ErrInvalidAmount,
		},
		{
			"missing beneficiary",
			custody.VestingCreateRequest{Admin: env.alice, Total: 100, VestingPeriod: 100, Seed: 1},
			domain.ErrInvalidSchedule,
		},
		{
			"zero vesting period",
			custody.VestingCreateRequest{Admin: env.alice, Beneficiary: env.bob, Total: 100, VestingPeriod: 0, Seed: 1},
			domain.ErrInvalidSchedule,
		},
		{
			"cliff beyond vesting",
			custody.VestingCreateRequest{Admin: env.alice, Beneficiary: env.bob, Total: 100, VestingPeriod: 100, CliffPeriod: 101, Seed: 1},
			domain.ErrInvalidSchedule,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.CreateVesting(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("create vesting error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateVestingDoesNotTreatReadFailureAsFreeAddress(t *testing.T) {
	t.Parallel()

	values := memory.NewValueStore(testFloor)
	flaky := &flakyRecordStore{RecordStore: memory.NewRecordStore()}
	clock := memory.NewClock(time.Unix(1_700_000_000, 0))
	deriver := custody.NewAddressDeriver(domain.AddressFromSeed("test-program"))
	engine := custody.NewEngine(deriver, flaky, values, clock, nil, nil)

	admin := domain.AddressFromSeed("alice")
	dev := domain.AddressFromSeed("bob")
	values.Fund(admin, 1_000_000)

	req := custody.VestingCreateRequest{
		Admin: admin, Beneficiary: dev, Total: 1_000, VestingPeriod: 100 * 86_400, Seed: 1,
	}
	rec, err := engine.CreateVesting(context.Background(), req)
	if err != nil {
		t.Fatalf("create vesting: %v", err)
	}
	clock.Advance(50 * day)
	if _, err := engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: dev, Address: rec.Address, Admin: admin, Beneficiary: dev, Seed: 1, Amount: 500,
	}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// A read failure during the duplicate-address probe must abort; an upsert
	// here would reset Released and let the schedule pay out twice.
	flaky.vestingGetErrs = 1
	_, err = engine.CreateVesting(context.Background(), req)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("create during store outage error = %v, want %v", err, errStoreDown)
	}

	got, err := engine.GetVesting(context.Background(), rec.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Released != 500 {
		t.Fatalf("released = %d, want 500 (schedule reset)", got.Released)
	}
}

func TestCreateVestingAnchorsSchedule(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	now := env.clock.Now().Unix()
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, CliffPeriod: 10 * 86_400, Seed: 1,
	})

	if rec.StartTime != now {
		t.Fatalf("start = %d, want %d", rec.StartTime, now)
	}
	if rec.CliffTime != now+10*86_400 {
		t.Fatalf("cliff = %d, want %d", rec.CliffTime, now+10*86_400)
	}
	if rec.EndTime != now+100*86_400 {
		t.Fatalf("end = %d, want %d", rec.EndTime, now+100*86_400)
	}
	if got := env.balance(t, rec.Address); got != 1_000+testFloor {
		t.Fatalf("vesting balance = %d, want %d", got, 1_000+testFloor)
	}
}

func TestWithdrawBeforeCliff(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, CliffPeriod: 10 * 86_400, Seed: 1,
	})

	env.clock.Advance(9 * day)
	_, err := env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 1,
	})
	if !errors.Is(err, domain.ErrCliffNotReached) {
		t.Fatalf("withdraw error = %v, want %v", err, domain.ErrCliffNotReached)
	}
}

func TestWithdrawBoundsAndMonotonicRelease(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, CliffPeriod: 10 * 86_400, Seed: 1,
	})

	// Halfway through: 5000 bps of 1000 unlocked.
	env.clock.Advance(50 * day)
	_, err := env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 501,
	})
	if !errors.Is(err, domain.ErrInsufficientVested) {
		t.Fatalf("over-withdraw error = %v, want %v", err, domain.ErrInsufficientVested)
	}

	got, err := env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 500,
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got.Released != 500 {
		t.Fatalf("released = %d, want 500", got.Released)
	}
	if got.State != domain.StateActive {
		t.Fatalf("state = %s, want %s", got.State, domain.StateActive)
	}

	// Nothing newly unlocked yet; a second withdrawal must wait.
	_, err = env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 1,
	})
	if !errors.Is(err, domain.ErrInsufficientVested) {
		t.Fatalf("immediate re-withdraw error = %v, want %v", err, domain.ErrInsufficientVested)
	}
}

func TestWithdrawFullTurnsTerminal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	bobBefore := env.balance(t, env.bob)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, Seed: 1,
	})

	env.clock.Advance(101 * day)
	got, err := env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 1_000,
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got.State != domain.StateExecuted {
		t.Fatalf("state = %s, want %s", got.State, domain.StateExecuted)
	}
	if env.balance(t, env.bob) != bobBefore+1_000 {
		t.Fatalf("beneficiary balance = %d, want %d", env.balance(t, env.bob), bobBefore+1_000)
	}

	// Terminal schedules accept no further withdrawals.
	_, err = env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 1,
	})
	if !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("withdraw after full release error = %v, want %v", err, domain.ErrNotActive)
	}
}

func TestWithdrawAuthorization(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, Seed: 1,
	})
	env.clock.Advance(50 * day)

	_, err := env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: domain.AddressFromSeed("mallory"), Address: rec.Address,
		Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 1,
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger withdraw error = %v, want %v", err, domain.ErrUnauthorized)
	}

	// An admin who is also the beneficiary would be self-dealing.
	selfRec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.alice, Total: 100,
		VestingPeriod: 100 * 86_400, Seed: 2,
	})
	_, err = env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.alice, Address: selfRec.Address, Admin: env.alice, Beneficiary: env.alice, Seed: 2, Amount: 1,
	})
	if !errors.Is(err, domain.ErrSelfDeal) {
		t.Fatalf("self-deal withdraw error = %v, want %v", err, domain.ErrSelfDeal)
	}
}

func TestCancelVestingRefundsRemainder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	aliceBefore := env.balance(t, env.alice)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, Seed: 1,
	})

	env.clock.Advance(50 * day)
	if _, err := env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 300,
	}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	got, err := env.engine.CancelVesting(context.Background(), custody.VestingCancelRequest{
		Caller: env.alice, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1,
	})
	if err != nil {
		t.Fatalf("cancel vesting: %v", err)
	}
	if got.State != domain.StateCancelled {
		t.Fatalf("state = %s, want %s", got.State, domain.StateCancelled)
	}
	// 700 of the 1000 came back; 300 went to bob, the floor is still held.
	if env.balance(t, env.alice) != aliceBefore-300-testFloor {
		t.Fatalf("admin balance = %d, want %d", env.balance(t, env.alice), aliceBefore-300-testFloor)
	}

	// Cancelled means frozen: even fully vested value is out of reach.
	env.clock.Advance(100 * day)
	_, err = env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1, Amount: 1,
	})
	if !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("withdraw after cancel error = %v, want %v", err, domain.ErrNotActive)
	}
}

func TestCancelVestingRequiresAdmin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, Seed: 1,
	})
	_, err := env.engine.CancelVesting(context.Background(), custody.VestingCancelRequest{
		Caller: env.bob, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1,
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("cancel vesting error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestCloseVestingReclaimsFloor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	aliceBefore := env.balance(t, env.alice)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, Seed: 1,
	})

	closeReq := custody.VestingCloseRequest{
		Caller: env.alice, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1,
	}
	if err := env.engine.CloseVesting(context.Background(), closeReq); !errors.Is(err, domain.ErrStillActive) {
		t.Fatalf("close active schedule error = %v, want %v", err, domain.ErrStillActive)
	}

	if _, err := env.engine.CancelVesting(context.Background(), custody.VestingCancelRequest{
		Caller: env.alice, Address: rec.Address, Admin: env.alice, Beneficiary: env.bob, Seed: 1,
	}); err != nil {
		t.Fatalf("cancel vesting: %v", err)
	}
	if err := env.engine.CloseVesting(context.Background(), closeReq); err != nil {
		t.Fatalf("close vesting: %v", err)
	}

	// Everything including the floor is back with the admin.
	if env.balance(t, env.alice) != aliceBefore {
		t.Fatalf("admin balance = %d, want %d", env.balance(t, env.alice), aliceBefore)
	}
	if err := env.engine.CloseVesting(context.Background(), closeReq); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second close error = %v, want %v", err, domain.ErrNotFound)
	}
}

func TestVestingForgedAddressRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, Seed: 1,
	})
	env.clock.Advance(50 * day)

	// Same address, different beneficiary claim: re-derivation must fail.
	_, err := env.engine.Withdraw(context.Background(), custody.WithdrawRequest{
		Caller: domain.AddressFromSeed("mallory"), Address: rec.Address,
		Admin: env.alice, Beneficiary: domain.AddressFromSeed("mallory"), Seed: 1, Amount: 1,
	})
	if !errors.Is(err, domain.ErrAddressMismatch) {
		t.Fatalf("withdraw error = %v, want %v", err, domain.ErrAddressMismatch)
	}
}

func TestUnlockedAtRespectsCliff(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.mustCreateVesting(t, custody.VestingCreateRequest{
		Admin: env.alice, Beneficiary: env.bob, Total: 1_000,
		VestingPeriod: 100 * 86_400, CliffPeriod: 10 * 86_400, Seed: 1,
	})

	got, err := env.engine.UnlockedAt(rec, rec.CliffTime-1)
	if err != nil {
		t.Fatalf("unlocked at: %v", err)
	}
	if got != 0 {
		t.Fatalf("unlocked before cliff = %d, want 0", got)
	}
	got, err = env.engine.UnlockedAt(rec, rec.EndTime)
	if err != nil {
		t.Fatalf("unlocked at end: %v", err)
	}
	if got != 1_000 {
		t.Fatalf("unlocked at end = %d, want 1000", got)
	}
}
