package custody_test

import (
	"errors"
	"math"
	"testing"

	"github.com/liquidityos/custody-engine-go/custody"
	"github.com/liquidityos/custody-engine-go/domain"
)

func TestUnlockedBeforeCliff(t *testing.T) {
	t.Parallel()

	got, err := custody.Unlocked(99, 0, 100, 1100, 1000, 0)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if got != 0 {
		t.Fatalf("unlocked before cliff = %d, want 0", got)
	}
}

func TestUnlockedAfterEnd(t *testing.T) {
	t.Parallel()

	got, err := custody.Unlocked(1100, 0, 100, 1100, 1000, 300)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if got != 700 {
		t.Fatalf("unlocked after end = %d, want 700 (total - released)", got)
	}
}

func TestUnlockedLinearMidSchedule(t *testing.T) {
	t.Parallel()

	// Vesting progress is measured from start, not from the cliff: at
	// now=600 the elapsed share is 600/1100 = 5454 bps, so 545 of 1000.
	got, err := custody.Unlocked(600, 0, 100, 1100, 1000, 0)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if got != 545 {
		t.Fatalf("unlocked at now=600 = %d, want 545", got)
	}
}

func TestUnlockedSubtractsReleased(t *testing.T) {
	t.Parallel()

	got, err := custody.Unlocked(600, 0, 100, 1100, 1000, 500)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if got != 45 {
		t.Fatalf("unlocked = %d, want 45 (545 vested - 500 released)", got)
	}
}

func TestUnlockedClampsWhenReleasedAhead(t *testing.T) {
	t.Parallel()

	// Released can exceed the vested share only transiently (e.g. a schedule
	// replayed against an earlier clock); unlocked never goes negative.
	got, err := custody.Unlocked(600, 0, 100, 1100, 1000, 600)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if got != 0 {
		t.Fatalf("unlocked = %d, want 0", got)
	}
}

func TestUnlockedIsMonotonicInTime(t *testing.T) {
	t.Parallel()

	prev := uint64(0)
	for now := int64(0); now <= 1200; now += 7 {
		got, err := custody.Unlocked(now, 0, 100, 1100, 1000, 0)
		if err != nil {
			t.Fatalf("unlocked(now=%d): %v", now, err)
		}
		if got < prev {
			t.Fatalf("unlocked decreased: %d at now=%d, was %d", got, now, prev)
		}
		prev = got
	}
}

func TestUnlockedWidensLargeTotals(t *testing.T) {
	t.Parallel()

	// total * vestedBps overflows uint64; the 128-bit widening must not.
	got, err := custody.Unlocked(500, 0, 0, 1000, math.MaxUint64, 0)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	want := uint64(math.MaxUint64 / 2) // 5000 bps of MaxUint64, floored
	// Basis-point flooring loses at most one part in 10000.
	if got > want || want-got > want/5000 {
		t.Fatalf("unlocked = %d, want about %d", got, want)
	}
}

func TestUnlockedRejectsDegenerateSchedules(t *testing.T) {
	t.Parallel()

	if _, err := custody.Unlocked(5, 10, 10, 10, 100, 0); !errors.Is(err, domain.ErrArithmetic) {
		t.Fatalf("zero duration: err = %v, want %v", err, domain.ErrArithmetic)
	}
	if _, err := custody.Unlocked(5, 0, 2000, 1000, 100, 0); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("cliff after end: err = %v, want %v", err, domain.ErrInvalidSchedule)
	}
	if _, err := custody.Unlocked(5, 0, 0, 1000, 100, 101); !errors.Is(err, domain.ErrArithmetic) {
		t.Fatalf("released > total: err = %v, want %v", err, domain.ErrArithmetic)
	}
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		vesting, cliff int64
		wantErr        error
	}{
		{"valid", 100, 10, nil},
		{"no cliff", 100, 0, nil},
		{"cliff equals vesting", 100, 100, nil},
		{"zero vesting", 0, 0, domain.ErrInvalidSchedule},
		{"negative cliff", 100, -1, domain.ErrInvalidSchedule},
		{"cliff exceeds vesting", 100, 101, domain.ErrInvalidSchedule},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := custody.ValidateSchedule(tt.vesting, tt.cliff)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateSchedule(%d, %d) = %v, want %v", tt.vesting, tt.cliff, err, tt.wantErr)
			}
		})
	}
}
