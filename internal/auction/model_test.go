package auction

import (
	"errors"
	"testing"
)

func TestRoundStatusValid(t *testing.T) {
	valid := []RoundStatus{RoundActive, RoundTiebreakerPending, RoundCompleted}
	for _, s := range valid {
		if !s.Valid() {
			t.Fatalf("expected status %q to be valid", s)
		}
	}
	if RoundStatus("open").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestRoundStatusForwardOnly(t *testing.T) {
	tests := []struct {
		from RoundStatus
		to   RoundStatus
		want bool
	}{
		{RoundActive, RoundTiebreakerPending, true},
		{RoundActive, RoundCompleted, true},
		{RoundTiebreakerPending, RoundCompleted, true},
		{RoundTiebreakerPending, RoundActive, false},
		{RoundCompleted, RoundActive, false},
		{RoundCompleted, RoundTiebreakerPending, false},
		{RoundActive, RoundActive, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	for _, amount := range []int64{MinBidAmount, 500, MaxBidAmount} {
		if err := ValidateAmount(amount); err != nil {
			t.Fatalf("amount %d should pass: %v", amount, err)
		}
	}
	for _, amount := range []int64{0, -1, MaxBidAmount + 1} {
		if err := ValidateAmount(amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d should fail with ErrInvalidAmount, got %v", amount, err)
		}
	}
}
