package auction

import (
	"errors"
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func TestSettleRoundNoTies(t *testing.T) {
	winners := []Allocation{
		{PlayerID: "p1", TeamID: "alpha", Amount: 100},
		{PlayerID: "p2", TeamID: "beta", Amount: 50},
	}
	st, err := settleRound(winners, nil, nil)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(st.OpenTies) != 0 || len(st.NewTies) != 0 || len(st.OpenIDs) != 0 {
		t.Fatalf("clean round must have nothing open: %+v", st)
	}
	if !reflect.DeepEqual(st.Allocations, winners) {
		t.Fatalf("allocations = %+v, want the winners", st.Allocations)
	}
}

func TestSettleRoundNewTieParksEverything(t *testing.T) {
	winners := []Allocation{{PlayerID: "p1", TeamID: "alpha", Amount: 100}}
	ties := []TieGroup{{PlayerID: "p2", Amount: 80, TeamIDs: []string{"beta", "gamma"}}}

	st, err := settleRound(winners, ties, nil)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !reflect.DeepEqual(st.NewTies, ties) || !reflect.DeepEqual(st.OpenTies, ties) {
		t.Fatalf("tie group must be open and new: %+v", st)
	}
	// A parked round applies nothing, not even the clean winners.
	if st.Allocations != nil {
		t.Fatalf("allocations must be nil while ties are open, got %+v", st.Allocations)
	}
}

func TestSettleRoundActiveTiebreakerStaysOpen(t *testing.T) {
	ties := []TieGroup{{PlayerID: "p1", Amount: 100, TeamIDs: []string{"alpha", "beta"}}}
	existing := []roundTiebreaker{{ID: "tb1", PlayerID: "p1", Status: TiebreakerActive}}

	st, err := settleRound(nil, ties, existing)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// The tiebreaker already exists, so nothing new gets created.
	if len(st.NewTies) != 0 {
		t.Fatalf("existing tiebreaker must not be re-created: %+v", st.NewTies)
	}
	if !reflect.DeepEqual(st.OpenIDs, []string{"tb1"}) {
		t.Fatalf("open ids = %v", st.OpenIDs)
	}
	if !reflect.DeepEqual(st.OpenTies, ties) {
		t.Fatalf("open ties = %+v", st.OpenTies)
	}
	if st.Allocations != nil {
		t.Fatalf("allocations must be nil while ties are open")
	}
}

// Re-settling a round whose only tiebreaker has resolved folds the winner
// into the allocation list alongside the outright winners.
func TestSettleRoundResolvedTiebreakerWinnerIncluded(t *testing.T) {
	winners := []Allocation{{PlayerID: "p1", TeamID: "alpha", Amount: 100}}
	ties := []TieGroup{{PlayerID: "p2", Amount: 80, TeamIDs: []string{"beta", "gamma"}}}
	existing := []roundTiebreaker{{
		ID:            "tb1",
		PlayerID:      "p2",
		Status:        TiebreakerResolved,
		WinnerTeamID:  strPtr("gamma"),
		WinningAmount: i64Ptr(120),
	}}

	st, err := settleRound(winners, ties, existing)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(st.OpenTies) != 0 {
		t.Fatalf("resolved tiebreaker must not stay open: %+v", st.OpenTies)
	}
	want := []Allocation{
		{PlayerID: "p1", TeamID: "alpha", Amount: 100},
		{PlayerID: "p2", TeamID: "gamma", Amount: 120},
	}
	if !reflect.DeepEqual(st.Allocations, want) {
		t.Fatalf("allocations = %+v, want %+v", st.Allocations, want)
	}
}

func TestSettleRoundMixedResolvedAndActive(t *testing.T) {
	ties := []TieGroup{
		{PlayerID: "p1", Amount: 100, TeamIDs: []string{"alpha", "beta"}},
		{PlayerID: "p2", Amount: 80, TeamIDs: []string{"gamma", "delta"}},
	}
	existing := []roundTiebreaker{
		{ID: "tb1", PlayerID: "p1", Status: TiebreakerResolved, WinnerTeamID: strPtr("beta"), WinningAmount: i64Ptr(110)},
		{ID: "tb2", PlayerID: "p2", Status: TiebreakerActive},
	}

	st, err := settleRound(nil, ties, existing)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// One resolved tie is not enough; the round stays parked on the other.
	if st.Allocations != nil {
		t.Fatalf("allocations must be nil while any tie is open")
	}
	if !reflect.DeepEqual(st.OpenIDs, []string{"tb2"}) {
		t.Fatalf("open ids = %v", st.OpenIDs)
	}
	if len(st.OpenTies) != 1 || st.OpenTies[0].PlayerID != "p2" {
		t.Fatalf("open ties = %+v", st.OpenTies)
	}
}

func TestSettleRoundResolvedWithoutWinnerFails(t *testing.T) {
	ties := []TieGroup{{PlayerID: "p1", Amount: 100, TeamIDs: []string{"alpha", "beta"}}}
	existing := []roundTiebreaker{{ID: "tb1", PlayerID: "p1", Status: TiebreakerResolved}}

	if _, err := settleRound(nil, ties, existing); !errors.Is(err, ErrNoWinnerDeterminable) {
		t.Fatalf("resolved row without winner fields must fail, got %v", err)
	}
}
