package auction

import (
	"reflect"
	"testing"
)

func bid(player, team string, amount int64) Bid {
	return Bid{RoundID: "r1", PlayerID: player, TeamID: team, Amount: amount}
}

func TestDetectOutcomesCleanWinners(t *testing.T) {
	bids := []Bid{
		bid("p1", "alpha", 100),
		bid("p1", "beta", 80),
		bid("p2", "gamma", 50),
	}
	winners, ties := DetectOutcomes(bids)
	if len(ties) != 0 {
		t.Fatalf("expected no ties, got %d", len(ties))
	}
	want := []Allocation{
		{PlayerID: "p1", TeamID: "alpha", Amount: 100},
		{PlayerID: "p2", TeamID: "gamma", Amount: 50},
	}
	if !reflect.DeepEqual(winners, want) {
		t.Fatalf("winners = %+v, want %+v", winners, want)
	}
}

func TestDetectOutcomesTieAtMax(t *testing.T) {
	bids := []Bid{
		bid("p1", "beta", 100),
		bid("p1", "alpha", 100),
		bid("p1", "gamma", 90),
	}
	winners, ties := DetectOutcomes(bids)
	if len(winners) != 0 {
		t.Fatalf("tied player must not win outright: %+v", winners)
	}
	if len(ties) != 1 {
		t.Fatalf("expected 1 tie group, got %d", len(ties))
	}
	tg := ties[0]
	if tg.PlayerID != "p1" || tg.Amount != 100 {
		t.Fatalf("tie group = %+v", tg)
	}
	if !reflect.DeepEqual(tg.TeamIDs, []string{"alpha", "beta"}) {
		t.Fatalf("tied teams = %v, want sorted [alpha beta]", tg.TeamIDs)
	}
}

func TestDetectOutcomesLowerTiesIgnored(t *testing.T) {
	// Two teams tie at 80 but a third bid 100; the 80s are irrelevant.
	bids := []Bid{
		bid("p1", "alpha", 80),
		bid("p1", "beta", 80),
		bid("p1", "gamma", 100),
	}
	winners, ties := DetectOutcomes(bids)
	if len(ties) != 0 {
		t.Fatalf("tie below the max must not count: %+v", ties)
	}
	if len(winners) != 1 || winners[0].TeamID != "gamma" {
		t.Fatalf("winners = %+v", winners)
	}
}

func TestDetectOutcomesDeterministic(t *testing.T) {
	bids := []Bid{
		bid("p2", "beta", 10),
		bid("p1", "gamma", 7),
		bid("p1", "alpha", 7),
		bid("p3", "delta", 3),
	}
	w1, t1 := DetectOutcomes(bids)

	// Reversed input order must give identical output.
	rev := make([]Bid, len(bids))
	for i, b := range bids {
		rev[len(bids)-1-i] = b
	}
	w2, t2 := DetectOutcomes(rev)

	if !reflect.DeepEqual(w1, w2) || !reflect.DeepEqual(t1, t2) {
		t.Fatalf("output depends on input order:\n%+v %+v\n%+v %+v", w1, t1, w2, t2)
	}
}

func TestDetectOutcomesEmpty(t *testing.T) {
	winners, ties := DetectOutcomes(nil)
	if len(winners) != 0 || len(ties) != 0 {
		t.Fatalf("no bids must produce nothing: %+v %+v", winners, ties)
	}
}

func TestDetectOutcomesThreeWayTie(t *testing.T) {
	bids := []Bid{
		bid("p1", "gamma", 55),
		bid("p1", "alpha", 55),
		bid("p1", "beta", 55),
	}
	_, ties := DetectOutcomes(bids)
	if len(ties) != 1 || len(ties[0].TeamIDs) != 3 {
		t.Fatalf("expected a three-way tie, got %+v", ties)
	}
}
