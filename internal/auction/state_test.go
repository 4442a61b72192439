package auction

import (
	"errors"
	"testing"
	"time"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTiebreaker(teams ...string) *tiebreakerState {
	tg := TieGroup{PlayerID: "p1", Amount: 100, TeamIDs: teams}
	return newTiebreakerState("tb1", tg, "r1", testStart, 24*time.Hour)
}

func TestNewTiebreakerStartsAtTieAmount(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta")
	if st.HighBid != 100 {
		t.Fatalf("high bid = %d, want the tie amount", st.HighBid)
	}
	if st.HighTeam != "" {
		t.Fatalf("nobody should lead before the first raise, got %q", st.HighTeam)
	}
	if got := st.teamsRemaining(); got != 2 {
		t.Fatalf("teams remaining = %d, want 2", got)
	}
	if !st.EndsAt.Equal(testStart.Add(24 * time.Hour)) {
		t.Fatalf("deadline = %v", st.EndsAt)
	}
}

func TestApplyRaiseMonotonic(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta")
	now := testStart.Add(time.Minute)

	if _, err := st.applyRaise("alpha", 100, now, 2*time.Minute, 2*time.Minute); !errors.Is(err, ErrStaleRaise) {
		t.Fatalf("raise equal to high bid must be stale, got %v", err)
	}
	if _, err := st.applyRaise("alpha", 110, now, 2*time.Minute, 2*time.Minute); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if st.HighBid != 110 || st.HighTeam != "alpha" {
		t.Fatalf("high = %d/%s", st.HighBid, st.HighTeam)
	}
	if _, err := st.applyRaise("beta", 105, now, 2*time.Minute, 2*time.Minute); !errors.Is(err, ErrStaleRaise) {
		t.Fatalf("lower raise must be stale, got %v", err)
	}
	// The stale raise must not have touched anything.
	if st.HighBid != 110 || st.HighTeam != "alpha" {
		t.Fatalf("stale raise mutated state: %d/%s", st.HighBid, st.HighTeam)
	}
}

func TestApplyRaiseOutsiderAndWithdrawn(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta")
	now := testStart.Add(time.Minute)

	if _, err := st.applyRaise("gamma", 200, now, 0, 0); !errors.Is(err, ErrTeamNotInTiebreaker) {
		t.Fatalf("outsider raise: %v", err)
	}
	if _, err := st.applyRaise("alpha", 110, now, 0, 0); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := st.applyWithdraw("beta", now); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := st.applyRaise("beta", 120, now, 0, 0); !errors.Is(err, ErrWithdrawn) {
		t.Fatalf("withdrawn team raise: %v", err)
	}
}

func TestAntiSnipeExtension(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta")
	window := 2 * time.Minute
	extend := 2 * time.Minute

	// Outside the window: no extension.
	early := st.EndsAt.Add(-time.Hour)
	extended, err := st.applyRaise("alpha", 110, early, window, extend)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if extended {
		t.Fatalf("raise an hour out must not extend")
	}

	// Inside the window: deadline moves to now + extend.
	late := st.EndsAt.Add(-30 * time.Second)
	extended, err = st.applyRaise("beta", 120, late, window, extend)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if !extended {
		t.Fatalf("raise inside the window must extend")
	}
	if !st.EndsAt.Equal(late.Add(extend)) {
		t.Fatalf("deadline = %v, want %v", st.EndsAt, late.Add(extend))
	}

	// After expiry: raises still land (soft deadline) but earn no extension.
	after := st.EndsAt.Add(time.Minute)
	extended, err = st.applyRaise("alpha", 130, after, window, extend)
	if err != nil {
		t.Fatalf("post-deadline raise: %v", err)
	}
	if extended {
		t.Fatalf("post-deadline raise must not extend")
	}
	if st.HighBid != 130 {
		t.Fatalf("high bid = %d", st.HighBid)
	}
}

func TestWithdrawRules(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta", "gamma")
	now := testStart.Add(time.Minute)

	if _, err := st.applyRaise("alpha", 110, now, 0, 0); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := st.applyWithdraw("alpha", now); !errors.Is(err, ErrCannotWithdrawAsLeader) {
		t.Fatalf("leader withdraw: %v", err)
	}
	if err := st.applyWithdraw("beta", now); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := st.applyWithdraw("beta", now); !errors.Is(err, ErrWithdrawn) {
		t.Fatalf("double withdraw: %v", err)
	}
	if err := st.applyWithdraw("delta", now); !errors.Is(err, ErrTeamNotInTiebreaker) {
		t.Fatalf("outsider withdraw: %v", err)
	}
	if got := st.teamsRemaining(); got != 2 {
		t.Fatalf("teams remaining = %d, want 2", got)
	}
}

func TestWinnerRequiresSoleLeadingParticipant(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta")
	now := testStart.Add(time.Minute)

	if _, err := st.winner(); !errors.Is(err, ErrNoWinnerDeterminable) {
		t.Fatalf("two active teams: %v", err)
	}

	if _, err := st.applyRaise("alpha", 110, now, 0, 0); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := st.applyWithdraw("beta", now); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	alloc, err := st.winner()
	if err != nil {
		t.Fatalf("winner: %v", err)
	}
	if alloc.TeamID != "alpha" || alloc.Amount != 110 || alloc.PlayerID != "p1" {
		t.Fatalf("allocation = %+v", alloc)
	}
}

func TestWinnerWithoutRaises(t *testing.T) {
	// Both tied teams sat on their hands; even if one is withdrawn by an
	// operator, the survivor never raised and cannot win at the tie amount.
	st := newTestTiebreaker("alpha", "beta")
	if err := st.applyWithdraw("beta", testStart); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := st.winner(); !errors.Is(err, ErrNoWinnerDeterminable) {
		t.Fatalf("survivor without a raise: %v", err)
	}
}

func TestAutoWithdrawExceptLeader(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta", "gamma")
	now := testStart.Add(time.Minute)

	if _, err := st.autoWithdrawExceptLeader(now); !errors.Is(err, ErrNoWinnerDeterminable) {
		t.Fatalf("auto-withdraw with no leader: %v", err)
	}

	if _, err := st.applyRaise("beta", 110, now, 0, 0); err != nil {
		t.Fatalf("raise: %v", err)
	}
	withdrawn, err := st.autoWithdrawExceptLeader(now)
	if err != nil {
		t.Fatalf("auto-withdraw: %v", err)
	}
	if len(withdrawn) != 2 {
		t.Fatalf("withdrawn = %v, want 2 teams", withdrawn)
	}
	alloc, err := st.winner()
	if err != nil {
		t.Fatalf("winner after auto-withdraw: %v", err)
	}
	if alloc.TeamID != "beta" || alloc.Amount != 110 {
		t.Fatalf("allocation = %+v", alloc)
	}
}

func TestResolvedTiebreakerRejectsEverything(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta")
	st.Status = TiebreakerResolved
	now := testStart.Add(time.Minute)

	if _, err := st.applyRaise("alpha", 110, now, 0, 0); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("raise on resolved: %v", err)
	}
	if err := st.applyWithdraw("alpha", now); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("withdraw on resolved: %v", err)
	}
	if _, err := st.autoWithdrawExceptLeader(now); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("auto-withdraw on resolved: %v", err)
	}
	if _, err := st.winner(); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("winner on resolved: %v", err)
	}
}

func TestResolvable(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta")
	now := testStart.Add(time.Minute)

	if st.resolvable(st.EndsAt.Add(time.Second)) {
		t.Fatalf("two active teams can never auto-resolve")
	}

	if _, err := st.applyRaise("alpha", 110, now, 0, 0); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := st.applyWithdraw("beta", now); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if st.resolvable(st.EndsAt.Add(-time.Second)) {
		t.Fatalf("not resolvable before the deadline")
	}
	if !st.resolvable(st.EndsAt.Add(time.Second)) {
		t.Fatalf("sole leader past the deadline must be resolvable")
	}
}

// Full walk through a three-team sub-auction: raises interleave, two teams
// drop out, the survivor takes the player at their final raise.
func TestTiebreakerFullLifecycle(t *testing.T) {
	st := newTestTiebreaker("alpha", "beta", "gamma")
	now := testStart
	step := func(d time.Duration) time.Time { now = now.Add(d); return now }
	window, extend := 2*time.Minute, 2*time.Minute

	if _, err := st.applyRaise("alpha", 105, step(time.Minute), window, extend); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := st.applyRaise("beta", 115, step(time.Minute), window, extend); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := st.applyRaise("gamma", 120, step(time.Minute), window, extend); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := st.applyWithdraw("alpha", step(time.Minute)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := st.applyRaise("beta", 130, step(time.Minute), window, extend); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := st.applyWithdraw("gamma", step(time.Minute)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	alloc, err := st.winner()
	if err != nil {
		t.Fatalf("winner: %v", err)
	}
	if alloc.TeamID != "beta" || alloc.Amount != 130 {
		t.Fatalf("allocation = %+v", alloc)
	}
	if got := st.teamsRemaining(); got != 1 {
		t.Fatalf("teams remaining = %d", got)
	}
}
