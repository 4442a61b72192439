package auction

import (
	"fmt"
	"time"
)

// tiebreakerState is the in-memory form of one tiebreaker and its
// participants. The coordinator loads the rows under a row lock, applies a
// transition here, and writes the result back in the same transaction, so
// every rule about raises, withdrawals and winners lives in code that can be
// exercised without a database.
type tiebreakerState struct {
	ID          string
	RoundID     string
	PlayerID    string
	TieAmount   int64
	HighBid     int64
	HighTeam    string // empty until the first raise; the tie amount itself leads nobody
	Status      TiebreakerStatus
	StartedAt   time.Time
	LastRaiseAt time.Time
	EndsAt      time.Time

	Participants []*participantState
}

type participantState struct {
	TeamID      string
	Status      ParticipantStatus
	CurrentBid  int64
	WithdrawnAt time.Time
}

func newTiebreakerState(id string, tg TieGroup, roundID string, now time.Time, duration time.Duration) *tiebreakerState {
	st := &tiebreakerState{
		ID:          id,
		RoundID:     roundID,
		PlayerID:    tg.PlayerID,
		TieAmount:   tg.Amount,
		HighBid:     tg.Amount,
		Status:      TiebreakerActive,
		StartedAt:   now,
		LastRaiseAt: now,
		EndsAt:      now.Add(duration),
	}
	for _, teamID := range tg.TeamIDs {
		st.Participants = append(st.Participants, &participantState{
			TeamID:     teamID,
			Status:     ParticipantActive,
			CurrentBid: tg.Amount,
		})
	}
	return st
}

func (st *tiebreakerState) participant(teamID string) *participantState {
	for _, p := range st.Participants {
		if p.TeamID == teamID {
			return p
		}
	}
	return nil
}

func (st *tiebreakerState) teamsRemaining() int32 {
	var n int32
	for _, p := range st.Participants {
		if p.Status == ParticipantActive {
			n++
		}
	}
	return n
}

// applyRaise validates and records a raise. A raise landing inside the
// anti-snipe window pushes the deadline out by extend, but only while the
// deadline has not already passed: an expired tiebreaker still accepts raises
// (it is a soft deadline) without earning extensions.
func (st *tiebreakerState) applyRaise(teamID string, amount int64, now time.Time, window, extend time.Duration) (extended bool, err error) {
	if st.Status != TiebreakerActive {
		return false, ErrAlreadyResolved
	}
	p := st.participant(teamID)
	if p == nil {
		return false, ErrTeamNotInTiebreaker
	}
	if p.Status == ParticipantWithdrawn {
		return false, ErrWithdrawn
	}
	if amount <= st.HighBid {
		return false, fmt.Errorf("%w: current highest is %d", ErrStaleRaise, st.HighBid)
	}

	st.HighBid = amount
	st.HighTeam = teamID
	p.CurrentBid = amount
	st.LastRaiseAt = now

	if now.Before(st.EndsAt) && st.EndsAt.Sub(now) <= window {
		st.EndsAt = now.Add(extend)
		extended = true
	}
	return extended, nil
}

func (st *tiebreakerState) applyWithdraw(teamID string, now time.Time) error {
	if st.Status != TiebreakerActive {
		return ErrAlreadyResolved
	}
	p := st.participant(teamID)
	if p == nil {
		return ErrTeamNotInTiebreaker
	}
	if p.Status == ParticipantWithdrawn {
		return ErrWithdrawn
	}
	if st.HighTeam == teamID {
		return ErrCannotWithdrawAsLeader
	}
	p.Status = ParticipantWithdrawn
	p.WithdrawnAt = now
	return nil
}

// autoWithdrawExceptLeader withdraws every active participant other than the
// current highest bidder. It is the explicit administrative step that forces
// an expired multi-way tiebreaker towards resolution; it refuses to run when
// nobody leads, because that would leave no defensible winner.
func (st *tiebreakerState) autoWithdrawExceptLeader(now time.Time) ([]string, error) {
	if st.Status != TiebreakerActive {
		return nil, ErrAlreadyResolved
	}
	if st.HighTeam == "" {
		return nil, fmt.Errorf("%w: no raises recorded", ErrNoWinnerDeterminable)
	}
	var withdrawn []string
	for _, p := range st.Participants {
		if p.Status == ParticipantActive && p.TeamID != st.HighTeam {
			p.Status = ParticipantWithdrawn
			p.WithdrawnAt = now
			withdrawn = append(withdrawn, p.TeamID)
		}
	}
	return withdrawn, nil
}

// winner returns the allocation a finalize would commit. Legal only when
// exactly one participant remains active and that participant is the current
// highest bidder.
func (st *tiebreakerState) winner() (Allocation, error) {
	if st.Status != TiebreakerActive {
		return Allocation{}, ErrAlreadyResolved
	}
	var active *participantState
	for _, p := range st.Participants {
		if p.Status != ParticipantActive {
			continue
		}
		if active != nil {
			return Allocation{}, fmt.Errorf("%w: %d teams still active", ErrNoWinnerDeterminable, st.teamsRemaining())
		}
		active = p
	}
	if active == nil {
		return Allocation{}, ErrNoActiveTeams
	}
	if st.HighTeam == "" || st.HighTeam != active.TeamID {
		return Allocation{}, fmt.Errorf("%w: sole active team is not the highest bidder", ErrNoWinnerDeterminable)
	}
	return Allocation{
		PlayerID: st.PlayerID,
		TeamID:   active.TeamID,
		Amount:   st.HighBid,
	}, nil
}

// resolvable reports whether a sweep may finalize this tiebreaker without an
// operator: the deadline has passed and the winner is already unambiguous.
func (st *tiebreakerState) resolvable(now time.Time) bool {
	if st.Status != TiebreakerActive || now.Before(st.EndsAt) {
		return false
	}
	_, err := st.winner()
	return err == nil
}
