package auction

import (
	"errors"
	"fmt"
)

const (
	// MinBidAmount is the floor for any bid or raise, in whole currency units.
	MinBidAmount = int64(1)

	// MaxBidAmount keeps fat-fingered raises out of the ledger.
	MaxBidAmount = int64(1_000_000_000)
)

type RoundStatus string

const (
	RoundActive            RoundStatus = "active"
	RoundTiebreakerPending RoundStatus = "tiebreaker_pending"
	RoundCompleted         RoundStatus = "completed"
)

func (s RoundStatus) Valid() bool {
	switch s {
	case RoundActive, RoundTiebreakerPending, RoundCompleted:
		return true
	}
	return false
}

// CanAdvanceTo reports whether the status may move to next. Round status only
// moves forward; it never regresses.
func (s RoundStatus) CanAdvanceTo(next RoundStatus) bool {
	switch s {
	case RoundActive:
		return next == RoundTiebreakerPending || next == RoundCompleted
	case RoundTiebreakerPending:
		return next == RoundCompleted
	default:
		return false
	}
}

type TiebreakerStatus string

const (
	TiebreakerActive   TiebreakerStatus = "active"
	TiebreakerResolved TiebreakerStatus = "resolved"
)

func (s TiebreakerStatus) Valid() bool {
	return s == TiebreakerActive || s == TiebreakerResolved
}

type ParticipantStatus string

const (
	ParticipantActive    ParticipantStatus = "active"
	ParticipantWithdrawn ParticipantStatus = "withdrawn"
)

func (s ParticipantStatus) Valid() bool {
	return s == ParticipantActive || s == ParticipantWithdrawn
}

var (
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidAmount          = errors.New("amount must be a positive whole number")
	ErrInvalidRoundState      = errors.New("round is not in a finalizable state")
	ErrRoundClosed            = errors.New("round is no longer accepting bids")
	ErrAlreadyResolved        = errors.New("tiebreaker already resolved")
	ErrStaleRaise             = errors.New("raise must exceed the current highest bid")
	ErrTeamNotInTiebreaker    = errors.New("team is not a participant in this tiebreaker")
	ErrWithdrawn              = errors.New("team has withdrawn and cannot re-raise")
	ErrCannotWithdrawAsLeader = errors.New("current highest bidder cannot withdraw")
	ErrNoActiveTeams          = errors.New("tiebreaker has no active teams")
	ErrNoWinnerDeterminable   = errors.New("no single winner determinable")
	ErrInsufficientBudget     = errors.New("insufficient budget")
	ErrPlayerAlreadyAllocated = errors.New("player already allocated this season")
	ErrDuplicateIdempotency   = errors.New("duplicate idempotency key")
	ErrTxConflict             = errors.New("transaction conflict, please retry")
)

// ValidateAmount rejects amounts outside [MinBidAmount, MaxBidAmount].
func ValidateAmount(amount int64) error {
	if amount < MinBidAmount || amount > MaxBidAmount {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return nil
}
