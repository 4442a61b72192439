package auction

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// settlement is the decided outcome of one finalize pass: either the round
// parks on open ties, or the full allocation list is ready to apply. The two
// are mutually exclusive: Allocations is nil whenever OpenTies is non-empty.
type settlement struct {
	OpenTies    []TieGroup   // tie groups not yet resolved by a tiebreaker
	OpenIDs     []string     // existing active tiebreaker ids for OpenTies
	NewTies     []TieGroup   // subset of OpenTies with no tiebreaker yet
	Allocations []Allocation // winners plus resolved tiebreaker winners
}

// settleRound matches a round's detector output against its tiebreaker rows.
// A tie group with a resolved tiebreaker contributes that winner; one with an
// active tiebreaker stays open; one with no tiebreaker needs a new instance.
// A resolved tiebreaker missing its winner fields is corrupt and fails the
// whole settlement.
func settleRound(winners []Allocation, ties []TieGroup, existing []roundTiebreaker) (settlement, error) {
	covered := make(map[string]roundTiebreaker, len(existing))
	for _, tb := range existing {
		covered[tb.PlayerID] = tb
	}

	var st settlement
	var resolved []Allocation
	for _, tg := range ties {
		tb, ok := covered[tg.PlayerID]
		switch {
		case !ok:
			st.NewTies = append(st.NewTies, tg)
			st.OpenTies = append(st.OpenTies, tg)
		case tb.Status == TiebreakerResolved:
			if tb.WinnerTeamID == nil || tb.WinningAmount == nil {
				return settlement{}, fmt.Errorf("%w: tiebreaker %s resolved without winner", ErrNoWinnerDeterminable, tb.ID)
			}
			resolved = append(resolved, Allocation{
				PlayerID: tg.PlayerID,
				TeamID:   *tb.WinnerTeamID,
				Amount:   *tb.WinningAmount,
			})
		default:
			st.OpenIDs = append(st.OpenIDs, tb.ID)
			st.OpenTies = append(st.OpenTies, tg)
		}
	}
	if len(st.OpenTies) > 0 {
		return st, nil
	}
	st.Allocations = append(append([]Allocation{}, winners...), resolved...)
	return st, nil
}

// FinalizeRound closes a round. With unresolved ties it creates the missing
// tiebreakers, parks the round in tiebreaker_pending and applies nothing;
// once every tiebreaker is resolved it applies the full allocation list
// (outright winners plus tiebreaker winners) in one transaction and marks
// the round completed. The two outcomes are mutually exclusive within a
// single call, and the call is safe to retry.
func (s *Service) FinalizeRound(ctx context.Context, roundID string) (FinalizationResult, error) {
	out := FinalizationResult{RoundID: roundID}
	var notices []AllocationNotice
	var created int

	err := s.retrySerializable(ctx, func(tx pgx.Tx) error {
		out = FinalizationResult{RoundID: roundID}
		notices = nil
		created = 0

		round, err := lockRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if round.Status != RoundActive && round.Status != RoundTiebreakerPending {
			return fmt.Errorf("%w: status is %s", ErrInvalidRoundState, round.Status)
		}

		bids, err := bidsForRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		winners, ties := DetectOutcomes(bids)

		// Lock every tiebreaker of this round before reading its status, so
		// a raise in flight either committed before this point or will fail
		// once the round is terminal.
		existing, err := lockRoundTiebreakersTx(ctx, tx, roundID)
		if err != nil {
			return err
		}

		st, err := settleRound(winners, ties, existing)
		if err != nil {
			return err
		}

		if len(st.OpenTies) > 0 {
			ids := make([]string, 0, len(st.NewTies)+len(st.OpenIDs))
			now := s.now()
			for _, tg := range st.NewTies {
				tb := newTiebreakerState(newTiebreakerID(), tg, roundID, now, s.settings.TiebreakerDuration)
				if err := createTiebreakerTx(ctx, tx, tb); err != nil {
					return err
				}
				ids = append(ids, tb.ID)
			}
			created = len(st.NewTies)
			if round.Status == RoundActive {
				if err := advanceRoundTx(ctx, tx, roundID, round.Status, RoundTiebreakerPending); err != nil {
					return err
				}
			}
			out.TieDetected = true
			out.TiebreakerIDs = append(ids, st.OpenIDs...)
			out.TiedBids = st.OpenTies
			return nil
		}

		notices, err = applyAllocationsTx(ctx, tx, round.SeasonID, SourceRef{Kind: SourceRound, ID: roundID}, st.Allocations)
		if err != nil {
			return err
		}
		if err := advanceRoundTx(ctx, tx, roundID, round.Status, RoundCompleted); err != nil {
			return err
		}
		out.Allocations = st.Allocations
		return nil
	})
	if err != nil {
		return FinalizationResult{}, err
	}

	if out.TieDetected {
		s.log.Info("round finalize parked on ties", "round_id", roundID,
			"tiebreakers", len(out.TiebreakerIDs), "created", created)
		if created > 0 {
			s.cast.Broadcast(EventTiebreakerCreated, out)
		}
		return out, nil
	}

	s.log.Info("round finalized", "round_id", roundID, "allocations", len(out.Allocations))
	s.cast.Broadcast(EventRoundFinalized, out)
	s.notify.NotifyAllocations(ctx, notices)
	return out, nil
}

// PreviewRound runs the same settlement as FinalizeRound without creating
// tiebreakers or applying anything.
func (s *Service) PreviewRound(ctx context.Context, roundID string) (FinalizationResult, error) {
	out := FinalizationResult{RoundID: roundID}

	round, err := s.RoundByID(ctx, roundID)
	if err != nil {
		return out, err
	}
	if round.Status != RoundActive && round.Status != RoundTiebreakerPending {
		return out, fmt.Errorf("%w: status is %s", ErrInvalidRoundState, round.Status)
	}

	bids, err := s.BidsForRound(ctx, roundID)
	if err != nil {
		return out, err
	}
	winners, ties := DetectOutcomes(bids)

	existing, err := s.roundTiebreakers(ctx, roundID)
	if err != nil {
		return out, err
	}

	st, err := settleRound(winners, ties, existing)
	if err != nil {
		return out, err
	}
	out.TieDetected = len(st.OpenTies) > 0
	out.TiedBids = st.OpenTies
	out.TiebreakerIDs = st.OpenIDs
	out.Allocations = st.Allocations
	return out, nil
}

type roundTiebreaker struct {
	ID            string
	PlayerID      string
	Status        TiebreakerStatus
	WinnerTeamID  *string
	WinningAmount *int64
}

func (s *Service) roundTiebreakers(ctx context.Context, roundID string) ([]roundTiebreaker, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, player_id, status, winner_team_id, winning_amount
		FROM auction.tiebreakers
		WHERE round_id = $1
		ORDER BY id
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []roundTiebreaker
	for rows.Next() {
		var tb roundTiebreaker
		if err := rows.Scan(&tb.ID, &tb.PlayerID, &tb.Status, &tb.WinnerTeamID, &tb.WinningAmount); err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

func lockRoundTx(ctx context.Context, tx pgx.Tx, roundID string) (RoundView, error) {
	var out RoundView
	err := tx.QueryRow(ctx, `
		SELECT id, season_id, position, status, ends_at
		FROM auction.rounds
		WHERE id = $1
		FOR UPDATE
	`, roundID).Scan(&out.ID, &out.SeasonID, &out.Position, &out.Status, &out.EndsAt)
	if err == pgx.ErrNoRows {
		return out, ErrNotFound
	}
	return out, err
}

func advanceRoundTx(ctx context.Context, tx pgx.Tx, roundID string, from, to RoundStatus) error {
	if !from.CanAdvanceTo(to) {
		return fmt.Errorf("%w: %s cannot advance to %s", ErrInvalidRoundState, from, to)
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE auction.rounds
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, roundID, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidRoundState
	}
	return nil
}

func bidsForRoundTx(ctx context.Context, tx pgx.Tx, roundID string) ([]Bid, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, round_id, team_id, player_id, amount, submitted_at
		FROM auction.bids
		WHERE round_id = $1
		ORDER BY player_id, amount DESC, submitted_at
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bid
	for rows.Next() {
		var b Bid
		if err := rows.Scan(&b.ID, &b.RoundID, &b.TeamID, &b.PlayerID, &b.Amount, &b.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func lockRoundTiebreakersTx(ctx context.Context, tx pgx.Tx, roundID string) ([]roundTiebreaker, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, player_id, status, winner_team_id, winning_amount
		FROM auction.tiebreakers
		WHERE round_id = $1
		ORDER BY id
		FOR UPDATE
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []roundTiebreaker
	for rows.Next() {
		var tb roundTiebreaker
		if err := rows.Scan(&tb.ID, &tb.PlayerID, &tb.Status, &tb.WinnerTeamID, &tb.WinningAmount); err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}
