package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Raise records a strictly higher bid from an active participant. The
// tiebreaker row is locked for the duration of the transaction, so two
// simultaneous raises of equal value cannot both be accepted: the second
// re-reads the committed high bid and fails the stale check.
func (s *Service) Raise(ctx context.Context, in RaiseInput) (RaiseResult, error) {
	var out RaiseResult
	if err := ValidateAmount(in.Amount); err != nil {
		return out, err
	}

	err := s.retrySerializable(ctx, func(tx pgx.Tx) error {
		st, err := lockTiebreakerTx(ctx, tx, in.TiebreakerID)
		if err != nil {
			return err
		}

		// A raise the team cannot pay must never take the lead.
		remaining, err := budgetRemainingTx(ctx, tx, st.RoundID, in.TeamID)
		if err != nil {
			return err
		}
		if in.Amount > remaining {
			return fmt.Errorf("%w: budget remaining %d", ErrInsufficientBudget, remaining)
		}

		now := s.now()
		extended, err := st.applyRaise(in.TeamID, in.Amount, now, s.settings.AntiSnipeWindow, s.settings.AntiSnipeExtend)
		if err != nil {
			return err
		}
		if err := storeTiebreakerTx(ctx, tx, st); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO auction.raise_events (id, tiebreaker_id, team_id, amount, idempotency_key, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, uuid.NewString(), st.ID, in.TeamID, in.Amount, in.IdempotencyKey); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateIdempotency
			}
			return err
		}
		out = RaiseResult{
			TiebreakerID: st.ID,
			NewHighBid:   st.HighBid,
			NewHighTeam:  st.HighTeam,
			Deadline:     st.EndsAt,
			Extended:     extended,
		}
		return nil
	})
	if err != nil {
		return RaiseResult{}, err
	}

	s.log.Info("tiebreaker raise accepted",
		"tiebreaker_id", in.TiebreakerID, "team_id", in.TeamID,
		"amount", in.Amount, "extended", out.Extended)
	s.cast.Broadcast(EventRaiseAccepted, out)
	return out, nil
}

// Withdraw removes a non-leading participant from the tiebreaker.
func (s *Service) Withdraw(ctx context.Context, tiebreakerID, teamID string) (WithdrawResult, error) {
	var out WithdrawResult
	err := s.retrySerializable(ctx, func(tx pgx.Tx) error {
		st, err := lockTiebreakerTx(ctx, tx, tiebreakerID)
		if err != nil {
			return err
		}
		if err := st.applyWithdraw(teamID, s.now()); err != nil {
			return err
		}
		if err := storeTiebreakerTx(ctx, tx, st); err != nil {
			return err
		}
		out = WithdrawResult{TiebreakerID: st.ID, TeamsRemaining: st.teamsRemaining()}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	s.log.Info("tiebreaker withdrawal", "tiebreaker_id", tiebreakerID, "team_id", teamID,
		"teams_remaining", out.TeamsRemaining)
	s.cast.Broadcast(EventParticipantWithdrew, out)
	return out, nil
}

// AutoWithdrawAllExceptLeader is the administrative step that withdraws every
// active participant other than the current highest bidder, so an expired
// multi-way tiebreaker can be finalized. It fails when nobody leads.
func (s *Service) AutoWithdrawAllExceptLeader(ctx context.Context, tiebreakerID string) (WithdrawResult, error) {
	var out WithdrawResult
	var withdrawn []string
	err := s.retrySerializable(ctx, func(tx pgx.Tx) error {
		st, err := lockTiebreakerTx(ctx, tx, tiebreakerID)
		if err != nil {
			return err
		}
		withdrawn, err = st.autoWithdrawExceptLeader(s.now())
		if err != nil {
			return err
		}
		if err := storeTiebreakerTx(ctx, tx, st); err != nil {
			return err
		}
		out = WithdrawResult{TiebreakerID: st.ID, TeamsRemaining: st.teamsRemaining()}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	s.log.Info("auto-withdraw applied", "tiebreaker_id", tiebreakerID, "withdrawn", withdrawn)
	s.cast.Broadcast(EventParticipantWithdrew, out)
	return out, nil
}

// FinalizeTiebreaker commits the tiebreaker's single winner and marks it
// resolved. The winning allocation is recorded on the tiebreaker row and
// applied to budgets and rosters when the round is re-finalized; a resolved
// tiebreaker rejects all further transitions.
func (s *Service) FinalizeTiebreaker(ctx context.Context, tiebreakerID string) (ResolveResult, error) {
	var out ResolveResult
	err := s.retrySerializable(ctx, func(tx pgx.Tx) error {
		st, err := lockTiebreakerTx(ctx, tx, tiebreakerID)
		if err != nil {
			return err
		}
		alloc, err := st.winner()
		if err != nil {
			return err
		}
		st.Status = TiebreakerResolved
		if err := storeTiebreakerTx(ctx, tx, st); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE auction.tiebreakers
			SET winner_team_id = $1, winning_amount = $2, resolved_at = now()
			WHERE id = $3
		`, alloc.TeamID, alloc.Amount, st.ID); err != nil {
			return err
		}
		out = ResolveResult{
			TiebreakerID:  st.ID,
			PlayerID:      alloc.PlayerID,
			WinnerTeamID:  alloc.TeamID,
			WinningAmount: alloc.Amount,
		}
		return nil
	})
	if err != nil {
		return ResolveResult{}, err
	}

	s.log.Info("tiebreaker resolved", "tiebreaker_id", out.TiebreakerID,
		"winner_team_id", out.WinnerTeamID, "winning_amount", out.WinningAmount)
	s.cast.Broadcast(EventTiebreakerResolved, out)
	return out, nil
}

// SweepTiebreakers finalizes every tiebreaker whose deadline has passed with
// an unambiguous winner (one active participant who leads), and reports the
// ids of expired tiebreakers that still need an operator. It never picks a
// winner out of a multi-way standoff.
func (s *Service) SweepTiebreakers(ctx context.Context) (resolved, stuck []string, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id
		FROM auction.tiebreakers
		WHERE status = $1 AND ends_at <= now()
		ORDER BY ends_at
	`, TiebreakerActive)
	if err != nil {
		return nil, nil, err
	}
	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, err
		}
		expired = append(expired, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, id := range expired {
		var ok bool
		err := s.retrySerializable(ctx, func(tx pgx.Tx) error {
			st, err := lockTiebreakerTx(ctx, tx, id)
			if err != nil {
				return err
			}
			ok = st.resolvable(s.now())
			return nil
		})
		if err != nil {
			return resolved, stuck, err
		}
		if !ok {
			stuck = append(stuck, id)
			continue
		}
		if _, err := s.FinalizeTiebreaker(ctx, id); err != nil {
			// Lost a race with an operator or a raise; skip, next sweep
			// re-evaluates.
			s.log.Warn("sweep finalize skipped", "tiebreaker_id", id, "err", err)
			stuck = append(stuck, id)
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved, stuck, nil
}

// createTiebreakerTx persists a fresh tiebreaker for one tie group. Called
// from the round finalizer inside its transaction.
func createTiebreakerTx(ctx context.Context, tx pgx.Tx, st *tiebreakerState) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO auction.tiebreakers
		    (id, round_id, player_id, tie_amount, current_high_bid, current_high_bidder,
		     status, started_at, last_raise_at, ends_at, teams_remaining)
		VALUES
		    ($1, $2, $3, $4, $5, NULL, $6, $7, $8, $9, $10)
	`, st.ID, st.RoundID, st.PlayerID, st.TieAmount, st.HighBid,
		st.Status, st.StartedAt, st.LastRaiseAt, st.EndsAt, st.teamsRemaining())
	if err != nil {
		return err
	}
	for _, p := range st.Participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO auction.tiebreaker_participants
			    (tiebreaker_id, team_id, status, current_bid, joined_at)
			VALUES ($1, $2, $3, $4, $5)
		`, st.ID, p.TeamID, p.Status, p.CurrentBid, st.StartedAt); err != nil {
			return err
		}
	}
	return nil
}

// lockTiebreakerTx loads the tiebreaker and its participants with the row
// lock that serializes all transitions on this instance.
func lockTiebreakerTx(ctx context.Context, tx pgx.Tx, tiebreakerID string) (*tiebreakerState, error) {
	st := &tiebreakerState{ID: tiebreakerID}
	var highTeam *string
	err := tx.QueryRow(ctx, `
		SELECT round_id, player_id, tie_amount, current_high_bid, current_high_bidder,
		       status, started_at, last_raise_at, ends_at
		FROM auction.tiebreakers
		WHERE id = $1
		FOR UPDATE
	`, tiebreakerID).Scan(&st.RoundID, &st.PlayerID, &st.TieAmount, &st.HighBid, &highTeam,
		&st.Status, &st.StartedAt, &st.LastRaiseAt, &st.EndsAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if highTeam != nil {
		st.HighTeam = *highTeam
	}

	rows, err := tx.Query(ctx, `
		SELECT team_id, status, current_bid, withdrawn_at
		FROM auction.tiebreaker_participants
		WHERE tiebreaker_id = $1
		ORDER BY team_id
		FOR UPDATE
	`, tiebreakerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p participantState
		var withdrawnAt *time.Time
		if err := rows.Scan(&p.TeamID, &p.Status, &p.CurrentBid, &withdrawnAt); err != nil {
			return nil, err
		}
		if withdrawnAt != nil {
			p.WithdrawnAt = *withdrawnAt
		}
		st.Participants = append(st.Participants, &p)
	}
	return st, rows.Err()
}

func storeTiebreakerTx(ctx context.Context, tx pgx.Tx, st *tiebreakerState) error {
	var highTeam *string
	if st.HighTeam != "" {
		highTeam = &st.HighTeam
	}
	if _, err := tx.Exec(ctx, `
		UPDATE auction.tiebreakers
		SET current_high_bid = $1,
		    current_high_bidder = $2,
		    status = $3,
		    last_raise_at = $4,
		    ends_at = $5,
		    teams_remaining = $6,
		    updated_at = now()
		WHERE id = $7
	`, st.HighBid, highTeam, st.Status, st.LastRaiseAt, st.EndsAt, st.teamsRemaining(), st.ID); err != nil {
		return err
	}
	for _, p := range st.Participants {
		var withdrawnAt any
		if p.Status == ParticipantWithdrawn && !p.WithdrawnAt.IsZero() {
			withdrawnAt = p.WithdrawnAt
		}
		if _, err := tx.Exec(ctx, `
			UPDATE auction.tiebreaker_participants
			SET status = $1, current_bid = $2, withdrawn_at = COALESCE($3, withdrawn_at)
			WHERE tiebreaker_id = $4 AND team_id = $5
		`, p.Status, p.CurrentBid, withdrawnAt, st.ID, p.TeamID); err != nil {
			return err
		}
	}
	return nil
}

// budgetRemainingTx reads the bidding team's remaining budget for the season
// the tiebreaker's round belongs to.
func budgetRemainingTx(ctx context.Context, tx pgx.Tx, roundID, teamID string) (int64, error) {
	var remaining int64
	err := tx.QueryRow(ctx, `
		SELECT b.budget_remaining
		FROM auction.team_budgets b
		JOIN auction.rounds r ON r.season_id = b.season_id
		WHERE r.id = $1 AND b.team_id = $2
	`, roundID, teamID).Scan(&remaining)
	if err == pgx.ErrNoRows {
		return 0, ErrTeamNotInTiebreaker
	}
	return remaining, err
}

func newTiebreakerID() string {
	return uuid.NewString()
}
