package auction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// applyAllocationsTx debits each winning team's budget, records ownership and
// appends an audit row, all inside the caller's transaction. Budget rows are
// locked per team before the debit so concurrent applies cannot drive a
// balance negative. Any failure aborts the whole batch.
func applyAllocationsTx(ctx context.Context, tx pgx.Tx, seasonID string, source SourceRef, allocations []Allocation) ([]AllocationNotice, error) {
	notices := make([]AllocationNotice, 0, len(allocations))
	for _, a := range allocations {
		var remaining int64
		err := tx.QueryRow(ctx, `
			SELECT budget_remaining
			FROM auction.team_budgets
			WHERE team_id = $1 AND season_id = $2
			FOR UPDATE
		`, a.TeamID, seasonID).Scan(&remaining)
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: no budget for team %s", ErrNotFound, a.TeamID)
		}
		if err != nil {
			return nil, err
		}
		if remaining < a.Amount {
			return nil, fmt.Errorf("%w: team %s has %d, needs %d",
				ErrInsufficientBudget, a.TeamID, remaining, a.Amount)
		}

		_, err = tx.Exec(ctx, `
			UPDATE auction.team_budgets
			SET budget_remaining = budget_remaining - $1,
			    total_spent = total_spent + $1,
			    updated_at = now()
			WHERE team_id = $2 AND season_id = $3
		`, a.Amount, a.TeamID, seasonID)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO auction.rosters (id, season_id, team_id, player_id, price, acquired_via, acquired_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`, uuid.NewString(), seasonID, a.TeamID, a.PlayerID, a.Amount, string(source.Kind))
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: player %s", ErrPlayerAlreadyAllocated, a.PlayerID)
			}
			return nil, err
		}

		var playerName string
		err = tx.QueryRow(ctx, `
			UPDATE auction.players
			SET sold = TRUE, updated_at = now()
			WHERE id = $1
			RETURNING name
		`, a.PlayerID).Scan(&playerName)
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: player %s", ErrNotFound, a.PlayerID)
		}
		if err != nil {
			return nil, err
		}

		var teamName string
		if err := tx.QueryRow(ctx, `SELECT name FROM auction.teams WHERE id = $1`, a.TeamID).Scan(&teamName); err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO auction.transactions (id, season_id, team_id, player_id, amount, source_kind, source_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		`, uuid.NewString(), seasonID, a.TeamID, a.PlayerID, a.Amount, string(source.Kind), source.ID)
		if err != nil {
			return nil, err
		}

		notices = append(notices, AllocationNotice{
			PlayerID:   a.PlayerID,
			PlayerName: playerName,
			TeamID:     a.TeamID,
			TeamName:   teamName,
			Amount:     a.Amount,
			SourceKind: source.Kind,
			SourceID:   source.ID,
		})
	}
	return notices, nil
}
