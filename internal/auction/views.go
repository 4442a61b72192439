package auction

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TiebreakerByID returns the full public view of one tiebreaker, including
// its participant list.
func (s *Service) TiebreakerByID(ctx context.Context, tiebreakerID string) (TiebreakerView, error) {
	var out TiebreakerView
	err := s.db.QueryRow(ctx, `
		SELECT tb.id, tb.round_id, tb.player_id, p.name, tb.tie_amount,
		       tb.current_high_bid, tb.current_high_bidder, tb.status,
		       tb.started_at, tb.last_raise_at, tb.ends_at,
		       tb.winner_team_id, tb.winning_amount
		FROM auction.tiebreakers tb
		JOIN auction.players p ON p.id = tb.player_id
		WHERE tb.id = $1
	`, tiebreakerID).Scan(
		&out.ID, &out.RoundID, &out.PlayerID, &out.PlayerName, &out.TieAmount,
		&out.CurrentHighBid, &out.CurrentHighTeam, &out.Status,
		&out.StartedAt, &out.LastRaiseAt, &out.EndsAt,
		&out.WinnerTeamID, &out.WinningAmount,
	)
	if err == pgx.ErrNoRows {
		return out, ErrNotFound
	}
	if err != nil {
		return out, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT tp.team_id, t.name, tp.status, tp.current_bid, tp.joined_at, tp.withdrawn_at
		FROM auction.tiebreaker_participants tp
		JOIN auction.teams t ON t.id = tp.team_id
		WHERE tp.tiebreaker_id = $1
		ORDER BY tp.current_bid DESC, t.name
	`, tiebreakerID)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var pv ParticipantView
		var bid int64
		if err := rows.Scan(&pv.TeamID, &pv.TeamName, &pv.Status, &bid, &pv.JoinedAt, &pv.WithdrawnAt); err != nil {
			return out, err
		}
		pv.CurrentBid = &bid
		out.Participants = append(out.Participants, pv)
		if pv.Status == ParticipantActive {
			out.TeamsRemaining++
		}
	}
	return out, rows.Err()
}

// TiebreakersForTeam lists every tiebreaker the team is a participant of,
// active ones first.
func (s *Service) TiebreakersForTeam(ctx context.Context, teamID string) ([]TiebreakerView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT tb.id
		FROM auction.tiebreakers tb
		JOIN auction.tiebreaker_participants tp ON tp.tiebreaker_id = tb.id
		WHERE tp.team_id = $1
		ORDER BY tb.status = 'active' DESC, tb.ends_at
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TiebreakerView, 0, len(ids))
	for _, id := range ids {
		tv, err := s.TiebreakerByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, tv)
	}
	return out, nil
}

// RoundBoard is the committee's view of a round: every tiebreaker with its
// live standing.
func (s *Service) RoundBoard(ctx context.Context, roundID string) (RoundView, []TiebreakerView, error) {
	round, err := s.RoundByID(ctx, roundID)
	if err != nil {
		return RoundView{}, nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id FROM auction.tiebreakers
		WHERE round_id = $1
		ORDER BY started_at
	`, roundID)
	if err != nil {
		return round, nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return round, nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return round, nil, err
	}

	views := make([]TiebreakerView, 0, len(ids))
	for _, id := range ids {
		tv, err := s.TiebreakerByID(ctx, id)
		if err != nil {
			return round, nil, err
		}
		views = append(views, tv)
	}
	return round, views, nil
}
