package auction

import "time"

// Bid is one team's sealed offer for a player within a round. Immutable once
// the round closes; re-submission while the round is active replaces the
// previous row (last write wins).
type Bid struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"round_id"`
	TeamID      string    `json:"team_id"`
	PlayerID    string    `json:"player_id"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Allocation is the final (player, team, amount) outcome for one player,
// produced by the finalizer for a clean win or by a resolved tiebreaker.
type Allocation struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Amount   int64  `json:"amount"`
}

// TieGroup records that two or more teams share the highest bid for a player.
type TieGroup struct {
	PlayerID string   `json:"player_id"`
	Amount   int64    `json:"amount"`
	TeamIDs  []string `json:"team_ids"`
}

// SourceKind tags where an allocation batch came from.
type SourceKind string

const (
	SourceRound      SourceKind = "round"
	SourceTiebreaker SourceKind = "tiebreaker"
)

// SourceRef identifies the round or tiebreaker an allocation batch belongs
// to; Apply uses it for its idempotence guard.
type SourceRef struct {
	Kind SourceKind
	ID   string
}

type FinalizationResult struct {
	RoundID       string       `json:"round_id"`
	TieDetected   bool         `json:"tie_detected"`
	Allocations   []Allocation `json:"allocations"`
	TiebreakerIDs []string     `json:"tiebreaker_ids,omitempty"`
	TiedBids      []TieGroup   `json:"tied_bids,omitempty"`
}

type RoundView struct {
	ID       string      `json:"id"`
	SeasonID string      `json:"season_id"`
	Position int32       `json:"position"`
	Status   RoundStatus `json:"status"`
	EndsAt   time.Time   `json:"ends_at"`
}

type ParticipantView struct {
	TeamID      string            `json:"team_id"`
	TeamName    string            `json:"team_name"`
	Status      ParticipantStatus `json:"status"`
	CurrentBid  *int64            `json:"current_bid,omitempty"`
	JoinedAt    time.Time         `json:"joined_at"`
	WithdrawnAt *time.Time        `json:"withdrawn_at,omitempty"`
}

type TiebreakerView struct {
	ID               string            `json:"id"`
	RoundID          string            `json:"round_id"`
	PlayerID         string            `json:"player_id"`
	PlayerName       string            `json:"player_name"`
	TieAmount        int64             `json:"tie_amount"`
	CurrentHighBid   int64             `json:"current_high_bid"`
	CurrentHighTeam  *string           `json:"current_high_team,omitempty"`
	Status           TiebreakerStatus  `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	LastRaiseAt      time.Time         `json:"last_raise_at"`
	EndsAt           time.Time         `json:"ends_at"`
	TeamsRemaining   int32             `json:"teams_remaining"`
	Participants     []ParticipantView `json:"participants,omitempty"`
	WinnerTeamID     *string           `json:"winner_team_id,omitempty"`
	WinningAmount    *int64            `json:"winning_amount,omitempty"`
}

type BudgetView struct {
	TeamID          string `json:"team_id"`
	SeasonID        string `json:"season_id"`
	BudgetRemaining int64  `json:"budget_remaining"`
	TotalSpent      int64  `json:"total_spent"`
	PlayersOwned    int64  `json:"players_owned"`
}

type SubmitBidInput struct {
	RoundID  string
	TeamID   string
	PlayerID string
	Amount   int64
}

type RaiseInput struct {
	TiebreakerID   string
	TeamID         string
	Amount         int64
	IdempotencyKey string
}

type RaiseResult struct {
	TiebreakerID string    `json:"tiebreaker_id"`
	NewHighBid   int64     `json:"new_highest"`
	NewHighTeam  string    `json:"new_highest_team"`
	Deadline     time.Time `json:"new_deadline"`
	Extended     bool      `json:"extended"`
}

type WithdrawResult struct {
	TiebreakerID   string `json:"tiebreaker_id"`
	TeamsRemaining int32  `json:"teams_remaining"`
}

type ResolveResult struct {
	TiebreakerID  string `json:"tiebreaker_id"`
	PlayerID      string `json:"player_id"`
	WinnerTeamID  string `json:"winner_team_id"`
	WinningAmount int64  `json:"winning_amount"`
}
