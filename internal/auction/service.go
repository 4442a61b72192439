package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings tune the live tiebreaker behaviour. Zero values fall back to the
// defaults below.
type Settings struct {
	// TiebreakerDuration is the initial window before a tiebreaker's soft
	// deadline.
	TiebreakerDuration time.Duration
	// AntiSnipeWindow: a raise landing this close to the deadline extends it.
	AntiSnipeWindow time.Duration
	// AntiSnipeExtend is how far past the raise the new deadline lands.
	AntiSnipeExtend time.Duration
}

const (
	DefaultTiebreakerDuration = 24 * time.Hour
	DefaultAntiSnipeWindow    = 2 * time.Minute
	DefaultAntiSnipeExtend    = 2 * time.Minute
)

func (s Settings) withDefaults() Settings {
	if s.TiebreakerDuration <= 0 {
		s.TiebreakerDuration = DefaultTiebreakerDuration
	}
	if s.AntiSnipeWindow <= 0 {
		s.AntiSnipeWindow = DefaultAntiSnipeWindow
	}
	if s.AntiSnipeExtend <= 0 {
		s.AntiSnipeExtend = DefaultAntiSnipeExtend
	}
	return s
}

// Service owns all auction state transitions. Team budgets and rosters are
// written only from the round finalizer's apply step; nothing else touches
// those rows.
type Service struct {
	db       *pgxpool.Pool
	log      *slog.Logger
	settings Settings
	notify   NotificationSink
	cast     BroadcastSink
	now      func() time.Time
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, settings Settings) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		log:      logger,
		settings: settings.withDefaults(),
		notify:   noopNotificationSink{},
		cast:     noopBroadcastSink{},
		now:      time.Now,
	}
}

// SetNotificationSink wires the outbound notification relay. Call before
// serving traffic.
func (s *Service) SetNotificationSink(sink NotificationSink) {
	if sink != nil {
		s.notify = sink
	}
}

// SetBroadcastSink wires the realtime fan-out hub. Call before serving
// traffic.
func (s *Service) SetBroadcastSink(sink BroadcastSink) {
	if sink != nil {
		s.cast = sink
	}
}

func (s *Service) ActiveSeasonID(ctx context.Context) (string, error) {
	var seasonID string
	err := s.db.QueryRow(ctx, `
		SELECT id
		FROM auction.seasons
		WHERE status = 'active'
		ORDER BY starts_at DESC
		LIMIT 1
	`).Scan(&seasonID)
	if err == pgx.ErrNoRows {
		return "", ErrNotFound
	}
	return seasonID, err
}

func (s *Service) RoundByID(ctx context.Context, roundID string) (RoundView, error) {
	var out RoundView
	err := s.db.QueryRow(ctx, `
		SELECT id, season_id, position, status, ends_at
		FROM auction.rounds
		WHERE id = $1
	`, roundID).Scan(&out.ID, &out.SeasonID, &out.Position, &out.Status, &out.EndsAt)
	if err == pgx.ErrNoRows {
		return out, ErrNotFound
	}
	return out, err
}

// BidsForRound is the ledger read: every submitted bid for the round, in a
// stable order (player, amount desc, submission time).
func (s *Service) BidsForRound(ctx context.Context, roundID string) ([]Bid, error) {
	rows, err := s.db.Query(ctx, `
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

// SubmitBid records a team's offer while the round is open. One row per
// (round, team, player); a re-submission replaces the amount.
func (s *Service) SubmitBid(ctx context.Context, in SubmitBidInput) (Bid, error) {
	var out Bid
	if err := ValidateAmount(in.Amount); err != nil {
		return out, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	var status RoundStatus
	if err := tx.QueryRow(ctx, `
		SELECT status FROM auction.rounds WHERE id = $1
	`, in.RoundID).Scan(&status); err != nil {
		if err == pgx.ErrNoRows {
			return out, ErrNotFound
		}
		return out, err
	}
	if status != RoundActive {
		return out, ErrRoundClosed
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO auction.bids (round_id, team_id, player_id, amount, submitted_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (round_id, team_id, player_id)
		DO UPDATE SET amount = EXCLUDED.amount, submitted_at = now()
		RETURNING id, round_id, team_id, player_id, amount, submitted_at
	`, in.RoundID, in.TeamID, in.PlayerID, in.Amount).Scan(
		&out.ID, &out.RoundID, &out.TeamID, &out.PlayerID, &out.Amount, &out.SubmittedAt)
	if err != nil {
		return out, err
	}
	return out, tx.Commit(ctx)
}

func (s *Service) TeamBudget(ctx context.Context, teamID, seasonID string) (BudgetView, error) {
	var out BudgetView
	err := s.db.QueryRow(ctx, `
		SELECT b.team_id, b.season_id, b.budget_remaining, b.total_spent,
		       (SELECT COUNT(1) FROM auction.rosters r
		        WHERE r.team_id = b.team_id AND r.season_id = b.season_id)
		FROM auction.team_budgets b
		WHERE b.team_id = $1 AND b.season_id = $2
	`, teamID, seasonID).Scan(&out.TeamID, &out.SeasonID, &out.BudgetRemaining, &out.TotalSpent, &out.PlayersOwned)
	if err == pgx.ErrNoRows {
		return out, ErrNotFound
	}
	return out, err
}

// retrySerializable runs fn inside a serializable transaction, retrying
// serialization failures with capped backoff. fn must be safe to re-run.
func (s *Service) retrySerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
