package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hammer/internal/auction"
	"hammer/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const identityContextKey contextKey = "identity"

type Server struct {
	log     *slog.Logger
	auth    *auth.Verifier
	auction *auction.Service
	stream  http.Handler
	mux     *chi.Mux
}

// New builds the router. stream may be nil when the realtime feed is
// disabled; the route then answers 404.
func New(logger *slog.Logger, verifier *auth.Verifier, svc *auction.Service, stream http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:     logger,
		auth:    verifier,
		auction: svc,
		stream:  stream,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	if s.stream != nil {
		r.Get("/v1/stream", s.stream.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/rounds/{round_id}", s.handleRound)
			r.Post("/rounds/{round_id}/bids", s.handleSubmitBid)
			r.Get("/budget", s.handleBudget)

			r.Get("/tiebreakers", s.handleMyTiebreakers)
			r.Get("/tiebreakers/{tiebreaker_id}", s.handleTiebreaker)
			r.Post("/tiebreakers/{tiebreaker_id}/raise", s.handleRaise)
			r.Post("/tiebreakers/{tiebreaker_id}/withdraw", s.handleWithdraw)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.committeeMiddleware)

				r.Post("/rounds/{round_id}/finalize", s.handleFinalizeRound)
				r.Get("/rounds/{round_id}/preview", s.handlePreviewRound)
				r.Get("/rounds/{round_id}/board", s.handleBoard)
				r.Post("/tiebreakers/{tiebreaker_id}/auto-withdraw", s.handleAutoWithdraw)
				r.Post("/tiebreakers/{tiebreaker_id}/finalize", s.handleFinalizeTiebreaker)
			})
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.auth.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) committeeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := identityFromContext(r.Context())
		if err != nil || !id.Committee {
			writeError(w, http.StatusForbidden, "committee access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromContext(ctx context.Context) (auth.Identity, error) {
	id, ok := ctx.Value(identityContextKey).(auth.Identity)
	if !ok || id.TeamID == "" {
		return auth.Identity{}, errors.New("missing auth context")
	}
	return id, nil
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.auction.RoundByID(r.Context(), chi.URLParam(r, "round_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		PlayerID string `json:"player_id"`
		Amount   int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bid, err := s.auction.SubmitBid(r.Context(), auction.SubmitBidInput{
		RoundID:  chi.URLParam(r, "round_id"),
		TeamID:   id.TeamID,
		PlayerID: strings.TrimSpace(in.PlayerID),
		Amount:   in.Amount,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	seasonID, err := s.auction.ActiveSeasonID(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	budget, err := s.auction.TeamBudget(r.Context(), id.TeamID, seasonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleMyTiebreakers(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	views, err := s.auction.TiebreakersForTeam(r.Context(), id.TeamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiebreakers": views})
}

func (s *Server) handleTiebreaker(w http.ResponseWriter, r *http.Request) {
	view, err := s.auction.TiebreakerByID(r.Context(), chi.URLParam(r, "tiebreaker_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRaise(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.auction.Raise(r.Context(), auction.RaiseInput{
		TiebreakerID:   chi.URLParam(r, "tiebreaker_id"),
		TeamID:         id.TeamID,
		Amount:         in.Amount,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.auction.Withdraw(r.Context(), chi.URLParam(r, "tiebreaker_id"), id.TeamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFinalizeRound(w http.ResponseWriter, r *http.Request) {
	out, err := s.auction.FinalizeRound(r.Context(), chi.URLParam(r, "round_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePreviewRound(w http.ResponseWriter, r *http.Request) {
	out, err := s.auction.PreviewRound(r.Context(), chi.URLParam(r, "round_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	round, views, err := s.auction.RoundBoard(r.Context(), chi.URLParam(r, "round_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round":       round,
		"tiebreakers": views,
	})
}

func (s *Server) handleAutoWithdraw(w http.ResponseWriter, r *http.Request) {
	out, err := s.auction.AutoWithdrawAllExceptLeader(r.Context(), chi.URLParam(r, "tiebreaker_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFinalizeTiebreaker(w http.ResponseWriter, r *http.Request) {
	out, err := s.auction.FinalizeTiebreaker(r.Context(), chi.URLParam(r, "tiebreaker_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auction.ErrInvalidAmount), errors.Is(err, auction.ErrInsufficientBudget):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auction.ErrUnauthorized), errors.Is(err, auction.ErrTeamNotInTiebreaker):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auction.ErrStaleRaise),
		errors.Is(err, auction.ErrAlreadyResolved),
		errors.Is(err, auction.ErrRoundClosed),
		errors.Is(err, auction.ErrInvalidRoundState),
		errors.Is(err, auction.ErrWithdrawn),
		errors.Is(err, auction.ErrCannotWithdrawAsLeader),
		errors.Is(err, auction.ErrNoActiveTeams),
		errors.Is(err, auction.ErrNoWinnerDeterminable),
		errors.Is(err, auction.ErrPlayerAlreadyAllocated),
		errors.Is(err, auction.ErrDuplicateIdempotency),
		errors.Is(err, auction.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
