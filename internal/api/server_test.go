package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"hammer/internal/auction"
)

func testServer(stream http.Handler) *Server {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil, stream)
}

func TestHealthz(t *testing.T) {
	s := testServer(nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestStreamRouteOnlyWhenEnabled(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stream", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("disabled stream route status = %d, want 404", rec.Code)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	rec = httptest.NewRecorder()
	testServer(handler).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stream", nil))
	if rec.Code != http.StatusSwitchingProtocols {
		t.Fatalf("enabled stream route status = %d", rec.Code)
	}
}

func TestAuthRequiredOnProtectedRoutes(t *testing.T) {
	s := testServer(nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/budget", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", rec.Code)
	}
}

func TestWriteDomainErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auction.ErrNotFound, http.StatusNotFound},
		{auction.ErrInvalidAmount, http.StatusBadRequest},
		{auction.ErrInsufficientBudget, http.StatusBadRequest},
		{auction.ErrTeamNotInTiebreaker, http.StatusForbidden},
		{auction.ErrStaleRaise, http.StatusConflict},
		{auction.ErrAlreadyResolved, http.StatusConflict},
		{auction.ErrRoundClosed, http.StatusConflict},
		{auction.ErrInvalidRoundState, http.StatusConflict},
		{auction.ErrCannotWithdrawAsLeader, http.StatusConflict},
		{auction.ErrTxConflict, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", auction.ErrStaleRaise), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("err %v mapped to %d, want %d", tc.err, rec.Code, tc.want)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q", ct)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"  Bearer   abc123  ", "abc123"},
	}
	for _, tc := range tests {
		if got := bearerToken(tc.header); got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
