package main

import (
	"testing"

	"github.com/fatih/color"

	"hammer/internal/auction"
)

func TestStatusLabelCoversEveryStatus(t *testing.T) {
	color.NoColor = true

	statuses := []string{
		string(auction.RoundActive),
		string(auction.RoundTiebreakerPending),
		string(auction.RoundCompleted),
		string(auction.TiebreakerActive),
		string(auction.TiebreakerResolved),
		string(auction.ParticipantActive),
		string(auction.ParticipantWithdrawn),
	}
	for _, s := range statuses {
		if got := statusLabel(s); got != s {
			t.Fatalf("statusLabel(%q) = %q, want the status text unchanged", s, got)
		}
	}
}
