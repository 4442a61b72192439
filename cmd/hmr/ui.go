package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"hammer/internal/auction"
	cl "hammer/internal/cli"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) { success.Println(msg) }

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		line, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
		warn.Println("Value required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func renderRound(r auction.RoundView) {
	accent.Printf("Round %s\n", r.ID)
	neutral.Printf("  position: %d\n", r.Position)
	neutral.Printf("  status:   %s\n", statusLabel(string(r.Status)))
	neutral.Printf("  ends at:  %s\n", r.EndsAt.Local().Format(time.RFC822))
}

func renderBudget(b auction.BudgetView) {
	accent.Println("Budget")
	neutral.Printf("  remaining:     %d\n", b.BudgetRemaining)
	neutral.Printf("  total spent:   %d\n", b.TotalSpent)
	neutral.Printf("  players owned: %d\n", b.PlayersOwned)
}

func renderTiebreakerList(views []auction.TiebreakerView) {
	if len(views) == 0 {
		neutral.Println("No tiebreakers.")
		return
	}
	for _, v := range views {
		marker := "•"
		if v.Status == auction.TiebreakerActive {
			marker = warn.Sprint("▶")
		}
		fmt.Printf("%s %s  %s  high %d  %s  ends %s\n",
			marker, v.ID, v.PlayerName, v.CurrentHighBid,
			statusLabel(string(v.Status)), v.EndsAt.Local().Format(time.RFC822))
	}
}

func renderTiebreaker(v auction.TiebreakerView) {
	accent.Printf("Tiebreaker %s\n", v.ID)
	neutral.Printf("  player:     %s (%s)\n", v.PlayerName, v.PlayerID)
	neutral.Printf("  tie amount: %d\n", v.TieAmount)
	neutral.Printf("  high bid:   %d", v.CurrentHighBid)
	if v.CurrentHighTeam != nil {
		neutral.Printf(" by %s", *v.CurrentHighTeam)
	}
	fmt.Println()
	neutral.Printf("  status:     %s\n", statusLabel(string(v.Status)))
	neutral.Printf("  ends at:    %s\n", v.EndsAt.Local().Format(time.RFC822))
	neutral.Printf("  remaining:  %d team(s)\n", v.TeamsRemaining)
	if v.WinnerTeamID != nil && v.WinningAmount != nil {
		success.Printf("  winner:     %s at %d\n", *v.WinnerTeamID, *v.WinningAmount)
	}
	if len(v.Participants) > 0 {
		fmt.Println("  participants:")
		for _, p := range v.Participants {
			line := fmt.Sprintf("    %-24s %s", p.TeamName, statusLabel(string(p.Status)))
			if p.CurrentBid != nil {
				line += fmt.Sprintf("  bid %d", *p.CurrentBid)
			}
			fmt.Println(line)
		}
	}
}

func renderBoard(b cl.BoardPayload) {
	renderRound(b.Round)
	if len(b.Tiebreakers) == 0 {
		neutral.Println("No tiebreakers on this round.")
		return
	}
	fmt.Println()
	for _, v := range b.Tiebreakers {
		renderTiebreaker(v)
		fmt.Println()
	}
}

func renderFinalization(out auction.FinalizationResult) {
	if out.TieDetected {
		warn.Printf("Ties outstanding on round %s\n", out.RoundID)
		for _, tg := range out.TiedBids {
			fmt.Printf("  player %s at %d: %s\n", tg.PlayerID, tg.Amount, strings.Join(tg.TeamIDs, ", "))
		}
		for _, id := range out.TiebreakerIDs {
			neutral.Printf("  tiebreaker %s\n", id)
		}
		return
	}
	success.Printf("Round %s settled with %d allocation(s)\n", out.RoundID, len(out.Allocations))
	for _, a := range out.Allocations {
		fmt.Printf("  player %s -> team %s at %d\n", a.PlayerID, a.TeamID, a.Amount)
	}
}

func statusLabel(s string) string {
	// Round, tiebreaker and participant statuses share the "active" value.
	switch s {
	case "active":
		return success.Sprint(s)
	case "tiebreaker_pending":
		return warn.Sprint(s)
	case "withdrawn":
		return danger.Sprint(s)
	default:
		return s
	}
}
