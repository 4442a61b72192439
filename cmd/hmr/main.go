package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "hammer/internal/cli"
	"hammer/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "hmr",
		Short:        "Hammer auction CLI",
		SilenceUsage: true,
	}

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRoundCmd(&apiBase),
		newBidCmd(&apiBase),
		newBudgetCmd(&apiBase),
		newTiebreakerCmd(&apiBase),
		newAdminCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func sessionToken() (string, error) {
	if env := strings.TrimSpace(os.Getenv("HMR_TOKEN")); env != "" {
		return env, nil
	}
	sess, err := cl.LoadSession()
	if err != nil {
		return "", fmt.Errorf("login required: %w", err)
	}
	return sess.Token, nil
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store an API token issued by the committee",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := promptRequired("Token")
			if err != nil {
				return err
			}
			name, err := promptOptional("Team name (optional)")
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{Token: token, TeamName: name}); err != nil {
				return err
			}
			printSuccess("Token saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newRoundCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "round <round-id>",
		Short: "Show a round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			round, err := newClient(apiBase).Round(ctx, token, args[0])
			if err != nil {
				return err
			}
			renderRound(round)
			return nil
		},
	}
}

func newBidCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bid <round-id> <player-id> <amount>",
		Short: "Submit or replace your sealed bid for a player",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be an integer: %w", err)
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			bid, err := newClient(apiBase).SubmitBid(ctx, token, args[0], args[1], amount, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Bid recorded: %d on player %s", bid.Amount, bid.PlayerID))
			return nil
		},
	}
}

func newBudgetCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show your remaining budget and roster size",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			budget, err := newClient(apiBase).Budget(ctx, token)
			if err != nil {
				return err
			}
			renderBudget(budget)
			return nil
		},
	}
}

func newTiebreakerCmd(apiBase *string) *cobra.Command {
	tb := &cobra.Command{
		Use:     "tiebreaker",
		Aliases: []string{"tb"},
		Short:   "Inspect and act in live tiebreakers",
	}

	tb.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your tiebreakers",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			views, err := newClient(apiBase).MyTiebreakers(ctx, token)
			if err != nil {
				return err
			}
			renderTiebreakerList(views)
			return nil
		},
	})

	tb.AddCommand(&cobra.Command{
		Use:   "show <tiebreaker-id>",
		Short: "Show one tiebreaker with its participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := newClient(apiBase).Tiebreaker(ctx, token, args[0])
			if err != nil {
				return err
			}
			renderTiebreaker(view)
			return nil
		},
	})

	tb.AddCommand(&cobra.Command{
		Use:   "raise <tiebreaker-id> <amount>",
		Short: "Raise the bid in a tiebreaker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be an integer: %w", err)
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Raise(ctx, token, args[0], amount, uuid.NewString())
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Raise accepted. High bid %d, deadline %s", out.NewHighBid, out.Deadline.Local().Format(time.RFC822))
			if out.Extended {
				msg += " (extended)"
			}
			printSuccess(msg)
			return nil
		},
	})

	tb.AddCommand(&cobra.Command{
		Use:   "withdraw <tiebreaker-id>",
		Short: "Withdraw from a tiebreaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Withdraw(ctx, token, args[0])
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Withdrawn. %d team(s) remain.", out.TeamsRemaining))
			return nil
		},
	})

	return tb
}

func newAdminCmd(apiBase *string) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Committee operations",
	}

	admin.AddCommand(&cobra.Command{
		Use:   "finalize <round-id>",
		Short: "Finalize a round (creates tiebreakers or applies allocations)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).FinalizeRound(ctx, token, args[0])
			if err != nil {
				return err
			}
			renderFinalization(out)
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "preview <round-id>",
		Short: "Dry-run a finalize without changing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).PreviewRound(ctx, token, args[0])
			if err != nil {
				return err
			}
			renderFinalization(out)
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "board <round-id>",
		Short: "Show every tiebreaker of a round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			board, err := newClient(apiBase).Board(ctx, token, args[0])
			if err != nil {
				return err
			}
			renderBoard(board)
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "auto-withdraw <tiebreaker-id>",
		Short: "Withdraw every participant except the current leader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).AutoWithdraw(ctx, token, args[0])
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Done. %d team(s) remain.", out.TeamsRemaining))
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "resolve <tiebreaker-id>",
		Short: "Finalize a tiebreaker with a sole leading participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).FinalizeTiebreaker(ctx, token, args[0])
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Resolved: team %s takes player %s at %d", out.WinnerTeamID, out.PlayerID, out.WinningAmount))
			return nil
		},
	})

	return admin
}
