// Package notify posts auction outcomes to a Discord channel. Delivery is
// best effort: a failed post is logged and forgotten, never retried into the
// finalize path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"hammer/internal/auction"
)

type DiscordRelay struct {
	session   *discordgo.Session
	channelID string
	log       *slog.Logger
}

// NewDiscordRelay opens a Discord session. Callers should treat a nil relay
// as "notifications disabled" and fall back to the noop sink.
func NewDiscordRelay(botToken, channelID string, logger *slog.Logger) (*DiscordRelay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + strings.TrimSpace(botToken))
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	// Outbound messages only; no gateway intents needed.
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}
	return &DiscordRelay{session: session, channelID: channelID, log: logger}, nil
}

func (r *DiscordRelay) NotifyAllocations(ctx context.Context, notices []auction.AllocationNotice) {
	if len(notices) == 0 {
		return
	}
	go func() {
		var b strings.Builder
		for _, n := range notices {
			switch n.SourceKind {
			case auction.SourceTiebreaker:
				fmt.Fprintf(&b, "🔨 **%s** wins the tiebreaker for **%s** at %d\n", n.TeamName, n.PlayerName, n.Amount)
			default:
				fmt.Fprintf(&b, "✅ **%s** signs **%s** for %d\n", n.TeamName, n.PlayerName, n.Amount)
			}
		}
		_, err := r.session.ChannelMessageSendComplex(r.channelID, &discordgo.MessageSend{
			Content: b.String(),
		}, discordgo.WithContext(context.WithoutCancel(ctx)))
		if err != nil {
			r.log.Error("discord notify failed", "channel", r.channelID, "err", err)
			return
		}
		r.log.Info("discord notify sent", "allocations", len(notices))
	}()
}

func (r *DiscordRelay) Close() error {
	return r.session.Close()
}
