package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hammer/internal/auction"
	"hammer/internal/config"
	"hammer/internal/db"
	"hammer/internal/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadSweeperFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := auction.NewService(pool, logger, auction.Settings{
		TiebreakerDuration: cfg.TiebreakerDuration,
		AntiSnipeWindow:    cfg.AntiSnipeWindow,
		AntiSnipeExtend:    cfg.AntiSnipeExtend,
	})

	if cfg.DiscordBotToken != "" && cfg.DiscordChannelID != "" {
		relay, err := notify.NewDiscordRelay(cfg.DiscordBotToken, cfg.DiscordChannelID, logger)
		if err != nil {
			logger.Error("discord relay failed, notifications disabled", "err", err)
		} else {
			defer relay.Close()
			svc.SetNotificationSink(relay)
		}
	}

	sweep := func() {
		resolved, stuck, err := svc.SweepTiebreakers(ctx)
		if err != nil {
			logger.Error("sweep failed", "err", err)
			return
		}
		if len(resolved) == 0 && len(stuck) == 0 {
			return
		}
		logger.Info("sweep complete", "resolved", resolved, "needs_operator", stuck)
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("HAMMER_SWEEPER_RUN_ONCE")), "true")
	if runOnce {
		sweep()
		logger.Info("sweeper run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.SweepEvery)
	defer ticker.Stop()

	logger.Info("sweeper started", "every", cfg.SweepEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper shutdown")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
