package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hammer/internal/api"
	"hammer/internal/auction"
	"hammer/internal/auth"
	"hammer/internal/config"
	"hammer/internal/db"
	"hammer/internal/notify"
	"hammer/internal/stream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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

	var hub *stream.Hub
	if cfg.StreamEnabled {
		hub = stream.NewHub(logger)
		defer hub.Close()
		svc.SetBroadcastSink(hub)
	}

	if cfg.DiscordBotToken != "" && cfg.DiscordChannelID != "" {
		relay, err := notify.NewDiscordRelay(cfg.DiscordBotToken, cfg.DiscordChannelID, logger)
		if err != nil {
			logger.Error("discord relay failed, notifications disabled", "err", err)
		} else {
			defer relay.Close()
			svc.SetNotificationSink(relay)
		}
	}

	verifier := auth.NewVerifier(pool)
	var streamHandler http.Handler
	if hub != nil {
		streamHandler = hub
	}
	server := api.New(logger, verifier, svc, streamHandler)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("hammer api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
