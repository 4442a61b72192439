package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr               string
	DatabaseURL        string
	TiebreakerDuration time.Duration
	AntiSnipeWindow    time.Duration
	AntiSnipeExtend    time.Duration
	DiscordBotToken    string
	DiscordChannelID   string
	StreamEnabled      bool
}

type SweeperConfig struct {
	DatabaseURL        string
	SweepEvery         time.Duration
	TiebreakerDuration time.Duration
	AntiSnipeWindow    time.Duration
	AntiSnipeExtend    time.Duration
	DiscordBotToken    string
	DiscordChannelID   string
}

type CLIConfig struct {
	APIBaseURL string
	Token      string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("HAMMER_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:               addr,
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TiebreakerDuration: envDurationDefault("HAMMER_TIEBREAKER_DURATION", 24*time.Hour),
		AntiSnipeWindow:    envDurationDefault("HAMMER_ANTI_SNIPE_WINDOW", 2*time.Minute),
		AntiSnipeExtend:    envDurationDefault("HAMMER_ANTI_SNIPE_EXTEND", 2*time.Minute),
		DiscordBotToken:    strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")),
		DiscordChannelID:   strings.TrimSpace(os.Getenv("DISCORD_CHANNEL_ID")),
		StreamEnabled:      envBoolDefault("HAMMER_STREAM_ENABLED", true),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadSweeperFromEnv() (SweeperConfig, error) {
	cfg := SweeperConfig{
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SweepEvery:         envDurationDefault("HAMMER_SWEEP_EVERY", time.Minute),
		TiebreakerDuration: envDurationDefault("HAMMER_TIEBREAKER_DURATION", 24*time.Hour),
		AntiSnipeWindow:    envDurationDefault("HAMMER_ANTI_SNIPE_WINDOW", 2*time.Minute),
		AntiSnipeExtend:    envDurationDefault("HAMMER_ANTI_SNIPE_EXTEND", 2*time.Minute),
		DiscordBotToken:    strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")),
		DiscordChannelID:   strings.TrimSpace(os.Getenv("DISCORD_CHANNEL_ID")),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("HMR_API_BASE_URL", "http://localhost:8080"), "/"),
		Token:      strings.TrimSpace(os.Getenv("HMR_TOKEN")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
