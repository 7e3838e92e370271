package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"quantedge-ta/internal/taengine"
)

func main() {
	godotenv.Load()

	level, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = zerolog.New(os.Stdout)
	if envOr("LOG_PRETTY", "") != "" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	logger := out.Level(level).With().Timestamp().Logger()

	cfg, err := taengine.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("bad configuration")
	}
	logger.Info().
		Str("symbol", cfg.Symbol).
		Int("indicators", len(cfg.Specs)).
		Int("snapshot_interval_s", cfg.SnapshotIntervalS).
		Msg("starting indicator engine")

	svc, err := taengine.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("fatal")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
