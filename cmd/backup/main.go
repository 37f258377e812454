package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/logger"
	"github.com/chatvault/chatvault/internal/mirror"
	"github.com/chatvault/chatvault/internal/progress"
	"github.com/chatvault/chatvault/internal/publisher"
	"github.com/chatvault/chatvault/internal/telegram"
	"github.com/chatvault/chatvault/internal/web"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting chat backup")

	if cfg.SourceChat == "" || cfg.DestChannel == "" {
		log.Fatal().Msg("SOURCE_CHAT_ID and DEST_CHANNEL_ID are required")
	}

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Connect to telegram
	proto, err := telegram.NewSessionClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram client")
	}
	tgClient := telegram.NewClient(proto, cfg.SenderFallback)
	defer tgClient.Close()
	log.Info().Str("user", tgClient.Self()).Msg("authorized")

	source, err := tgClient.ResolvePeer(ctx, cfg.SourceChat)
	if err != nil {
		log.Fatal().Err(err).Str("ident", cfg.SourceChat).Msg("failed to resolve source chat")
	}
	dest, err := tgClient.ResolvePeer(ctx, cfg.DestChannel)
	if err != nil {
		log.Fatal().Err(err).Str("ident", cfg.DestChannel).Msg("failed to resolve destination channel")
	}

	store := progress.NewStore(cfg.ProgressFile)

	// 5. Optional NATS publishing
	var pub mirror.EventPublisher
	if cfg.NatsURL != "" {
		np, err := publisher.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			pub = np
		}
	}

	// 6. Optional status server
	if cfg.HTTPPort > 0 {
		srv := web.NewServer(fmt.Sprintf(":%d", cfg.HTTPPort), store)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("status server error")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	// 7. Run the transfer loop
	loc, err := time.LoadLocation(cfg.DisplayTZ)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.DisplayTZ).Msg("unknown timezone, falling back to UTC")
		loc = time.UTC
	}

	svc := mirror.NewService(tgClient, source, dest, store, pub, mirror.Options{
		FetchLimit: cfg.FetchLimit,
		BatchSize:  cfg.BatchSize,
		RetryDelay: time.Duration(cfg.RetryDelaySec) * time.Second,
		JitterMin:  cfg.JitterMinSec,
		JitterMax:  cfg.JitterMaxSec,
		Location:   loc,
	})

	if err := svc.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("backup interrupted, progress saved")
			return
		}
		log.Fatal().Err(err).Msg("backup failed")
	}
	log.Info().Msg("backup complete")
}
