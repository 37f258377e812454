package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/logger"
	"github.com/chatvault/chatvault/internal/manifest"
	"github.com/chatvault/chatvault/internal/media"
	"github.com/chatvault/chatvault/internal/publisher"
	"github.com/chatvault/chatvault/internal/telegram"
	"github.com/chatvault/chatvault/internal/uploader"
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
	log.Info().Msg("starting video uploader")

	if cfg.DestChannel == "" {
		log.Fatal().Msg("DEST_CHANNEL_ID is required")
	}

	// 3. Parse the manifest before touching telegram
	entries, err := manifest.ParseFile(cfg.ManifestFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ManifestFile).Msg("failed to read manifest")
	}
	if len(entries) == 0 {
		log.Fatal().Str("path", cfg.ManifestFile).Msg("no valid URLs found in manifest")
	}
	log.Info().Int("jobs", len(entries)).Msg("manifest parsed")

	// 4. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 5. Connect to telegram
	proto, err := telegram.NewSessionClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram client")
	}
	tgClient := telegram.NewClient(proto, cfg.SenderFallback)
	defer tgClient.Close()
	log.Info().Str("user", tgClient.Self()).Msg("authorized")

	dest, err := tgClient.ResolvePeer(ctx, cfg.DestChannel)
	if err != nil {
		log.Fatal().Err(err).Str("ident", cfg.DestChannel).Msg("failed to resolve destination channel")
	}

	// 6. Optional NATS publishing
	var pub uploader.OutcomePublisher
	if cfg.NatsURL != "" {
		np, err := publisher.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			pub = np
		}
	}

	// 7. Open the run log and execute jobs
	runLog, err := uploader.OpenRunLog(cfg.RunLogDir, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run log")
	}
	defer runLog.Close()
	log.Info().Str("path", runLog.Path()).Msg("run log open")

	runner := uploader.NewRunner(
		tgClient,
		dest,
		media.NewDownloader(cfg.DownloadDir),
		media.NewProbe(),
		media.NewTranscoder(),
		runLog,
		pub,
		time.Duration(cfg.JobTimeout)*time.Second,
	)

	if err := runner.Run(ctx, entries); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("upload run interrupted")
			return
		}
		log.Fatal().Err(err).Msg("upload run failed")
	}
	log.Info().Int("jobs", len(entries)).Str("run_log", runLog.Path()).Msg("upload run complete")
}
