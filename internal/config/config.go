// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all settings for both the backup and uploader commands.
type Config struct {
	// telegram credentials
	TGApiID      int
	TGApiHash    string
	TGSessionStr string
	SessionDB    string

	// backup: source chat and destination channel, id or @username
	SourceChat  string
	DestChannel string

	// backup: batching and pacing
	FetchLimit    int
	BatchSize     int
	RetryDelaySec int
	JitterMinSec  int
	JitterMaxSec  int

	// backup: message formatting
	SenderFallback string
	DisplayTZ      string

	// backup: durable state
	ProgressFile string

	// uploader
	ManifestFile string
	DownloadDir  string
	RunLogDir    string
	JobTimeout   int // seconds, per video job

	// optional surfaces
	HTTPPort int    // status server, 0 disables
	NatsURL  string // event publishing, empty disables

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		TGApiID:        getEnvInt("TG_API_ID", 0),
		TGApiHash:      getEnv("TG_API_HASH", ""),
		TGSessionStr:   getEnv("TG_SESSION_STRING", ""),
		SessionDB:      getEnv("SESSION_DB", "./chatvault_session.db"),
		SourceChat:     getEnv("SOURCE_CHAT_ID", ""),
		DestChannel:    getEnv("DEST_CHANNEL_ID", ""),
		FetchLimit:     getEnvInt("FETCH_LIMIT", 500),
		BatchSize:      getEnvInt("BATCH_SIZE", 20),
		RetryDelaySec:  getEnvInt("RETRY_DELAY_SEC", 70),
		JitterMinSec:   getEnvInt("JITTER_MIN_SEC", 12),
		JitterMaxSec:   getEnvInt("JITTER_MAX_SEC", 20),
		SenderFallback: getEnv("SENDER_FALLBACK", "unknown"),
		DisplayTZ:      getEnv("DISPLAY_TZ", "Asia/Kolkata"),
		ProgressFile:   getEnv("PROGRESS_FILE", "./backup_progress.json"),
		ManifestFile:   getEnv("MANIFEST_FILE", "./manifest.txt"),
		DownloadDir:    getEnv("DOWNLOAD_DIR", "./videos"),
		RunLogDir:      getEnv("LOG_DIR", "./logs"),
		JobTimeout:     getEnvInt("JOB_TIMEOUT_SEC", 600),
		HTTPPort:       getEnvInt("HTTP_PORT", 0),
		NatsURL:        getEnv("NATS_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", "./logs/chatvault.log"),
	}

	if cfg.JitterMinSec > cfg.JitterMaxSec {
		return nil, fmt.Errorf("JITTER_MIN_SEC (%d) must not exceed JITTER_MAX_SEC (%d)", cfg.JitterMinSec, cfg.JitterMaxSec)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.FetchLimit <= 0 {
		return nil, fmt.Errorf("FETCH_LIMIT must be positive, got %d", cfg.FetchLimit)
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
