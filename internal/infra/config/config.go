package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken     string
	DatabaseURL       string
	WebhookSecret     string
	ListenAddr        string
	CreatorTelegramID int64
	LogLevel          string
	Environment       string
	Timezone          string

	QueueWorkers    int
	QueueCapacity   int
	QueueRatePerSec int
	BulkSendDelay   time.Duration

	CronSpecAnnounceSweep    string // sweep for surveys that missed their announcement
	CronSpecDeadlineReminder string // daily nudge about surveys closing within a day
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is not set")
	}

	cfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	creatorIDStr := os.Getenv("CREATOR_TELEGRAM_ID")
	if creatorIDStr == "" {
		return nil, fmt.Errorf("CREATOR_TELEGRAM_ID is not set")
	}
	cfg.CreatorTelegramID, err = strconv.ParseInt(creatorIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CREATOR_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.Timezone = os.Getenv("TIMEZONE")
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Moscow"
	}

	cfg.QueueWorkers, err = intEnv("QUEUE_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	cfg.QueueCapacity, err = intEnv("QUEUE_CAPACITY", 256)
	if err != nil {
		return nil, err
	}
	cfg.QueueRatePerSec, err = intEnv("QUEUE_RATE_PER_SEC", 25)
	if err != nil {
		return nil, err
	}

	bulkDelayStr := os.Getenv("BULK_SEND_DELAY")
	if bulkDelayStr == "" {
		bulkDelayStr = "1s"
	}
	cfg.BulkSendDelay, err = time.ParseDuration(bulkDelayStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BULK_SEND_DELAY: %w", err)
	}

	cfg.CronSpecAnnounceSweep = os.Getenv("CRON_SPEC_ANNOUNCE_SWEEP")
	if cfg.CronSpecAnnounceSweep == "" {
		cfg.CronSpecAnnounceSweep = "*/5 * * * *" // Default: every 5 minutes
	}

	cfg.CronSpecDeadlineReminder = os.Getenv("CRON_SPEC_DEADLINE_REMINDER")
	if cfg.CronSpecDeadlineReminder == "" {
		cfg.CronSpecDeadlineReminder = "0 10 * * *" // Default: 10:00 AM daily
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
