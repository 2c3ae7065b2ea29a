package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName       string
	LedgerOwner       string
	PostgresDSN       string
	NotificationTopic string
	RelayBatchSize    int
	RelayPollInterval time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "tally"
	}

	topic := strings.TrimSpace(os.Getenv("NOTIFICATION_TOPIC"))
	if topic == "" {
		topic = "token.ledger"
	}

	return Config{
		ServiceName:       service,
		LedgerOwner:       strings.TrimSpace(os.Getenv("LEDGER_OWNER")),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		NotificationTopic: topic,
		RelayBatchSize:    envInt("RELAY_BATCH_SIZE", 100),
		RelayPollInterval: envDuration("RELAY_POLL_INTERVAL", 2*time.Second),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
