package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything bookingservice reads from the environment.
type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	PostgresDSN    string
	RedisAddr      string
	NATSURL        string
	EventsSubject  string
	LogLevel       string
	OpTimeout      time.Duration
	IdempotencyTTL time.Duration
	ReadRate       float64
	ReadBurst      float64
	WriteRate      float64
	WriteBurst     float64
	OutboxPoll     time.Duration
	OutboxBatch    int
	OutboxRetry    int
}

// Load reads Config from the environment, applying defaults.
func Load() Config {
	return Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:       getenv("GRPC_ADDR", ":9090"),
		PostgresDSN:    firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		NATSURL:        os.Getenv("NATS_URL"),
		EventsSubject:  getenv("EVENTS_SUBJECT", "cab.trips"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		OpTimeout:      parseDurationMS("OP_TIMEOUT_MS", 5000),
		IdempotencyTTL: time.Duration(parseIntEnv("IDEMPOTENCY_TTL_SEC", 86400)) * time.Second,
		ReadRate:       parseFloatEnv("RATE_LIMIT_READ_RPS", 50),
		ReadBurst:      parseFloatEnv("RATE_LIMIT_READ_BURST", 100),
		WriteRate:      parseFloatEnv("RATE_LIMIT_WRITE_RPS", 10),
		WriteBurst:     parseFloatEnv("RATE_LIMIT_WRITE_BURST", 20),
		OutboxPoll:     parseDurationMS("OUTBOX_POLL_MS", 200),
		OutboxBatch:    parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry:    parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseDurationMS(key string, fallbackMS int) time.Duration {
	return time.Duration(parseIntEnv(key, fallbackMS)) * time.Millisecond
}
