// Package config loads and validates worker configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the worker needs to start.
type Config struct {
	// RabbitMQ settings.
	RabbitHost     string
	RabbitPort     int
	RabbitUser     string
	RabbitPassword string
	Queue          string
	RetryAttempts  int
	RetryDelay     time.Duration

	// Dead-letter settings.
	DeadLetterExchange string
	DeadLetterQueue    string

	// Media gateway settings.
	GatewayURL       string
	GatewayAPIKey    string
	GatewayAPISecret string

	// Outbound dialing settings.
	SIPTrunkID       string
	Lines            []string
	MaxPerLine       int
	AllocMaxRetries  int
	AllocRetryWait   time.Duration
	RoomIdleTimeout  time.Duration

	// Database settings.
	DatabaseURL string

	// Blob storage settings.
	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool

	// Summary settings.
	OpenAIAPIKey string
	SummaryModel string

	// Mail settings.
	SendGridAPIKey string
	MailFrom       string
	MailTo         string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults for local development.
func Load() (Config, error) {
	cfg := Config{
		RabbitHost:     envStr("RABBITMQ_HOST", "localhost"),
		RabbitPort:     envInt("RABBITMQ_PORT", 5672),
		RabbitUser:     envStr("RABBITMQ_USER", "guest"),
		RabbitPassword: envStr("RABBITMQ_PASSWORD", "guest"),
		Queue:          envStr("RABBITMQ_CHANNEL", "session-events"),
		RetryAttempts:  envInt("RABBITMQ_RETRY_ATTEMPTS", 5),
		RetryDelay:     envDuration("RABBITMQ_RETRY_DELAY", 2*time.Second),

		DeadLetterExchange: envStr("DEAD_LETTER_EXCHANGE", "session-events.final"),
		DeadLetterQueue:    envStr("DEAD_LETTER_QUEUE", "session-events.final.q"),

		GatewayURL:       envStr("LIVEKIT_URL", "http://localhost:7880"),
		GatewayAPIKey:    envStr("LIVEKIT_API_KEY", ""),
		GatewayAPISecret: envStr("LIVEKIT_API_SECRET", ""),

		SIPTrunkID:      envStr("SIP_TRUNK_ID", ""),
		Lines:           envList("SIP_NUMBERS"),
		MaxPerLine:      envInt("SIP_MAX_CONCURRENT_CALLS", 1),
		AllocMaxRetries: envInt("SIP_CALL_MAX_RETRIES", 10),
		AllocRetryWait:  envDuration("SIP_CALL_WAIT", 30*time.Second),
		RoomIdleTimeout: envDuration("ROOM_IDLE_TIMEOUT", 60*time.Second),

		DatabaseURL: envStr("DATABASE_URL", ""),

		BlobEndpoint:  envStr("BLOB_ENDPOINT", "localhost:9000"),
		BlobAccessKey: envStr("BLOB_ACCESS_KEY", ""),
		BlobSecretKey: envStr("BLOB_SECRET_KEY", ""),
		BlobBucket:    envStr("BLOB_BUCKET", "reports"),
		BlobUseSSL:    envBool("BLOB_USE_SSL", false),

		OpenAIAPIKey: envStr("OPENAI_API_KEY", ""),
		SummaryModel: envStr("SUMMARY_MODEL", "gpt-4o-mini"),

		SendGridAPIKey: envStr("SENDGRID_API_KEY", ""),
		MailFrom:       envStr("MAIL_FROM", ""),
		MailTo:         envStr("MAIL_TO", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.GatewayAPIKey == "" || c.GatewayAPISecret == "" {
		return fmt.Errorf("config: LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	if c.SIPTrunkID == "" {
		return fmt.Errorf("config: SIP_TRUNK_ID is required")
	}
	if len(c.Lines) == 0 {
		return fmt.Errorf("config: SIP_NUMBERS must list at least one line")
	}
	if c.MaxPerLine <= 0 {
		return fmt.Errorf("config: SIP_MAX_CONCURRENT_CALLS must be positive")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// envList splits a comma-separated variable, trimming blanks.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
