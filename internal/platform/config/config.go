// Package config loads service configuration from environment variables so
// main stays lean. Every knob has a development default; production
// deployments override via env.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the registration service.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// PublicBaseURL is the base used when composing applicant access links.
	PublicBaseURL string

	LogLevel  slog.Level
	LogFormat string // "text" or "json"

	// DatabaseURL enables the Postgres-backed stores when non-empty;
	// otherwise the in-memory stores are used (dev/test mode).
	DatabaseURL string

	Redis RedisConfig
	SMTP  SMTPConfig
	Kafka KafkaConfig

	// JWTSigningKey signs staff access tokens (HS256).
	JWTSigningKey string

	Verification VerificationConfig
	Reminder     ReminderConfig

	// RateLimitDisabled turns off public endpoint rate limiting (tests/demo).
	RateLimitDisabled bool
}

// RedisConfig configures the shared Redis client. Redis backs the public
// rate-limit buckets and, when session enforcement is on, the session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTPConfig configures outbound email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// KafkaConfig configures the audit event publisher. Empty brokers disable
// Kafka publishing; audit events then go to the configured store only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// VerificationConfig carries the access/verification protocol knobs.
//
// The attempt ceiling is deliberately split: the public verify path locks
// after PublicAttemptCeiling wrong codes, the staff-triggered resend path
// tolerates ResendAttemptCeiling. Both behaviors existed in the system this
// replaces; keeping them configurable makes either reproducible.
type VerificationConfig struct {
	CodeTTL          time.Duration // one-time code validity
	AccessTokenTTL   time.Duration // access link validity (staff-generated)
	ReminderTokenTTL time.Duration // access link validity on reminder emails
	SessionTTL       time.Duration // session token validity

	PublicAttemptCeiling int
	ResendAttemptCeiling int

	// EnforceSessions switches Get/Update on the public flow from trusting
	// the persisted verified flag to requiring a live session token. Off by
	// default to match the observed behavior of the system this replaces.
	EnforceSessions bool
}

// ReminderConfig drives the periodic reminder job.
type ReminderConfig struct {
	CronSpec   string
	StaleAfter time.Duration // Draft/Pending idle longer than this get a reminder
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          getString("ENROLLD_ADDR", ":8080"),
		PublicBaseURL: getString("ENROLLD_PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      parseLogLevel(getString("ENROLLD_LOG_LEVEL", "info")),
		LogFormat:     getString("ENROLLD_LOG_FORMAT", "text"),
		DatabaseURL:   os.Getenv("ENROLLD_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("ENROLLD_REDIS_URL"),
			PoolSize:     getInt("ENROLLD_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("ENROLLD_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("ENROLLD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("ENROLLD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("ENROLLD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getString("ENROLLD_SMTP_HOST", "localhost"),
			Port:     getInt("ENROLLD_SMTP_PORT", 587),
			Username: os.Getenv("ENROLLD_SMTP_USERNAME"),
			Password: os.Getenv("ENROLLD_SMTP_PASSWORD"),
			From:     getString("ENROLLD_SMTP_FROM", "no-reply@enrolld.local"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("ENROLLD_KAFKA_BROKERS")),
			Topic:   getString("ENROLLD_KAFKA_AUDIT_TOPIC", "enrolld.audit"),
		},
		JWTSigningKey: getString("ENROLLD_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Verification: VerificationConfig{
			CodeTTL:              getDuration("ENROLLD_CODE_TTL", 10*time.Minute),
			AccessTokenTTL:       getDuration("ENROLLD_ACCESS_TOKEN_TTL", 24*time.Hour),
			ReminderTokenTTL:     getDuration("ENROLLD_REMINDER_TOKEN_TTL", 7*24*time.Hour),
			SessionTTL:           getDuration("ENROLLD_SESSION_TTL", 30*time.Minute),
			PublicAttemptCeiling: getInt("ENROLLD_PUBLIC_ATTEMPT_CEILING", 3),
			ResendAttemptCeiling: getInt("ENROLLD_RESEND_ATTEMPT_CEILING", 5),
			EnforceSessions:      getBool("ENROLLD_ENFORCE_SESSIONS", false),
		},
		Reminder: ReminderConfig{
			CronSpec:   getString("ENROLLD_REMINDER_CRON", "0 0 9 * * *"),
			StaleAfter: getDuration("ENROLLD_REMINDER_STALE_AFTER", 72*time.Hour),
		},
		RateLimitDisabled: getBool("ENROLLD_RATELIMIT_DISABLED", false),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
