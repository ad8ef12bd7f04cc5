package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Verification thresholds
	VerifyTTL   time.Duration
	Cooldown    time.Duration
	MaxAttempts int

	// Mode defaults (overridden by persisted settings)
	StrictMode bool
	Lockdown   bool

	// Admin surface
	AdminIDs        []int64
	AdminTOTPSecret string
	JWTSecret       string
	JWTIssuer       string

	// Messaging platform
	BotToken    string
	GroupChatID int64
	InviteLink  string

	// HTTP limits
	RateLimit          RateLimitConfig
	EventThrottleEvery time.Duration
	MaxRequestBodySize int64
}

// RateLimitConfig holds IP rate limiting configuration for the HTTP
// surface.
type RateLimitConfig struct {
	Enabled                bool
	EventRequestsPerMinute int
	AdminRequestsPerMinute int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "gatekeeper"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Verification defaults
		VerifyTTL:   time.Duration(getEnvInt("VERIFY_TTL_SECONDS", 300)) * time.Second,
		Cooldown:    time.Duration(getEnvInt("COOLDOWN_SECONDS", 600)) * time.Second,
		MaxAttempts: getEnvInt("MAX_ATTEMPTS", 3),

		// Mode defaults
		StrictMode: getEnvBool("STRICT_MODE", false),
		Lockdown:   getEnvBool("LOCKDOWN", false),

		// Admin surface
		AdminIDs:        getEnvInt64List("ADMIN_IDS"),
		AdminTOTPSecret: getEnv("ADMIN_TOTP_SECRET", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "group-gatekeeper"),

		// Messaging platform
		BotToken:    getEnv("BOT_TOKEN", ""),
		GroupChatID: getEnvInt64("GROUP_CHAT_ID", 0),
		InviteLink:  getEnv("JOIN_REQUEST_INVITE_LINK", ""),

		// HTTP limits
		RateLimit: RateLimitConfig{
			Enabled:                getEnvBool("RATE_LIMIT_ENABLED", true),
			EventRequestsPerMinute: getEnvInt("RATE_LIMIT_EVENT_RPM", 300),
			AdminRequestsPerMinute: getEnvInt("RATE_LIMIT_ADMIN_RPM", 60),
		},
		EventThrottleEvery: getEnvDuration("EVENT_THROTTLE_EVERY", 300*time.Millisecond),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 64*1024)),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.GroupChatID == 0 {
		return nil, fmt.Errorf("GROUP_CHAT_ID is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt64List(key string) []int64 {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
