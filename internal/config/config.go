// Package config reads process configuration from environment variables with typed defaults matching the
// deployment's .env.example, and validates required security values up front so misconfiguration fails at boot
// rather than on the first request.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration populated from environment variables.
type Config struct {
	// Core
	ServerEnv  string // "development" or "production"
	ServerPort int

	// DynamoDB
	CoreTable       string
	GuildTable      string
	AWSRegion       string
	DynamoDBBaseURL string // override endpoint, used for local/dev DynamoDB

	// Valkey / Redis
	ValkeyURL         string
	ValkeyDialTimeout time.Duration

	// JWT / token authorizer
	JWTIssuer       string
	JWTAudience     string
	JWTSecretParam  string
	JWKSURL         string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthDecisionTTL time.Duration

	// Argon2 password hashing
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32

	// CORS
	FrontendBaseURL  string
	AllowedOrigins   string

	// Quotas
	RateLimitRequestsPerHour   int
	MaxInvitesPerUserPerHour   int
	MaxCommentsPerUserPerHour  int
	IPWindowRequests           int
	IPWindowSeconds            int

	// Avatars
	AvatarMaxSizeMB     int
	AvatarAllowedTypes  string
	AvatarBucket        string

	// Response cache
	CacheTTLSeconds     int
	CacheEncryptionKey  string // hex-encoded 32-byte AES key

	// Messaging core
	ChatRateLimitPerMinute int
	ChatPingIntervalSecs   int

	// Subscription webhooks
	SubscriptionWebhookSecret string

	// SMTP (signup verification email)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	ServerName   string
}

// Load reads configuration from environment variables with defaults, then validates required security values.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ServerEnv:  envStr("SERVER_ENV", "production"),
		ServerPort: p.int("SERVER_PORT", 8080),

		CoreTable:       envStr("CORE_TABLE", "goalguild-core"),
		GuildTable:      envStr("GUILD_TABLE", "goalguild-guild"),
		AWSRegion:       envStr("AWS_REGION", "us-east-1"),
		DynamoDBBaseURL: envStr("DYNAMODB_ENDPOINT", ""),

		ValkeyURL:         envStr("VALKEY_URL", "redis://valkey:6379/0"),
		ValkeyDialTimeout: p.duration("VALKEY_DIAL_TIMEOUT", 5*time.Second),

		JWTIssuer:       envStr("JWT_ISSUER", "https://auth.goalguild.example"),
		JWTAudience:     envStr("JWT_AUDIENCE", "goalguild-api"),
		JWTSecretParam:  envStr("JWT_SECRET_PARAM", ""),
		JWKSURL:         envStr("JWKS_URL", ""),
		AccessTokenTTL:  p.duration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: p.duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		AuthDecisionTTL: p.duration("AUTH_DECISION_TTL", 300*time.Second),

		Argon2Memory:      p.uint32("ARGON2_MEMORY", 65536),
		Argon2Iterations:  p.uint32("ARGON2_ITERATIONS", 3),
		Argon2Parallelism: p.uint8("ARGON2_PARALLELISM", 2),
		Argon2SaltLength:  p.uint32("ARGON2_SALT_LENGTH", 16),
		Argon2KeyLength:   p.uint32("ARGON2_KEY_LENGTH", 32),

		FrontendBaseURL: envStr("FRONTEND_BASE_URL", "https://app.goalguild.example"),
		AllowedOrigins:  envStr("ALLOWED_ORIGINS", "*"),

		RateLimitRequestsPerHour:  p.int("RATE_LIMIT_REQUESTS_PER_HOUR", 1000),
		MaxInvitesPerUserPerHour:  p.int("MAX_INVITES_PER_USER_PER_HOUR", 20),
		MaxCommentsPerUserPerHour: p.int("MAX_COMMENTS_PER_USER_PER_HOUR", 60),
		IPWindowRequests:          p.int("IP_RATE_LIMIT_REQUESTS", 2000),
		IPWindowSeconds:           p.int("IP_RATE_LIMIT_WINDOW_SECONDS", 300),

		AvatarMaxSizeMB:    p.int("AVATAR_MAX_SIZE_MB", 5),
		AvatarAllowedTypes: envStr("AVATAR_ALLOWED_TYPES", "image/jpeg,image/png,image/webp"),
		AvatarBucket:       envStr("AVATAR_BUCKET", "goalguild-avatars"),

		CacheTTLSeconds:    p.int("CACHE_TTL_SECONDS", 300),
		CacheEncryptionKey: envStr("CACHE_ENCRYPTION_KEY", ""),

		ChatRateLimitPerMinute: p.int("CHAT_RATE_LIMIT_PER_MINUTE", 30),
		ChatPingIntervalSecs:   p.int("CHAT_PING_INTERVAL_SECONDS", 60),

		SubscriptionWebhookSecret: envStr("SUBSCRIPTION_WEBHOOK_SECRET", ""),

		SMTPHost:     envStr("SMTP_HOST", ""),
		SMTPPort:     p.int("SMTP_PORT", 587),
		SMTPUsername: envStr("SMTP_USERNAME", ""),
		SMTPPassword: envStr("SMTP_PASSWORD", ""),
		SMTPFrom:     envStr("SMTP_FROM", "noreply@goalguild.example"),
		ServerName:   envStr("SERVER_NAME", "GoalGuild"),
	}

	if parseErr := errors.Join(p.errs...); parseErr != nil {
		return nil, parseErr
	}

	if cfg.IsDevelopment() {
		if cfg.DynamoDBBaseURL == "" {
			cfg.DynamoDBBaseURL = "http://localhost:8000"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.ServerEnv == "development"
}

// AllowedOriginsList splits the configured CORS allow-list into individual origins.
func (c *Config) AllowedOriginsList() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

// AvatarAllowedTypesList splits the configured avatar MIME allow-list.
func (c *Config) AvatarAllowedTypesList() []string {
	return strings.Split(c.AvatarAllowedTypes, ",")
}

// AvatarMaxSizeBytes returns the maximum avatar upload size in bytes.
func (c *Config) AvatarMaxSizeBytes() int64 {
	return int64(c.AvatarMaxSizeMB) * 1024 * 1024
}

// SMTPConfigured returns true when an SMTP host is set, indicating that the server should attempt to send
// verification emails rather than only logging the token.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}

func (c *Config) validate() error {
	var errs []error

	if c.JWTSecretParam == "" && c.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("at least one of JWT_SECRET_PARAM or JWKS_URL is required"))
	}
	if c.JWTSecretParam != "" && len(c.JWTSecretParam) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET_PARAM must be at least 32 characters"))
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535"))
	}

	if c.CoreTable == "" {
		errs = append(errs, fmt.Errorf("CORE_TABLE is required"))
	}
	if c.GuildTable == "" {
		errs = append(errs, fmt.Errorf("GUILD_TABLE is required"))
	}

	if c.AccessTokenTTL < time.Second {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_TTL must be at least 1s"))
	}
	if c.RefreshTokenTTL < time.Second {
		errs = append(errs, fmt.Errorf("REFRESH_TOKEN_TTL must be at least 1s"))
	}

	if c.Argon2Memory == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_MEMORY must be greater than 0"))
	}
	if c.Argon2Iterations == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_ITERATIONS must be greater than 0"))
	}
	if c.Argon2Parallelism == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_PARALLELISM must be greater than 0"))
	}

	if c.AvatarMaxSizeMB < 1 {
		errs = append(errs, fmt.Errorf("AVATAR_MAX_SIZE_MB must be at least 1"))
	}

	if c.RateLimitRequestsPerHour < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS_PER_HOUR must be at least 1"))
	}
	if c.MaxInvitesPerUserPerHour < 1 {
		errs = append(errs, fmt.Errorf("MAX_INVITES_PER_USER_PER_HOUR must be at least 1"))
	}
	if c.IPWindowRequests < 1 {
		errs = append(errs, fmt.Errorf("IP_RATE_LIMIT_REQUESTS must be at least 1"))
	}
	if c.IPWindowSeconds < 1 {
		errs = append(errs, fmt.Errorf("IP_RATE_LIMIT_WINDOW_SECONDS must be at least 1"))
	}

	if c.CacheEncryptionKey != "" {
		b, err := hex.DecodeString(c.CacheEncryptionKey)
		if err != nil || len(b) != 32 {
			errs = append(errs, fmt.Errorf("CACHE_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes)"))
		}
	} else {
		errs = append(errs, fmt.Errorf("CACHE_ENCRYPTION_KEY is required"))
	}

	if c.ChatRateLimitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("CHAT_RATE_LIMIT_PER_MINUTE must be at least 1"))
	}

	if c.SMTPHost != "" && (c.SMTPPort < 1 || c.SMTPPort > 65535) {
		errs = append(errs, fmt.Errorf("SMTP_PORT must be between 1 and 65535"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so Load can report all invalid values at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func (p *parser) uint32(key string, fallback uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected unsigned 32-bit integer)", key, v))
		return fallback
	}
	return uint32(n)
}

func (p *parser) uint8(key string, fallback uint8) uint8 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected unsigned 8-bit integer)", key, v))
		return fallback
	}
	return uint8(n)
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected duration like \"24h\" or \"30m\")", key, v))
		return fallback
	}
	return d
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
