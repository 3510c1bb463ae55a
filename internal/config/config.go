package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Tenancy. RootDomain is the apex the app is served under, e.g.
	// "fractal.app"; every workspace lives on a subdomain of it. Scheme
	// is used when building cross subdomain redirect URLs.
	RootDomain   string
	Scheme       string
	CookieSecure bool

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (optional, caches subdomain lookups)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// SMTP (optional, delivers workspace invites)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Invitations
	InviteTTL time.Duration

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// RateLimitConfig holds per endpoint class rate limit settings.
type RateLimitConfig struct {
	Enabled bool

	AuthRequestsPerWindow int
	AuthWindowMinutes     int

	InviteRequestsPerWindow int
	InviteWindowMinutes     int

	RefreshRequestsPerWindow int
	RefreshWindowMinutes     int

	APIRequestsPerWindow int
	APIWindowMinutes     int
}

// SecurityHeadersConfig holds security header settings.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Tenancy defaults suit local development on *.localhost
		RootDomain:   getEnv("ROOT_DOMAIN", "localhost"),
		Scheme:       getEnv("SCHEME", "http"),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "fractal"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis (optional)
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// JWT defaults
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "fractal"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		// Google OAuth
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),

		// SMTP (optional)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Fractal"),

		InviteTTL: getEnvDuration("INVITE_TTL", 7*24*time.Hour),

		RateLimit: RateLimitConfig{
			Enabled:                  getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerWindow:    getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindowMinutes:        getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			InviteRequestsPerWindow:  getEnvInt("RATE_LIMIT_INVITE_REQUESTS", 20),
			InviteWindowMinutes:      getEnvInt("RATE_LIMIT_INVITE_WINDOW_MINUTES", 60),
			RefreshRequestsPerWindow: getEnvInt("RATE_LIMIT_REFRESH_REQUESTS", 30),
			RefreshWindowMinutes:     getEnvInt("RATE_LIMIT_REFRESH_WINDOW_MINUTES", 1),
			APIRequestsPerWindow:     getEnvInt("RATE_LIMIT_API_REQUESTS", 300),
			APIWindowMinutes:         getEnvInt("RATE_LIMIT_API_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'self'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 0),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Scheme != "http" && cfg.Scheme != "https" {
		return nil, fmt.Errorf("SCHEME must be http or https, got %q", cfg.Scheme)
	}

	return cfg, nil
}

// HasGoogleOAuth returns true if Google OAuth is configured.
func (c *Config) HasGoogleOAuth() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// HasSMTP returns true if SMTP delivery is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasRedis returns true if the redis cache is configured.
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
