package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port string

	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// Backend auth provider configuration
	Backend BackendConfig

	// Admin gate configuration
	Gate GateConfig

	// HTTP surface configuration
	HTTP HTTPConfig

	AuditEnabled bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
	// ProfileURL points the admin profile lookup at a hosted Postgres.
	// Empty means the lookup runs against URL through gorm.
	ProfileURL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// BackendConfig holds the backend auth provider settings
type BackendConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	RefreshSchedule string // cron spec, e.g. "@every 1m"
	RefreshWindow   time.Duration
}

// GateConfig holds the session resolver and admin gate settings
type GateConfig struct {
	AdminRole         string
	CredentialStore   string // memory, redis
	DemoAdminEmail    string
	DemoAdminPassword string
	SettleTimeout     time.Duration
	IdleTimeout       time.Duration
	ResolveTimeout    time.Duration
	SweepSchedule     string
}

// HTTPConfig holds HTTP surface settings
type HTTPConfig struct {
	AllowedOrigins []string
	CookieSecure   bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	loadDotEnv()

	tokenTTL, err := durationEnv("BACKEND_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	refreshWindow, err := durationEnv("BACKEND_REFRESH_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	settleTimeout, err := durationEnv("GATE_SETTLE_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := durationEnv("GATE_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	resolveTimeout, err := durationEnv("RESOLVE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cookieSecure, err := boolEnv("COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}
	auditEnabled, err := boolEnv("AUDIT_ENABLED", true)
	if err != nil {
		return nil, err
	}

	credentialStore := strings.ToLower(stringEnv("CREDENTIAL_STORE", "memory"))
	if credentialStore != "memory" && credentialStore != "redis" {
		return nil, fmt.Errorf("invalid CREDENTIAL_STORE %q: expected memory or redis", credentialStore)
	}

	jwtSecret := os.Getenv("BACKEND_JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("BACKEND_JWT_SECRET must be set")
	}

	return &Config{
		Port: stringEnv("PORT", "8080"),
		Database: DatabaseConfig{
			URL:        DatabaseURL(),
			ProfileURL: os.Getenv("PROFILE_DATABASE_URL"),
		},
		Redis: RedisConfig{
			Address: stringEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "json"),
		},
		Backend: BackendConfig{
			JWTSecret:       jwtSecret,
			TokenTTL:        tokenTTL,
			RefreshSchedule: stringEnv("BACKEND_REFRESH_SCHEDULE", "@every 1m"),
			RefreshWindow:   refreshWindow,
		},
		Gate: GateConfig{
			AdminRole:         stringEnv("ADMIN_ROLE", "admin"),
			CredentialStore:   credentialStore,
			DemoAdminEmail:    os.Getenv("DEMO_ADMIN_EMAIL"),
			DemoAdminPassword: os.Getenv("DEMO_ADMIN_PASSWORD"),
			SettleTimeout:     settleTimeout,
			IdleTimeout:       idleTimeout,
			ResolveTimeout:    resolveTimeout,
			SweepSchedule:     stringEnv("GATE_SWEEP_SCHEDULE", "@every 5m"),
		},
		HTTP: HTTPConfig{
			AllowedOrigins: splitList(stringEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
			CookieSecure:   cookieSecure,
		},
		AuditEnabled: auditEnabled,
	}, nil
}

// DatabaseURL returns the main database location without requiring the rest
// of the server configuration
func DatabaseURL() string {
	loadDotEnv()
	return stringEnv("DATABASE_URL", "notes-admin.sqlite")
}

// loadDotEnv fails silently if the files don't exist
func loadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
