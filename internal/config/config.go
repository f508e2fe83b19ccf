package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Trust    TrustConfig
	Redis    RedisConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	StatementTimeout  time.Duration
	ApplicationName   string
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// TrustConfig tunes the behavioral trust engine
type TrustConfig struct {
	BaselineWindow     int // most recent N events feeding a baseline
	HoursSample        int
	IPPrefixSample     int
	SourceIDSample     int
	Scorer             string // "heuristic" or "baseline"
	StorageTimeout     time.Duration
	ReconcileInterval  time.Duration
	ReconcileBatchSize int
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
	VPNRanges          []string
	ProxyRanges        []string
}

// RedisConfig is optional; an empty Addr keeps rebuild locking in-process
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "vigil"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			StatementTimeout:  getEnvAsDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
			ApplicationName:   getEnv("DB_APPLICATION_NAME", "vigil"),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		},
		Trust: TrustConfig{
			BaselineWindow:     getEnvAsInt("TRUST_BASELINE_WINDOW", 30),
			HoursSample:        getEnvAsInt("TRUST_HOURS_SAMPLE", 10),
			IPPrefixSample:     getEnvAsInt("TRUST_IP_PREFIX_SAMPLE", 5),
			SourceIDSample:     getEnvAsInt("TRUST_SOURCE_ID_SAMPLE", 10),
			Scorer:             strings.ToLower(getEnv("TRUST_SCORER", "heuristic")),
			StorageTimeout:     getEnvAsDuration("TRUST_STORAGE_TIMEOUT", 3*time.Second),
			ReconcileInterval:  getEnvAsDuration("TRUST_RECONCILE_INTERVAL", 10*time.Minute),
			ReconcileBatchSize: getEnvAsInt("TRUST_RECONCILE_BATCH", 100),
			BreakerFailures:    uint32(getEnvAsInt("TRUST_BREAKER_FAILURES", 5)),
			BreakerOpenTimeout: getEnvAsDuration("TRUST_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			VPNRanges:          getEnvAsList("TRUST_VPN_RANGES"),
			ProxyRanges:        getEnvAsList("TRUST_PROXY_RANGES"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  getEnvAsDuration("REDIS_LOCK_TTL", 10*time.Second),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Trust.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (t *TrustConfig) validate() error {
	if t.BaselineWindow < 1 {
		return fmt.Errorf("TRUST_BASELINE_WINDOW must be positive (got %d)", t.BaselineWindow)
	}
	if t.HoursSample < 1 || t.IPPrefixSample < 1 || t.SourceIDSample < 1 {
		return fmt.Errorf("trust sample sizes must be positive")
	}
	switch t.Scorer {
	case "heuristic", "baseline":
	default:
		return fmt.Errorf("TRUST_SCORER must be one of heuristic, baseline (got %q)", t.Scorer)
	}
	if t.StorageTimeout <= 0 {
		return fmt.Errorf("TRUST_STORAGE_TIMEOUT must be positive")
	}
	if t.ReconcileInterval <= 0 || t.ReconcileBatchSize < 1 {
		return fmt.Errorf("TRUST_RECONCILE_INTERVAL and TRUST_RECONCILE_BATCH must be positive")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		origins := getEnvAsList("ALLOWED_ORIGINS")
		return origins // Default to no origins in production
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
