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
	Database          DatabaseConfig
	Redis             RedisConfig
	Server            ServerConfig
	Auth              AuthConfig
	AccountProtection AccountProtectionConfig
	Audit             AuditConfig
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
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// AccountProtectionConfig is the brute-force detection surface. Durations
// are configured in milliseconds to match the management API contract.
type AccountProtectionConfig struct {
	LoginAttemptsDetectionEnabled bool
	MaxLoginAttempts              int
	AccountBlockedDuration        time.Duration
	CleanupInterval               time.Duration

	// StoreBackend selects the login attempt store: "postgres" or "redis".
	StoreBackend string
}

type AuditConfig struct {
	// ExcludedTypes is read once at startup; the resulting filter set is
	// immutable for the process lifetime.
	ExcludedTypes   []string
	Workers         int
	QueueCapacity   int
	OverflowPolicy  string
	ShutdownTimeout time.Duration

	Kafka KafkaConfig
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	BatchSize    int
	FlushEvery   time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	TLS          bool
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
			Name:              getEnv("DB_NAME", "bastion"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          env,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		},
		AccountProtection: AccountProtectionConfig{
			LoginAttemptsDetectionEnabled: getEnvAsBool("LOGIN_ATTEMPTS_DETECTION_ENABLED", true),
			MaxLoginAttempts:              getEnvAsInt("MAX_LOGIN_ATTEMPTS", 10),
			AccountBlockedDuration:        time.Duration(getEnvAsInt("ACCOUNT_BLOCKED_DURATION_MS", 7200000)) * time.Millisecond,
			CleanupInterval:               getEnvAsDuration("LOGIN_ATTEMPT_CLEANUP_INTERVAL", 1*time.Hour),
			StoreBackend:                  getEnv("LOGIN_ATTEMPT_STORE", "postgres"),
		},
		Audit: AuditConfig{
			ExcludedTypes:   parseList(getEnv("AUDIT_EXCLUDED_TYPES", "")),
			Workers:         getEnvAsInt("AUDIT_WORKERS", 4),
			QueueCapacity:   getEnvAsInt("AUDIT_QUEUE_CAPACITY", 1024),
			OverflowPolicy:  getEnv("AUDIT_OVERFLOW_POLICY", "block"),
			ShutdownTimeout: getEnvAsDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
			Kafka: KafkaConfig{
				Enabled:      getEnvAsBool("AUDIT_KAFKA_ENABLED", false),
				Brokers:      parseList(getEnv("AUDIT_KAFKA_BROKERS", "")),
				Topic:        getEnv("AUDIT_KAFKA_TOPIC", "bastion.audit"),
				BatchSize:    getEnvAsInt("AUDIT_KAFKA_BATCH_SIZE", 500),
				FlushEvery:   getEnvAsDuration("AUDIT_KAFKA_FLUSH_EVERY", 2*time.Second),
				DialTimeout:  getEnvAsDuration("AUDIT_KAFKA_DIAL_TIMEOUT", 5*time.Second),
				WriteTimeout: getEnvAsDuration("AUDIT_KAFKA_WRITE_TIMEOUT", 5*time.Second),
				TLS:          getEnvAsBool("AUDIT_KAFKA_TLS", false),
			},
		},
	}

	if cfg.AccountProtection.StoreBackend == "postgres" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.AccountProtection.MaxLoginAttempts < 1 {
		return nil, fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1")
	}

	switch cfg.AccountProtection.StoreBackend {
	case "postgres", "redis":
	default:
		return nil, fmt.Errorf("LOGIN_ATTEMPT_STORE must be postgres or redis, got %q", cfg.AccountProtection.StoreBackend)
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
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

// parseList splits a comma-separated env value, trimming whitespace and
// dropping empty entries.
func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
