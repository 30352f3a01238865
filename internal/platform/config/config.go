package config

import (
	"os"
	"strconv"
	"time"

	mstrings "market/pkg/platform/strings"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Server   Server
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Audit    AuditConfig
	LogLevel string
	// SeedLegalForms loads the default legal-form catalog on startup.
	SeedLegalForms bool
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// AuthConfig configures the authentication stages.
type AuthConfig struct {
	// RemoteUserHeader carries the login asserted by the fronting proxy.
	RemoteUserHeader string
	JWTSigningKey    string
	JWTIssuer        string
	JWTAudience      string
	// ProvisionLockTTL bounds how long a first-contact provisioning lock is held.
	ProvisionLockTTL time.Duration
}

// DatabaseConfig selects persistence. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL          string
	Driver       string
	MaxOpenConns int
	MaxIdleConns int
	TxTimeout    time.Duration
}

// RedisConfig configures the optional Redis client used for provisioning locks.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig configures where audit events go. No brokers means in-memory.
type AuditConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	BufferSize   int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getEnv("MARKET_ADDR", ":8080"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			RemoteUserHeader: getEnv("REMOTE_USER_HEADER", "X-Remote-User"),
			// development default; override in production
			JWTSigningKey:    getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:        getEnv("JWT_ISSUER", "market"),
			JWTAudience:      getEnv("JWT_AUDIENCE", "market-api"),
			ProvisionLockTTL: getDuration("PROVISION_LOCK_TTL", 5*time.Second),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       getEnv("DATABASE_DRIVER", "pgx"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getInt("DATABASE_MAX_IDLE_CONNS", 5),
			TxTimeout:    getDuration("DATABASE_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			KafkaBrokers: mstrings.SplitList(os.Getenv("AUDIT_KAFKA_BROKERS"), ","),
			KafkaTopic:   getEnv("AUDIT_KAFKA_TOPIC", "market.audit"),
			BufferSize:   getInt("AUDIT_BUFFER_SIZE", 256),
		},
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		SeedLegalForms: getEnv("SEED_LEGAL_FORMS", "true") == "true",
	}
}

func getEnv(key, fallback string) string {
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
