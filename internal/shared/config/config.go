package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	EventStore EventStoreConfig
	HIS        HISConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// Login rate limiting, applied per client IP
	LoginRatePerMinute int
	LoginBurst         int
	// Seeded at boot when no accounts exist. An empty password
	// disables seeding.
	DefaultAdminUser     string
	DefaultAdminPassword string
}

// EventStoreConfig holds connection settings for the EventStoreDB bus.
// The bus is optional: when the server cannot reach it the service runs
// without event streaming and the audit trail receives direct writes only.
type EventStoreConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

// HISConfig configures the hospital information system import adapter
// (SQL Server). Disabled by default; the clinic can run standalone.
type HISConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	PollInterval time.Duration
	// Table holding OPD registrations flagged for the GBV department
	RegistrationTable string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "gbvcare"),
			Password: getEnv("DB_PASSWORD", "gbvcare"),
			Database: getEnv("DB_NAME", "gbvcare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			TokenTTL:             getEnvDuration("TOKEN_TTL", 8*time.Hour),
			LoginRatePerMinute:   getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:           getEnvInt("LOGIN_BURST", 5),
			DefaultAdminUser:     getEnv("DEFAULT_ADMIN_USER", "admin"),
			DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		HIS: HISConfig{
			Enabled:           getEnvBool("HIS_ENABLED", false),
			Host:              getEnv("HIS_HOST", "localhost"),
			Port:              getEnvInt("HIS_PORT", 1433),
			User:              getEnv("HIS_USER", ""),
			Password:          getEnv("HIS_PASSWORD", ""),
			Database:          getEnv("HIS_DATABASE", "hmis"),
			SSLMode:           getEnv("HIS_SSLMODE", "disable"),
			PollInterval:      getEnvDuration("HIS_POLL_INTERVAL", 5*time.Minute),
			RegistrationTable: getEnv("HIS_REGISTRATION_TABLE", "dbo.OPDRegistrations"),
		},
	}, nil
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
