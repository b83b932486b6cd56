package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Cache    CacheConfig
	Database DatabaseConfig
	LedgerDB LedgerDBConfig
	Ledger   LedgerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"` // 0 keeps event streams open
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string   `envconfig:"APP_NAME" default:"halaqa-points-api"`
	Environment string   `envconfig:"APP_ENV" default:"development"`
	Debug       bool     `envconfig:"APP_DEBUG" default:"false"`
	Version     string   `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     []string `envconfig:"API_KEYS"`
}

// CacheConfig holds cache and Redis settings. Redis also carries session
// tokens and the cross-instance change feed.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// DatabaseConfig holds MySQL connection settings for the profile directory.
// An empty host disables MySQL and uses an in-memory directory.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:""`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"halaqa"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// LedgerDBConfig holds ledger database settings.
type LedgerDBConfig struct {
	Type string `envconfig:"LEDGER_DB_TYPE" default:"sqlite"` // sqlite, postgres, mongodb or memory
	Path string `envconfig:"LEDGER_DB_PATH" default:"./data/ledger.db"`
	// PostgreSQL settings
	Host     string `envconfig:"LEDGER_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"LEDGER_DB_PORT" default:"5432"`
	Name     string `envconfig:"LEDGER_DB_NAME" default:"halaqa"`
	User     string `envconfig:"LEDGER_DB_USER" default:"postgres"`
	Password string `envconfig:"LEDGER_DB_PASS" default:""`
	SSLMode  string `envconfig:"LEDGER_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI                  string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase             string `envconfig:"MONGODB_DATABASE" default:"halaqa"`
	MongoLedgerCollection     string `envconfig:"MONGODB_LEDGER_COLLECTION" default:"ledgers"`
	MongoRedemptionCollection string `envconfig:"MONGODB_REDEMPTION_COLLECTION" default:"redemptions"`
}

// LedgerConfig holds points economy settings.
type LedgerConfig struct {
	TxMaxAttempts   int           `envconfig:"LEDGER_TX_MAX_ATTEMPTS" default:"5"`
	TxBackoff       time.Duration `envconfig:"LEDGER_TX_BACKOFF" default:"20ms"`
	LeaderboardSize int           `envconfig:"LEADERBOARD_SIZE" default:"5"`
	RepairInterval  time.Duration `envconfig:"REPAIR_INTERVAL" default:"10m"` // 0 disables
	FeedChannel     string        `envconfig:"LEDGER_FEED_CHANNEL" default:"halaqa:ledger:changes"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (l *LedgerDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		l.User, l.Password, l.Host, l.Port, l.Name, l.SSLMode)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Enabled reports whether a MySQL profile directory is configured.
func (d *DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LedgerDB.Type {
	case "sqlite", "postgres", "mongodb", "memory":
	default:
		return fmt.Errorf("unknown LEDGER_DB_TYPE %q", c.LedgerDB.Type)
	}
	if c.LedgerDB.Type == "mongodb" && c.LedgerDB.MongoURI == "" {
		return fmt.Errorf("MONGODB_URI is required for LEDGER_DB_TYPE=mongodb")
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Ledger.TxMaxAttempts < 1 {
		return fmt.Errorf("LEDGER_TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Ledger.LeaderboardSize < 1 {
		return fmt.Errorf("LEADERBOARD_SIZE must be at least 1")
	}
	return nil
}
