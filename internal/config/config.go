package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported transit backends
const (
	BackendTransportRest = "transportrest"
	BackendDBAPI         = "dbapi"
	BackendHafas         = "hafas"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Transit    TransitConfig
	Retry      RetryConfig
	Breaker    BreakerConfig
	Cache      CacheConfig
	Ranking    RankingConfig
	Planner    PlannerConfig
	Logging    LoggingConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration.
// An empty DSN together with an empty Host disables persistence.
type PostgreSQLConfig struct {
	DSN                string
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	AutoMigrate        bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client IP
	RateBurst      int
}

// TransitConfig holds the upstream journey-planner settings
type TransitConfig struct {
	Backends           []string // priority order, first is primary
	TransportRestBase  string
	DBAPIBase          string
	DBClientID         string
	DBAPIKey           string
	HafasBase          string
	HafasAccessID      string
	Timeout            time.Duration
	UpstreamRate       float64 // requests per second per backend
	UpstreamBurst      int
	MaxLocationResults int
}

// RetryConfig holds the bounded retry policy for upstream calls
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxLookups  int // upper bound on name-variant lookups per location
}

// BreakerConfig holds per-backend circuit breaker settings
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// CacheConfig holds location cache settings
type CacheConfig struct {
	Size     int
	TTL      time.Duration
	RedisURL string
}

// RankingConfig holds station ranking weights
type RankingConfig struct {
	WeightText     float64
	WeightPhonetic float64
	WeightOrder    float64
}

// PlannerConfig holds trip planning defaults
type PlannerConfig struct {
	DefaultOrigin string
	NearbyRadius  int
	MaxTrips      int
	TimeZone      string // IANA zone spoken times are read in
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string
	Environment string
	File        string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", ""),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "voicetransit"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 2),
			AutoMigrate:        getEnvAsBool("PG_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimit:      getEnvAsFloat("RATE_LIMIT_RPS", 2),
			RateBurst:      getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Transit: TransitConfig{
			Backends:           getEnvAsList("TRANSIT_BACKENDS", []string{BackendTransportRest}),
			TransportRestBase:  getEnv("TRANSPORT_REST_BASE", "https://v6.db.transport.rest"),
			DBAPIBase:          getEnv("DB_API_BASE", "https://apis.deutschebahn.com"),
			DBClientID:         getEnv("DB_CLIENT_ID", ""),
			DBAPIKey:           getEnv("DB_API_KEY", ""),
			HafasBase:          getEnv("HAFAS_BASE", "https://www.rmv.de/hapi"),
			HafasAccessID:      getEnv("HAFAS_ACCESS_ID", getEnv("RMV_API_KEY", "")),
			Timeout:            getEnvAsDuration("TRANSIT_TIMEOUT", 10*time.Second),
			UpstreamRate:       getEnvAsFloat("TRANSIT_RATE_RPS", 5),
			UpstreamBurst:      getEnvAsInt("TRANSIT_RATE_BURST", 5),
			MaxLocationResults: getEnvAsInt("TRANSIT_MAX_LOCATIONS", 10),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 200*time.Millisecond),
			MaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", 2*time.Second),
			MaxLookups:  getEnvAsInt("RETRY_MAX_LOOKUPS", 12),
		},
		Breaker: BreakerConfig{
			MaxFailures:  getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			ResetTimeout: getEnvAsDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			Size:     getEnvAsInt("CACHE_SIZE", 512),
			TTL:      getEnvAsDuration("CACHE_TTL", 6*time.Hour),
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Ranking: RankingConfig{
			WeightText:     getEnvAsFloat("RANK_WEIGHT_TEXT", 0.6),
			WeightPhonetic: getEnvAsFloat("RANK_WEIGHT_PHONETIC", 0.25),
			WeightOrder:    getEnvAsFloat("RANK_WEIGHT_ORDER", 0.15),
		},
		Planner: PlannerConfig{
			DefaultOrigin: getEnv("DEFAULT_ORIGIN", "Frankfurt Hauptbahnhof"),
			NearbyRadius:  getEnvAsInt("NEARBY_RADIUS", 1000),
			MaxTrips:      getEnvAsInt("MAX_TRIPS", 3),
			TimeZone:      getEnv("PLANNER_TIMEZONE", "Europe/Berlin"),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("APP_ENV", "production"),
			File:        getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if len(c.Transit.Backends) == 0 {
		return fmt.Errorf("TRANSIT_BACKENDS must name at least one backend")
	}
	for _, b := range c.Transit.Backends {
		switch b {
		case BackendTransportRest, BackendDBAPI, BackendHafas:
		default:
			return fmt.Errorf("unknown transit backend %q", b)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Planner.MaxTrips < 1 {
		return fmt.Errorf("MAX_TRIPS must be at least 1, got %d", c.Planner.MaxTrips)
	}
	if _, err := time.LoadLocation(c.Planner.TimeZone); err != nil {
		return fmt.Errorf("invalid PLANNER_TIMEZONE %q: %w", c.Planner.TimeZone, err)
	}
	return nil
}

// DatabaseEnabled reports whether a PostgreSQL connection is configured
func (c *Config) DatabaseEnabled() bool {
	return c.PostgreSQL.DSN != "" || c.PostgreSQL.Host != ""
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
