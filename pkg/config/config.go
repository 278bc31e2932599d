package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Search   SearchConfig
	Store    StoreConfig
	OTEL     OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Name        string
	Environment string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SearchConfig holds the tuning knobs of the search engine
type SearchConfig struct {
	DefaultLimit   int
	MaxLimit       int
	MaxRadiusMiles float64
	QueryTimeout   time.Duration
	FacetTimeout   time.Duration
	FacetCacheTTL  time.Duration
	FacetCacheSize int
	CursorSecret   string
}

// StoreConfig selects the backing store
type StoreConfig struct {
	Driver   string
	SeedFile string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load loads configuration from environment variables, reading a local .env first if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "jewgo-directory"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "jewgo"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Search: SearchConfig{
			DefaultLimit:   getEnvAsInt("SEARCH_DEFAULT_LIMIT", 20),
			MaxLimit:       getEnvAsInt("SEARCH_MAX_LIMIT", 100),
			MaxRadiusMiles: getEnvAsFloat("SEARCH_MAX_RADIUS_MILES", 500),
			QueryTimeout:   getEnvAsDuration("SEARCH_QUERY_TIMEOUT", 3*time.Second),
			FacetTimeout:   getEnvAsDuration("SEARCH_FACET_TIMEOUT", 2*time.Second),
			FacetCacheTTL:  getEnvAsDuration("SEARCH_FACET_CACHE_TTL", time.Minute),
			FacetCacheSize: getEnvAsInt("SEARCH_FACET_CACHE_SIZE", 1024),
			CursorSecret:   getEnv("SEARCH_CURSOR_SECRET", "dev-cursor-secret"),
		},
		Store: StoreConfig{
			Driver:   getEnv("STORE_DRIVER", StoreDriverPostgres),
			SeedFile: getEnv("STORE_SEED_FILE", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "jewgo-directory"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the search engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Search.DefaultLimit < 1 {
		errs = append(errs, errors.New("SEARCH_DEFAULT_LIMIT must be at least 1"))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, errors.New("SEARCH_MAX_LIMIT must not be below SEARCH_DEFAULT_LIMIT"))
	}
	if c.Search.MaxRadiusMiles <= 0 {
		errs = append(errs, errors.New("SEARCH_MAX_RADIUS_MILES must be positive"))
	}
	if c.Search.QueryTimeout <= 0 || c.Search.FacetTimeout <= 0 {
		errs = append(errs, errors.New("search timeouts must be positive"))
	}
	if c.Search.CursorSecret == "" {
		errs = append(errs, errors.New("SEARCH_CURSOR_SECRET must be set"))
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
	case StoreDriverMemory:
		if c.Store.SeedFile == "" {
			errs = append(errs, errors.New("STORE_SEED_FILE is required for the memory store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
