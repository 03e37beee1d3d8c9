package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Data backends the permission store can run against.
const (
	DataBackendPostgres = "postgres"
	DataBackendSupabase = "supabase"
)

// minProductionSecretLength is the shortest AUTH_SECRET accepted in production.
const minProductionSecretLength = 32

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Supabase      SupabaseConfig
	Observability ObservabilityConfig
	DataBackend   string
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	CORSOrigins     []string
	// LoginRateLimit is the number of login attempts allowed per IP per minute.
	LoginRateLimit int
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds the signing material for locally issued tokens.
// It is loaded once at startup and never mutated afterwards.
type AuthConfig struct {
	TokenSecret    string
	TokenAlgorithm string
	TokenTTL       time.Duration
}

// SupabaseConfig holds the managed auth / database service settings
type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	Timeout        time.Duration
	// Breaker settings for the session lookup endpoint.
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env otherwise)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		DataBackend: strings.ToLower(getEnv("DATA_BACKEND", DataBackendPostgres)),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),
			LoginRateLimit:  getEnvAsInt("LOGIN_RATE_LIMIT", 10),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			TokenSecret:    os.Getenv("AUTH_SECRET"),
			TokenAlgorithm: strings.ToUpper(getEnv("AUTH_ALGORITHM", "HS256")),
			TokenTTL:       getEnvAsDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		Supabase: SupabaseConfig{
			URL:                strings.TrimSuffix(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey:            getEnv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey:     getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			Timeout:            getEnvAsDuration("SUPABASE_TIMEOUT", 5*time.Second),
			BreakerMaxFailures: uint32(getEnvAsInt("SUPABASE_BREAKER_MAX_FAILURES", 5)),
			BreakerOpenTimeout: getEnvAsDuration("SUPABASE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := c.Auth.Validate(c.IsProduction()); err != nil {
		return err
	}

	switch c.DataBackend {
	case DataBackendPostgres, "":
	case DataBackendSupabase:
		// Permission checks go through PostgREST; the admin surface still
		// talks to the project's Postgres directly.
		if c.Supabase.URL == "" || c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("supabase data backend requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	default:
		return fmt.Errorf("unknown data backend %q", c.DataBackend)
	}

	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Supabase.URL != "" {
		if _, err := url.ParseRequestURI(c.Supabase.URL); err != nil {
			return fmt.Errorf("invalid SUPABASE_URL: %w", err)
		}
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks the signing configuration. There is no fallback secret:
// a missing secret must stop the process from starting.
func (a AuthConfig) Validate(production bool) error {
	if a.TokenSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}
	if production && len(a.TokenSecret) < minProductionSecretLength {
		return fmt.Errorf("AUTH_SECRET must be at least %d bytes in production", minProductionSecretLength)
	}
	switch a.TokenAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported AUTH_ALGORITHM %q", a.TokenAlgorithm)
	}
	if a.TokenTTL < 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must not be negative")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// SessionLookupEnabled reports whether managed-auth session tokens can be checked.
func (c *Config) SessionLookupEnabled() bool {
	return c.Supabase.URL != "" && c.Supabase.AnonKey != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "tracker"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
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
