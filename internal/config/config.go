package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	App       AppConfig
	Log       LogConfig
	Upload    UploadConfig
	Workflow  WorkflowConfig
	Analyzer  AnalyzerConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig holds the demo session mechanism configuration. The demo
// accounts are configured, not stored: one user and one administrator.
type AuthConfig struct {
	JWTSecret         string
	TokenExpiration   time.Duration
	DemoUserEmail     string
	DemoUserPassword  string
	AdminEmail        string
	AdminPasswordHash string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env     string
	Name    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// UploadConfig holds the file constraints enforced before a document
// enters the analysis pipeline.
type UploadConfig struct {
	AcceptedTypes []string
	MaxSizeMB     int64
}

// MaxSizeBytes returns the configured size limit in bytes.
func (c UploadConfig) MaxSizeBytes() int64 {
	return c.MaxSizeMB * 1024 * 1024
}

// WorkflowConfig holds the nominal durations of the timed feedback
// phases of an analysis attempt.
type WorkflowConfig struct {
	ExtractDuration   time.Duration
	NormalizeDuration time.Duration
	AttemptTTL        time.Duration
}

// AnalyzerConfig holds the external analysis collaborator endpoint.
type AnalyzerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env if present; godotenv does not override already-set
	// variables, so order matters.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 60*time.Second),
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "lablens"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "lablens_db"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			TokenExpiration:   getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
			DemoUserEmail:     getEnv("DEMO_USER_EMAIL", "demo@lablens.local"),
			DemoUserPassword:  getEnv("DEMO_USER_PASSWORD", "demo1234"),
			AdminEmail:        getEnv("ADMIN_EMAIL", "admin@lablens.local"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		App: AppConfig{
			Env:     getEnv("APP_ENV", "development"),
			Name:    getEnv("APP_NAME", "LabLens"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Upload: UploadConfig{
			AcceptedTypes: getSliceEnv("UPLOAD_ACCEPTED_TYPES", []string{"application/pdf", "image/jpeg", "image/png"}),
			MaxSizeMB:     int64(getIntEnv("UPLOAD_MAX_SIZE_MB", 10)),
		},
		Workflow: WorkflowConfig{
			ExtractDuration:   getDurationEnv("WORKFLOW_EXTRACT_DURATION", 2*time.Second),
			NormalizeDuration: getDurationEnv("WORKFLOW_NORMALIZE_DURATION", 2500*time.Millisecond),
			AttemptTTL:        getDurationEnv("WORKFLOW_ATTEMPT_TTL", 10*time.Minute),
		},
		Analyzer: AnalyzerConfig{
			BaseURL: getEnv("ANALYZER_BASE_URL", "http://localhost:5001/api"),
			Timeout: getDurationEnv("ANALYZER_TIMEOUT", 90*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Database.Password == "" && c.App.Env == "production" {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if c.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE_MB must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
