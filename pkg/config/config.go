package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Ensemble defaults
	Ensemble EnsembleConfig

	// Forecast service
	Forecast ForecastConfig

	// API
	RateLimit int // 분당 요청 수 (0 = 제한 없음)

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// dsn DATABASE_URL 이 없을 때 DB_* 값으로 조립
func (d DatabaseConfig) dsn() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	return u.String()
}

// EnsembleConfig 요청에 값이 없을 때 쓰는 앙상블 기본값
type EnsembleConfig struct {
	Aggregation       string
	Decomposition     string
	SeasonalityLength int
	Steps             int
	Metric            string
	MaxWorkers        int    // 0 = 자동
	ModelsFile        string // 모델 스펙 YAML
}

// ForecastConfig holds forecast service settings
type ForecastConfig struct {
	CacheTTL  time.Duration
	Schedule  string        // cron 표현식
	Retention time.Duration // 실행 기록 보관 기간
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "kats"),
			User:            getEnv("DB_USER", "kats"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Ensemble: EnsembleConfig{
			Aggregation:       getEnv("ENSEMBLE_AGGREGATION", "median"),
			Decomposition:     getEnv("ENSEMBLE_DECOMPOSITION", "additive"),
			SeasonalityLength: getEnvAsInt("ENSEMBLE_SEASONALITY_LENGTH", 0),
			Steps:             getEnvAsInt("ENSEMBLE_STEPS", 30),
			Metric:            getEnv("ENSEMBLE_METRIC", "mape"),
			MaxWorkers:        getEnvAsInt("ENSEMBLE_MAX_WORKERS", 0),
			ModelsFile:        getEnv("ENSEMBLE_MODELS_FILE", "config/models.yaml"),
		},

		Forecast: ForecastConfig{
			CacheTTL:  getEnvAsDuration("FORECAST_CACHE_TTL", "1h"),
			Schedule:  getEnv("FORECAST_SCHEDULE", "0 0 6 * * *"),
			Retention: getEnvAsDuration("FORECAST_RETENTION", "720h"),
		},

		RateLimit: getEnvAsInt("API_RATE_LIMIT", 120),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.dsn()
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Ensemble.Aggregation != "median" && c.Ensemble.Aggregation != "weightedavg" {
		return fmt.Errorf("ENSEMBLE_AGGREGATION must be one of: median, weightedavg")
	}
	if c.Ensemble.SeasonalityLength < 0 {
		return fmt.Errorf("ENSEMBLE_SEASONALITY_LENGTH must not be negative")
	}
	if c.Ensemble.Steps < 1 {
		return fmt.Errorf("ENSEMBLE_STEPS must be at least 1")
	}
	if c.Ensemble.MaxWorkers < 0 {
		return fmt.Errorf("ENSEMBLE_MAX_WORKERS must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("API_RATE_LIMIT must not be negative")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
