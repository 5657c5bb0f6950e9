package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Engine   EngineConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig selects where the summary table and series come from.
type DataConfig struct {
	Source      string
	ForecastDir string
	SummaryFile string
	SQLitePath  string
	CacheDir    string
}

type EngineConfig struct {
	TopN           int
	Workers        int
	LoadTimeout    time.Duration
	TrendThreshold float64
	TailRows       int
	CacheSeries    bool
	CacheTTL       time.Duration
	MaxPairs       int
}

type LoggerConfig struct {
	Level     string
	Format    string
	AddSource bool
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Load reads an optional .env file, then the environment, then the TOML
// file named by FORECAST_CONFIG. Later layers win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := FromEnv()

	if path := os.Getenv("FORECAST_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a configuration from environment variables and defaults
// without validating it.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			Source:      getEnvString("DATA_SOURCE", SourceCSV),
			ForecastDir: getEnvString("FORECAST_DIR", "forecasts"),
			SummaryFile: getEnvString("SUMMARY_FILE", "forecast_summary.csv"),
			SQLitePath:  getEnvString("SQLITE_PATH", "forecasts.db"),
			CacheDir:    getEnvString("CACHE_DIR", ".cache"),
		},
		Engine: EngineConfig{
			TopN:           getEnvInt("ENGINE_TOP_N", 5),
			Workers:        getEnvInt("ENGINE_WORKERS", 10),
			LoadTimeout:    getEnvDuration("ENGINE_LOAD_TIMEOUT", 10*time.Second),
			TrendThreshold: getEnvFloat("ENGINE_TREND_THRESHOLD", 5.0),
			TailRows:       getEnvInt("ENGINE_TAIL_ROWS", 30),
			CacheSeries:    getEnvBool("ENGINE_CACHE_SERIES", true),
			CacheTTL:       getEnvDuration("ENGINE_CACHE_TTL", 5*time.Minute),
			MaxPairs:       getEnvInt("ENGINE_MAX_PAIRS", 100),
		},
		Logger: LoggerConfig{
			Level:     getEnvString("LOG_LEVEL", "info"),
			Format:    getEnvString("LOG_FORMAT", "json"),
			AddSource: getEnvBool("LOG_ADD_SOURCE", false),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	switch c.Data.Source {
	case SourceCSV:
		if c.Data.ForecastDir == "" {
			return fmt.Errorf("forecast directory cannot be empty")
		}
	case SourceSQLite:
		if c.Data.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
	default:
		return fmt.Errorf("invalid data source %q, must be one of: %s, %s", c.Data.Source, SourceCSV, SourceSQLite)
	}

	if c.Engine.TopN < 0 {
		return fmt.Errorf("top N cannot be negative")
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine workers must be positive")
	}
	if c.Engine.LoadTimeout <= 0 {
		return fmt.Errorf("engine load timeout must be positive")
	}
	if c.Engine.TrendThreshold <= 0 {
		return fmt.Errorf("trend threshold must be positive")
	}
	if c.Engine.CacheTTL < 0 {
		return fmt.Errorf("series cache TTL cannot be negative")
	}
	if c.Engine.MaxPairs <= 0 {
		return fmt.Errorf("max pairs per request must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}
	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
