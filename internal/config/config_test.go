package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Data.Source != SourceCSV {
		t.Errorf("Data.Source = %q, want %q", cfg.Data.Source, SourceCSV)
	}
	if cfg.Engine.TopN != 5 {
		t.Errorf("Engine.TopN = %d, want 5", cfg.Engine.TopN)
	}
	if cfg.Engine.TrendThreshold != 5.0 {
		t.Errorf("Engine.TrendThreshold = %v, want 5", cfg.Engine.TrendThreshold)
	}
	if cfg.Engine.TailRows != 30 {
		t.Errorf("Engine.TailRows = %d, want 30", cfg.Engine.TailRows)
	}
	if cfg.Engine.CacheTTL != 5*time.Minute || cfg.Engine.MaxPairs != 100 {
		t.Errorf("Engine.CacheTTL = %v, MaxPairs = %d", cfg.Engine.CacheTTL, cfg.Engine.MaxPairs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATA_SOURCE", SourceSQLite)
	t.Setenv("ENGINE_LOAD_TIMEOUT", "3s")
	t.Setenv("ENGINE_TREND_THRESHOLD", "2.5")
	t.Setenv("ENGINE_CACHE_SERIES", "false")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("ENGINE_WORKERS", "not-a-number")

	cfg := FromEnv()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Data.Source != SourceSQLite {
		t.Errorf("Data.Source = %q", cfg.Data.Source)
	}
	if cfg.Engine.LoadTimeout != 3*time.Second {
		t.Errorf("Engine.LoadTimeout = %v", cfg.Engine.LoadTimeout)
	}
	if cfg.Engine.TrendThreshold != 2.5 {
		t.Errorf("Engine.TrendThreshold = %v", cfg.Engine.TrendThreshold)
	}
	if cfg.Engine.CacheSeries {
		t.Error("Engine.CacheSeries should be false")
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.Security.AllowedOrigins)
	}
	if cfg.Engine.Workers != 10 {
		t.Errorf("unparseable ENGINE_WORKERS should keep default, got %d", cfg.Engine.Workers)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"unknown source", func(c *Config) { c.Data.Source = "parquet" }, "invalid data source"},
		{"empty forecast dir", func(c *Config) { c.Data.ForecastDir = "" }, "forecast directory"},
		{"empty sqlite path", func(c *Config) {
			c.Data.Source = SourceSQLite
			c.Data.SQLitePath = ""
		}, "sqlite path"},
		{"negative top n", func(c *Config) { c.Engine.TopN = -1 }, "top N"},
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }, "workers"},
		{"zero threshold", func(c *Config) { c.Engine.TrendThreshold = 0 }, "trend threshold"},
		{"zero cache ttl", func(c *Config) { c.Engine.CacheTTL = 0 }, ""},
		{"negative cache ttl", func(c *Config) { c.Engine.CacheTTL = -time.Second }, "cache TTL"},
		{"zero max pairs", func(c *Config) { c.Engine.MaxPairs = 0 }, "max pairs"},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }, "log level"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "log format"},
		{"zero rps", func(c *Config) { c.Security.RateLimitRPS = 0 }, "RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.toml")
	content := `
[server]
port = 9000

[data]
source = "sqlite"
sqlite-path = "/tmp/f.db"

[engine]
top-n = 10
load-timeout = "250ms"
trend-threshold = 7.5
cache-ttl = "30s"
max-pairs = 12

[logger]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := FromEnv()
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("unset Server.Host changed to %q", cfg.Server.Host)
	}
	if cfg.Data.Source != SourceSQLite || cfg.Data.SQLitePath != "/tmp/f.db" {
		t.Errorf("Data = %+v", cfg.Data)
	}
	if cfg.Engine.TopN != 10 || cfg.Engine.LoadTimeout != 250*time.Millisecond || cfg.Engine.TrendThreshold != 7.5 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Engine.CacheTTL != 30*time.Second || cfg.Engine.MaxPairs != 12 {
		t.Errorf("Engine cache-ttl/max-pairs = %v/%d", cfg.Engine.CacheTTL, cfg.Engine.MaxPairs)
	}
	if cfg.Engine.Workers != 10 {
		t.Errorf("unset Engine.Workers changed to %d", cfg.Engine.Workers)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
}

func TestConfig_ApplyFileErrors(t *testing.T) {
	dir := t.TempDir()

	if err := FromEnv().ApplyFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[engine]\nload-timeout = \"soon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := FromEnv().ApplyFile(bad); err == nil || !strings.Contains(err.Error(), "load-timeout") {
		t.Errorf("ApplyFile() = %v, want load-timeout error", err)
	}
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "forecast.toml")
	if err := os.WriteFile(path, []byte("[engine]\nworkers = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FORECAST_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Workers != 3 {
		t.Errorf("Engine.Workers = %d, want 3", cfg.Engine.Workers)
	}
}

func TestConfig_Address(t *testing.T) {
	cfg := FromEnv()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8084
	if got := cfg.Address(); got != "0.0.0.0:8084" {
		t.Errorf("Address() = %q", got)
	}
}
