package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig is the TOML override file. Unset keys leave the environment
// value in place.
type FileConfig struct {
	Server struct {
		Host *string `toml:"host"`
		Port *int    `toml:"port"`
	} `toml:"server"`
	Data struct {
		Source      *string `toml:"source"`
		ForecastDir *string `toml:"forecast-dir"`
		SummaryFile *string `toml:"summary-file"`
		SQLitePath  *string `toml:"sqlite-path"`
		CacheDir    *string `toml:"cache-dir"`
	} `toml:"data"`
	Engine struct {
		TopN           *int     `toml:"top-n"`
		Workers        *int     `toml:"workers"`
		LoadTimeout    *string  `toml:"load-timeout"`
		TrendThreshold *float64 `toml:"trend-threshold"`
		TailRows       *int     `toml:"tail-rows"`
		CacheSeries    *bool    `toml:"cache-series"`
		CacheTTL       *string  `toml:"cache-ttl"`
		MaxPairs       *int     `toml:"max-pairs"`
	} `toml:"engine"`
	Logger struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"logger"`
}

// ApplyFile decodes the TOML file at path and overrides the matching fields.
func (c *Config) ApplyFile(path string) error {
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return c.apply(fc)
}

func (c *Config) apply(fc FileConfig) error {
	set(&c.Server.Host, fc.Server.Host)
	set(&c.Server.Port, fc.Server.Port)

	set(&c.Data.Source, fc.Data.Source)
	set(&c.Data.ForecastDir, fc.Data.ForecastDir)
	set(&c.Data.SummaryFile, fc.Data.SummaryFile)
	set(&c.Data.SQLitePath, fc.Data.SQLitePath)
	set(&c.Data.CacheDir, fc.Data.CacheDir)

	set(&c.Engine.TopN, fc.Engine.TopN)
	set(&c.Engine.Workers, fc.Engine.Workers)
	set(&c.Engine.TrendThreshold, fc.Engine.TrendThreshold)
	set(&c.Engine.TailRows, fc.Engine.TailRows)
	set(&c.Engine.CacheSeries, fc.Engine.CacheSeries)
	set(&c.Engine.MaxPairs, fc.Engine.MaxPairs)
	if err := setDuration(&c.Engine.LoadTimeout, fc.Engine.LoadTimeout); err != nil {
		return fmt.Errorf("engine load-timeout: %w", err)
	}
	if err := setDuration(&c.Engine.CacheTTL, fc.Engine.CacheTTL); err != nil {
		return fmt.Errorf("engine cache-ttl: %w", err)
	}

	set(&c.Logger.Level, fc.Logger.Level)
	set(&c.Logger.Format, fc.Logger.Format)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
