// Package app wires configuration to a ready Forecaster.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"forecast-dashboard/internal/config"
	"forecast-dashboard/internal/services"
	"forecast-dashboard/internal/store"
)

// Sources returns the summary source and series loader named by the data
// configuration, plus a close function for any resources they hold.
func Sources(cfg config.DataConfig, logger *slog.Logger) (services.SummarySource, services.SeriesLoader, func() error, error) {
	switch cfg.Source {
	case config.SourceSQLite:
		st, err := store.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return st, st, st.Close, nil
	case config.SourceCSV:
		src := services.NewCSVSource(cfg.ForecastDir,
			services.WithSummaryFile(cfg.SummaryFile),
			services.WithSummaryCache(cfg.CacheDir),
			services.WithSourceLogger(logger),
		)
		return src, src, func() error { return nil }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}
}

// NewForecaster loads the summary table once and returns the Forecaster
// every request shares.
func NewForecaster(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services.Forecaster, func() error, error) {
	summary, loader, closeFn, err := Sources(cfg.Data, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Engine.CacheSeries {
		loader = services.NewCachedLoader(loader,
			services.WithCacheLoadTimeout(cfg.Engine.LoadTimeout),
			services.WithSeriesTTL(cfg.Engine.CacheTTL),
		)
	}

	f, err := services.LoadForecaster(ctx, summary, loader,
		services.WithWorkers(cfg.Engine.Workers),
		services.WithLoadTimeout(cfg.Engine.LoadTimeout),
		services.WithTrendThreshold(cfg.Engine.TrendThreshold),
		services.WithLogger(logger),
	)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return f, closeFn, nil
}
