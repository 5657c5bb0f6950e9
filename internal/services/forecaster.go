package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"forecast-dashboard/internal/models"
	"forecast-dashboard/internal/observability"
)

const (
	DefaultWorkers     = 10
	DefaultLoadTimeout = 10 * time.Second
)

// Forecaster builds insight reports for store/department selections. It
// holds the immutable summary table and is safe for concurrent use.
type Forecaster struct {
	summary     *SummaryTable
	loader      SeriesLoader
	insight     InsightCalculator
	workers     int
	loadTimeout time.Duration
	logger      *slog.Logger

	reportsBuilt atomic.Int64
	pairFailures atomic.Int64
	loadedAt     time.Time
}

type Option func(*Forecaster)

func WithWorkers(n int) Option {
	return func(f *Forecaster) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithLoadTimeout(d time.Duration) Option {
	return func(f *Forecaster) {
		if d > 0 {
			f.loadTimeout = d
		}
	}
}

func WithTrendThreshold(pct float64) Option {
	return func(f *Forecaster) {
		f.insight = NewInsightCalculator(pct)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forecaster) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewForecaster(summary *SummaryTable, loader SeriesLoader, opts ...Option) *Forecaster {
	f := &Forecaster{
		summary:     summary,
		loader:      loader,
		insight:     NewInsightCalculator(DefaultTrendThreshold),
		workers:     DefaultWorkers,
		loadTimeout: DefaultLoadTimeout,
		logger:      slog.Default(),
		loadedAt:    time.Now(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// LoadForecaster reads the summary from src and builds a Forecaster over it.
func LoadForecaster(ctx context.Context, src SummarySource, loader SeriesLoader, opts ...Option) (*Forecaster, error) {
	rows, err := src.LoadSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	table, err := NewSummaryTable(rows)
	if err != nil {
		return nil, err
	}
	return NewForecaster(table, loader, opts...), nil
}

func (f *Forecaster) Summary() *SummaryTable {
	return f.summary
}

// TopAccurate returns the n summary rows with the lowest MAPE.
func (f *Forecaster) TopAccurate(n int) ([]models.AccuracySummaryRow, error) {
	return RankByMAPE(f.summary.rows, n)
}

func (f *Forecaster) Stores() []int {
	return f.summary.Stores()
}

func (f *Forecaster) Depts() []int {
	return f.summary.Depts()
}

// Bounds returns the full date range of a pair's series.
func (f *Forecaster) Bounds(ctx context.Context, storeID, deptID int) (models.DateWindow, error) {
	series, err := f.load(ctx, storeID, deptID)
	if err != nil {
		return models.DateWindow{}, err
	}
	bounds, _ := series.Bounds()
	return bounds, nil
}

// Window loads a pair's series and restricts it to window. A nil window
// keeps the whole series.
func (f *Forecaster) Window(ctx context.Context, storeID, deptID int, window *models.DateWindow) (models.ForecastSeries, error) {
	if window != nil {
		if err := ValidateWindow(*window); err != nil {
			return models.ForecastSeries{}, err
		}
	}

	series, err := f.load(ctx, storeID, deptID)
	if err != nil {
		return models.ForecastSeries{}, err
	}
	if window == nil {
		return series, nil
	}
	return FilterWindow(series, *window)
}

// BuildReport runs load, filter, compute and assemble for one pair. A zero
// actual total is not an error: the report carries TrendNotApplicable.
func (f *Forecaster) BuildReport(ctx context.Context, storeID, deptID int, window *models.DateWindow) (*models.InsightReport, error) {
	ctx, span := observability.StartSpan(ctx, "forecaster.build_report")
	defer span.Finish()
	span.SetTag("store_id", strconv.Itoa(storeID))
	span.SetTag("dept_id", strconv.Itoa(deptID))

	report, err := f.buildReport(ctx, storeID, deptID, window)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag("trend", string(report.Trend))
	f.reportsBuilt.Add(1)
	return report, nil
}

func (f *Forecaster) buildReport(ctx context.Context, storeID, deptID int, window *models.DateWindow) (*models.InsightReport, error) {
	if window != nil {
		if err := ValidateWindow(*window); err != nil {
			return nil, err
		}
	}

	row, ok := f.summary.Lookup(storeID, deptID)
	if !ok {
		return nil, fmt.Errorf("%w: no accuracy summary for store %d dept %d", ErrNotFound, storeID, deptID)
	}

	series, err := f.load(ctx, storeID, deptID)
	if err != nil {
		return nil, err
	}

	windowed := series
	effective, hasPoints := series.Bounds()
	if window != nil {
		effective, hasPoints = ClampWindow(series, *window)
		windowed, err = FilterWindow(series, *window)
		if err != nil {
			return nil, err
		}
	}

	in, err := f.insight.Compute(windowed)
	if err != nil && !errors.Is(err, ErrDivisionByZero) {
		return nil, err
	}

	var effectivePtr *models.DateWindow
	if hasPoints {
		effectivePtr = &effective
	}

	report, err := AssembleReport(row, windowed, in, effectivePtr)
	if err != nil {
		f.logger.ErrorContext(ctx, "report assembly failed", "store_id", storeID, "dept_id", deptID, "error", err)
		return nil, err
	}
	return report, nil
}

func (f *Forecaster) load(ctx context.Context, storeID, deptID int) (models.ForecastSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, f.loadTimeout)
	defer cancel()
	return f.loader.LoadSeries(ctx, storeID, deptID)
}

// BuildReports processes every store × dept combination on a bounded pool.
// Results follow input order. A failing pair records its error and never
// stops the others.
func (f *Forecaster) BuildReports(ctx context.Context, stores, depts []int, window *models.DateWindow) []models.PairResult {
	results := make([]models.PairResult, 0, len(stores)*len(depts))
	for _, s := range stores {
		for _, d := range depts {
			results = append(results, models.PairResult{Key: models.PairKey{StoreID: s, DeptID: d}})
		}
	}

	var g errgroup.Group
	g.SetLimit(f.workers)

	for i := range results {
		g.Go(func() error {
			key := results[i].Key
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			report, err := f.BuildReport(ctx, key.StoreID, key.DeptID, window)
			if err != nil {
				f.pairFailures.Add(1)
				f.logPairError(ctx, key, err)
				results[i].Err = err
				return nil
			}
			results[i].Report = report
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (f *Forecaster) logPairError(ctx context.Context, key models.PairKey, err error) {
	level := slog.LevelError
	switch {
	case errors.Is(err, ErrNotFound):
		level = slog.LevelWarn
	case errors.Is(err, ErrInvalidWindow), errors.Is(err, context.Canceled):
		level = slog.LevelInfo
	}
	f.logger.Log(ctx, level, "skipping selection",
		"store_id", key.StoreID,
		"dept_id", key.DeptID,
		"error", err,
	)
}

// Stats reports counters for the admin endpoint.
func (f *Forecaster) Stats() map[string]any {
	stats := map[string]any{
		"summary_rows":  f.summary.Len(),
		"stores":        len(f.summary.Stores()),
		"depts":         len(f.summary.Depts()),
		"reports_built": f.reportsBuilt.Load(),
		"pair_failures": f.pairFailures.Load(),
		"loaded_at":     f.loadedAt,
	}
	if c, ok := f.loader.(interface{ Stats() map[string]any }); ok {
		stats["loader"] = c.Stats()
	}
	return stats
}
