package services

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"forecast-dashboard/internal/models"
)

// SeriesLoader locates and parses the series of one store/department pair.
// Implementations return ErrNotFound when the pair has no data and
// ErrMalformedData when it cannot be parsed. A returned series is sorted
// ascending by date and has at least one point.
type SeriesLoader interface {
	LoadSeries(ctx context.Context, storeID, deptID int) (models.ForecastSeries, error)
}

const (
	DefaultSummaryFile = "forecast_summary.csv"
	seriesFilePattern  = "Store%d_Dept%d_forecast.csv"
)

// SeriesFileName is the file name a pair's series is stored and exported under.
func SeriesFileName(storeID, deptID int) string {
	return fmt.Sprintf(seriesFilePattern, storeID, deptID)
}

// CSVSource reads the summary table and per-pair series from a directory of
// CSV files.
type CSVSource struct {
	dir         string
	summaryFile string
	cache       *SummaryCache
	logger      *slog.Logger
}

type CSVSourceOption func(*CSVSource)

func WithSummaryFile(name string) CSVSourceOption {
	return func(s *CSVSource) {
		if name != "" {
			s.summaryFile = name
		}
	}
}

// WithSummaryCache keeps a gob copy of the parsed summary under dir.
func WithSummaryCache(dir string) CSVSourceOption {
	return func(s *CSVSource) {
		if dir != "" {
			s.cache = NewSummaryCache(dir)
		}
	}
}

func WithSourceLogger(logger *slog.Logger) CSVSourceOption {
	return func(s *CSVSource) {
		s.logger = logger
	}
}

func NewCSVSource(dir string, opts ...CSVSourceOption) *CSVSource {
	s := &CSVSource{
		dir:         dir,
		summaryFile: DefaultSummaryFile,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CSVSource) Dir() string {
	return s.dir
}

func (s *CSVSource) SummaryPath() string {
	return filepath.Join(s.dir, s.summaryFile)
}

// LoadSummary reads the summary file. A missing file is ErrNotFound.
func (s *CSVSource) LoadSummary(ctx context.Context) ([]models.AccuracySummaryRow, error) {
	path := s.SummaryPath()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: summary file %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat summary: %w", err)
	}

	if s.cache != nil {
		if rows, ok := s.cache.Load(path, info.ModTime()); ok {
			s.logger.Info("loaded summary from cache", "records", len(rows))
			return rows, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	rows, err := ParseSummaryCSV(f)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Save(path, rows); err != nil {
			s.logger.Warn("failed to save summary cache", "error", err)
		}
	}

	s.logger.Info("summary loaded", "path", path, "records", len(rows), "duration", time.Since(start))
	return rows, nil
}

func (s *CSVSource) LoadSeries(ctx context.Context, storeID, deptID int) (models.ForecastSeries, error) {
	if err := ctx.Err(); err != nil {
		return models.ForecastSeries{}, err
	}

	path := filepath.Join(s.dir, SeriesFileName(storeID, deptID))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ForecastSeries{}, fmt.Errorf("%w: no series for store %d dept %d", ErrNotFound, storeID, deptID)
		}
		return models.ForecastSeries{}, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	points, err := ParseSeriesCSV(f)
	if err != nil {
		return models.ForecastSeries{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return models.ForecastSeries{StoreID: storeID, DeptID: deptID, Points: points}, nil
}

// SeriesVersion returns the modification time of a pair's series file.
func (s *CSVSource) SeriesVersion(storeID, deptID int) (time.Time, error) {
	info, err := os.Stat(filepath.Join(s.dir, SeriesFileName(storeID, deptID)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: no series for store %d dept %d", ErrNotFound, storeID, deptID)
		}
		return time.Time{}, fmt.Errorf("stat series: %w", err)
	}
	return info.ModTime(), nil
}

// ListPairs returns every pair with a series file in the directory.
func (s *CSVSource) ListPairs() ([]models.PairKey, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "Store*_Dept*_forecast.csv"))
	if err != nil {
		return nil, err
	}

	pairs := make([]models.PairKey, 0, len(matches))
	for _, m := range matches {
		var k models.PairKey
		if _, err := fmt.Sscanf(filepath.Base(m), seriesFilePattern, &k.StoreID, &k.DeptID); err != nil {
			s.logger.Debug("skipping unrecognized series file", "file", m)
			continue
		}
		pairs = append(pairs, k)
	}
	slices.SortFunc(pairs, func(a, b models.PairKey) int {
		if c := cmp.Compare(a.StoreID, b.StoreID); c != 0 {
			return c
		}
		return cmp.Compare(a.DeptID, b.DeptID)
	})
	return pairs, nil
}

// ParseSeriesCSV reads ds (date), y (actual, blank when absent) and yhat
// (forecast) columns. The points are returned sorted by date. Unparseable
// values, duplicate dates and empty series are ErrMalformedData.
func ParseSeriesCSV(r io.Reader) ([]models.ForecastPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: series has no header", ErrMalformedData)
		}
		return nil, fmt.Errorf("%w: read series header: %v", ErrMalformedData, err)
	}

	cols, err := columnIndex(header, "ds", "y", "yhat")
	if err != nil {
		return nil, err
	}

	var points []models.ForecastPoint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedData, line, err)
		}

		p, err := parseSeriesRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedData, line, err)
		}
		points = append(points, p)
	}

	return NormalizePoints(points)
}

func parseSeriesRecord(record []string, cols map[string]int) (models.ForecastPoint, error) {
	date, err := models.ParseDate(record[cols["ds"]])
	if err != nil {
		return models.ForecastPoint{}, err
	}

	p := models.ForecastPoint{Date: date}

	if raw := strings.TrimSpace(record[cols["y"]]); raw != "" && !strings.EqualFold(raw, "nan") {
		actual, err := parseFinite(raw)
		if err != nil {
			return models.ForecastPoint{}, fmt.Errorf("actual: %w", err)
		}
		p.Actual = &actual
	}

	p.Forecast, err = parseFinite(record[cols["yhat"]])
	if err != nil {
		return models.ForecastPoint{}, fmt.Errorf("forecast: %w", err)
	}
	return p, nil
}

// parseFinite parses a float and refuses NaN and the infinities, which
// ParseFloat accepts.
func parseFinite(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NormalizePoints sorts points ascending by date and rejects empty input,
// non-finite values and duplicate dates.
func NormalizePoints(points []models.ForecastPoint) ([]models.ForecastPoint, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: series has no points", ErrMalformedData)
	}
	for _, p := range points {
		day := p.Date.Format(models.DateLayout)
		if !isFinite(p.Forecast) {
			return nil, fmt.Errorf("%w: non-finite forecast on %s", ErrMalformedData, day)
		}
		if p.Actual != nil && !isFinite(*p.Actual) {
			return nil, fmt.Errorf("%w: non-finite actual on %s", ErrMalformedData, day)
		}
	}

	slices.SortStableFunc(points, func(a, b models.ForecastPoint) int {
		return a.Date.Compare(b.Date)
	})
	for i := 1; i < len(points); i++ {
		if points[i].Date.Equal(points[i-1].Date) {
			return nil, fmt.Errorf("%w: duplicate date %s", ErrMalformedData, points[i].Date.Format(models.DateLayout))
		}
	}
	return points, nil
}
