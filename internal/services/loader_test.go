package services

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast-dashboard/internal/models"
)

func TestParseSeriesCSV(t *testing.T) {
	csv := `ds,y,yhat
2024-01-15 00:00:00,120.5,118
2024-01-01,100,110
2024-01-08,,90
2024-01-22,nan,95.25
`
	points, err := ParseSeriesCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, day(time.January, 1), points[0].Date)
	assert.Equal(t, day(time.January, 8), points[1].Date)
	assert.Equal(t, day(time.January, 15), points[2].Date)
	assert.Equal(t, day(time.January, 22), points[3].Date)

	require.NotNil(t, points[0].Actual)
	assert.Equal(t, 100.0, *points[0].Actual)
	assert.Nil(t, points[1].Actual)
	assert.Nil(t, points[3].Actual)
	assert.Equal(t, 95.25, points[3].Forecast)
}

func TestParseSeriesCSV_Malformed(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"header only", "ds,y,yhat\n"},
		{"missing yhat column", "ds,y\n2024-01-01,1\n"},
		{"bad date", "ds,y,yhat\nnot-a-date,1,2\n"},
		{"bad actual", "ds,y,yhat\n2024-01-01,abc,2\n"},
		{"missing forecast", "ds,y,yhat\n2024-01-01,1,\n"},
		{"duplicate date", "ds,y,yhat\n2024-01-01,1,2\n2024-01-01,3,4\n"},
		{"nan forecast", "ds,y,yhat\n2024-01-01,100,nan\n"},
		{"infinite forecast", "ds,y,yhat\n2024-01-01,100,-Inf\n"},
		{"infinite actual", "ds,y,yhat\n2024-01-08,inf,90\n"},
		{"infinity actual", "ds,y,yhat\n2024-01-08,Infinity,90\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeriesCSV(strings.NewReader(tt.csv))
			assert.ErrorIs(t, err, ErrMalformedData)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestNormalizePoints_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		point models.ForecastPoint
	}{
		{"nan forecast", models.ForecastPoint{Date: day(time.January, 1), Actual: ptr(1), Forecast: math.NaN()}},
		{"infinite forecast", models.ForecastPoint{Date: day(time.January, 1), Forecast: math.Inf(1)}},
		{"nan actual", models.ForecastPoint{Date: day(time.January, 1), Actual: ptr(math.NaN()), Forecast: 1}},
		{"infinite actual", models.ForecastPoint{Date: day(time.January, 1), Actual: ptr(math.Inf(-1)), Forecast: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizePoints([]models.ForecastPoint{tt.point})
			assert.ErrorIs(t, err, ErrMalformedData)
		})
	}
}

func TestCSVSource_LoadSeries(t *testing.T) {
	src := NewCSVSource(forecastDir(t))

	series, err := src.LoadSeries(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, twoWeekSeries(1, 1), series)
}

func TestCSVSource_LoadSeries_NotFound(t *testing.T) {
	src := NewCSVSource(forecastDir(t))

	_, err := src.LoadSeries(context.Background(), 99, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrMalformedData)
}

func TestCSVSource_LoadSeries_Malformed(t *testing.T) {
	dir := forecastDir(t)
	writeFile(t, dir, SeriesFileName(2, 1), "ds,y,yhat\n2024-13-45,1,2\n")

	_, err := NewCSVSource(dir).LoadSeries(context.Background(), 2, 1)
	assert.ErrorIs(t, err, ErrMalformedData)
	assert.Contains(t, err.Error(), "Store2_Dept1_forecast.csv")
}

func TestCSVSource_LoadSeries_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVSource(forecastDir(t)).LoadSeries(ctx, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCSVSource_LoadSummary(t *testing.T) {
	src := NewCSVSource(forecastDir(t))
	rows, err := src.LoadSummary(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = NewCSVSource(t.TempDir()).LoadSummary(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCSVSource_SummaryCache(t *testing.T) {
	dir := forecastDir(t)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	src := NewCSVSource(dir, WithSummaryCache(cacheDir))

	first, err := src.LoadSummary(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_v1.gob"))

	second, err := src.LoadSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// a newer source file invalidates the cache
	summary := filepath.Join(dir, DefaultSummaryFile)
	require.NoError(t, os.WriteFile(summary, []byte("Store,Dept,MAPE,RMSE\n7,7,1,1\n"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(summary, future, future))

	third, err := src.LoadSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.AccuracySummaryRow{{StoreID: 7, DeptID: 7, MAPE: 1, RMSE: 1}}, third)
}

func TestCSVSource_ListPairs(t *testing.T) {
	dir := forecastDir(t)
	writeFile(t, dir, SeriesFileName(10, 2), twoWeekCSV)
	writeFile(t, dir, SeriesFileName(2, 30), twoWeekCSV)
	writeFile(t, dir, "notes.csv", "x")

	pairs, err := NewCSVSource(dir).ListPairs()
	require.NoError(t, err)
	assert.Equal(t, []models.PairKey{
		{StoreID: 1, DeptID: 1},
		{StoreID: 2, DeptID: 30},
		{StoreID: 10, DeptID: 2},
	}, pairs)
}
