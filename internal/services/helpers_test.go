package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"forecast-dashboard/internal/models"
)

func ptr(v float64) *float64 { return &v }

func day(month time.Month, d int) time.Time {
	return models.Date(2024, month, d)
}

// twoWeekSeries is the reference series: 2024-01-01 100/110, 2024-01-08 100/90.
func twoWeekSeries(storeID, deptID int) models.ForecastSeries {
	return models.ForecastSeries{
		StoreID: storeID,
		DeptID:  deptID,
		Points: []models.ForecastPoint{
			{Date: day(time.January, 1), Actual: ptr(100), Forecast: 110},
			{Date: day(time.January, 8), Actual: ptr(100), Forecast: 90},
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const summaryCSV = `Store,Dept,MAPE,RMSE
1,1,8.5,1200.0
1,2,3.2,800.0
2,1,3.2,950.0
`

const twoWeekCSV = `ds,y,yhat
2024-01-01,100,110
2024-01-08,100,90
`

// forecastDir builds a directory with the summary above and a series file
// for store 1 dept 1 only.
func forecastDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, DefaultSummaryFile, summaryCSV)
	writeFile(t, dir, SeriesFileName(1, 1), twoWeekCSV)
	return dir
}
