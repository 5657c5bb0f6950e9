package services

import (
	"encoding/csv"
	"io"
	"strconv"

	"forecast-dashboard/internal/models"
)

// WriteSeriesCSV writes points with the same ds,y,yhat shape the series
// files are read from. Absent actuals are written as empty cells.
func WriteSeriesCSV(w io.Writer, points []models.ForecastPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ds", "y", "yhat"}); err != nil {
		return err
	}

	for _, p := range points {
		actual := ""
		if p.Actual != nil {
			actual = strconv.FormatFloat(*p.Actual, 'f', -1, 64)
		}
		record := []string{
			p.Date.Format(models.DateLayout),
			actual,
			strconv.FormatFloat(p.Forecast, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
