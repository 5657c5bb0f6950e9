package services

import (
	"fmt"

	"forecast-dashboard/internal/models"
)

// AssembleReport combines a summary row, its windowed series and the derived
// insight. window is the effective window after clamping, nil when empty.
func AssembleReport(row models.AccuracySummaryRow, series models.ForecastSeries, in models.Insight, window *models.DateWindow) (*models.InsightReport, error) {
	if row.Key() != series.Key() {
		return nil, fmt.Errorf("%w: summary has %s, series has %s",
			ErrIdentifierMismatch, row.Key(), series.Key())
	}

	report := &models.InsightReport{
		StoreID:       row.StoreID,
		DeptID:        row.DeptID,
		MAPE:          row.MAPE,
		RMSE:          row.RMSE,
		ActualTotal:   in.ActualTotal,
		ForecastTotal: in.ForecastTotal,
		Trend:         in.Trend,
		Message:       in.Trend.Message(),
		Window:        window,
		Points:        series.Points,
	}
	if in.Trend != models.TrendNotApplicable {
		pct := in.ChangePct
		report.ChangePct = &pct
	}
	return report, nil
}
