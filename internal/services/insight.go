package services

import (
	"fmt"
	"math"

	"forecast-dashboard/internal/models"
)

const DefaultTrendThreshold = 5.0

// InsightCalculator derives totals and a trend from a windowed series.
type InsightCalculator struct {
	// Threshold is the percentage change beyond which a trend is reported.
	// Values exactly at the threshold are Stable.
	Threshold float64
}

func NewInsightCalculator(threshold float64) InsightCalculator {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultTrendThreshold
	}
	return InsightCalculator{Threshold: threshold}
}

// Compute sums actuals and forecasts over the series. Absent actuals count
// as 0. When the actual total is 0 the totals are still returned with
// TrendNotApplicable and ErrDivisionByZero. Totals or a change that
// overflow to infinity are ErrMalformedData.
func (c InsightCalculator) Compute(series models.ForecastSeries) (models.Insight, error) {
	var in models.Insight
	for _, p := range series.Points {
		if p.Actual != nil {
			in.ActualTotal += *p.Actual
		}
		in.ForecastTotal += p.Forecast
	}

	if !isFinite(in.ActualTotal) || !isFinite(in.ForecastTotal) {
		return models.Insight{}, fmt.Errorf("%w: totals overflow", ErrMalformedData)
	}

	if in.ActualTotal == 0 {
		in.Trend = models.TrendNotApplicable
		return in, ErrDivisionByZero
	}

	in.ChangePct = (in.ForecastTotal - in.ActualTotal) / in.ActualTotal * 100
	if !isFinite(in.ChangePct) {
		return models.Insight{}, fmt.Errorf("%w: change percentage overflows", ErrMalformedData)
	}
	in.Trend = c.Classify(in.ChangePct)
	return in, nil
}

func (c InsightCalculator) Classify(changePct float64) models.Trend {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultTrendThreshold
	}
	switch {
	case changePct > threshold:
		return models.TrendIncrease
	case changePct < -threshold:
		return models.TrendDecline
	default:
		return models.TrendStable
	}
}

// ComputeInsight uses the default ±5% threshold.
func ComputeInsight(series models.ForecastSeries) (models.Insight, error) {
	return InsightCalculator{Threshold: DefaultTrendThreshold}.Compute(series)
}
