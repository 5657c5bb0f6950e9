package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast-dashboard/internal/models"
)

func TestInsightCalculator_Classify(t *testing.T) {
	calc := NewInsightCalculator(DefaultTrendThreshold)

	tests := []struct {
		change float64
		want   models.Trend
	}{
		{5.0, models.TrendStable},
		{-5.0, models.TrendStable},
		{5.0001, models.TrendIncrease},
		{-5.0001, models.TrendDecline},
		{0, models.TrendStable},
		{42, models.TrendIncrease},
		{-99.9, models.TrendDecline},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calc.Classify(tt.change), "change %v", tt.change)
	}
}

func TestInsightCalculator_CustomThreshold(t *testing.T) {
	calc := NewInsightCalculator(10)
	assert.Equal(t, models.TrendStable, calc.Classify(8))
	assert.Equal(t, models.TrendIncrease, calc.Classify(10.5))

	assert.Equal(t, DefaultTrendThreshold, NewInsightCalculator(0).Threshold)
	assert.Equal(t, DefaultTrendThreshold, NewInsightCalculator(math.NaN()).Threshold)
}

func TestComputeInsight(t *testing.T) {
	in, err := ComputeInsight(twoWeekSeries(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 200.0, in.ActualTotal)
	assert.Equal(t, 200.0, in.ForecastTotal)
	assert.Equal(t, 0.0, in.ChangePct)
	assert.Equal(t, models.TrendStable, in.Trend)
}

func TestComputeInsight_AbsentActualsCountAsZero(t *testing.T) {
	series := models.ForecastSeries{Points: []models.ForecastPoint{
		{Date: day(time.January, 1), Actual: ptr(100), Forecast: 100},
		{Date: day(time.January, 8), Actual: nil, Forecast: 20},
	}}

	in, err := ComputeInsight(series)
	require.NoError(t, err)
	assert.Equal(t, 100.0, in.ActualTotal)
	assert.Equal(t, 120.0, in.ForecastTotal)
	assert.InDelta(t, 20.0, in.ChangePct, 1e-9)
	assert.Equal(t, models.TrendIncrease, in.Trend)
}

func TestComputeInsight_ZeroActual(t *testing.T) {
	tests := []struct {
		name   string
		series models.ForecastSeries
	}{
		{"empty window", models.ForecastSeries{}},
		{"all actuals absent", models.ForecastSeries{Points: []models.ForecastPoint{
			{Date: day(time.March, 1), Forecast: 50},
		}}},
		{"actuals sum to zero", models.ForecastSeries{Points: []models.ForecastPoint{
			{Date: day(time.March, 1), Actual: ptr(10), Forecast: 50},
			{Date: day(time.March, 8), Actual: ptr(-10), Forecast: 50},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ComputeInsight(tt.series)
			assert.ErrorIs(t, err, ErrDivisionByZero)
			assert.Equal(t, models.TrendNotApplicable, in.Trend)
			assert.False(t, math.IsInf(in.ChangePct, 0))
			assert.False(t, math.IsNaN(in.ChangePct))
		})
	}
}

func TestComputeInsight_Overflow(t *testing.T) {
	tests := []struct {
		name   string
		series models.ForecastSeries
	}{
		{"forecast total", models.ForecastSeries{Points: []models.ForecastPoint{
			{Date: day(time.March, 1), Actual: ptr(1), Forecast: math.MaxFloat64},
			{Date: day(time.March, 8), Actual: ptr(1), Forecast: math.MaxFloat64},
		}}},
		{"change percentage", models.ForecastSeries{Points: []models.ForecastPoint{
			{Date: day(time.March, 1), Actual: ptr(1e-300), Forecast: 1e300},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeInsight(tt.series)
			assert.ErrorIs(t, err, ErrMalformedData)
		})
	}
}
