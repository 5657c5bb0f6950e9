package services

import (
	"fmt"

	"forecast-dashboard/internal/models"
)

// ClampWindow intersects w with the bounds of the series. ok is false when
// the intersection is empty or the series has no points.
func ClampWindow(series models.ForecastSeries, w models.DateWindow) (clamped models.DateWindow, ok bool) {
	bounds, ok := series.Bounds()
	if !ok {
		return models.DateWindow{}, false
	}

	clamped = w
	if clamped.Start.Before(bounds.Start) {
		clamped.Start = bounds.Start
	}
	if clamped.End.After(bounds.End) {
		clamped.End = bounds.End
	}
	if clamped.Start.After(clamped.End) {
		return models.DateWindow{}, false
	}
	return clamped, true
}

// FilterWindow returns the points of series whose date lies inside w after
// clamping w to the series bounds. Inverted windows are rejected before
// clamping. An empty intersection yields an empty series, not an error.
func FilterWindow(series models.ForecastSeries, w models.DateWindow) (models.ForecastSeries, error) {
	if err := ValidateWindow(w); err != nil {
		return models.ForecastSeries{}, err
	}

	out := models.ForecastSeries{
		StoreID: series.StoreID,
		DeptID:  series.DeptID,
		Points:  []models.ForecastPoint{},
	}

	clamped, ok := ClampWindow(series, w)
	if !ok {
		return out, nil
	}

	for _, p := range series.Points {
		if clamped.Contains(p.Date) {
			out.Points = append(out.Points, p)
		}
	}
	return out, nil
}

func ValidateWindow(w models.DateWindow) error {
	if w.Start.After(w.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
			w.Start.Format(models.DateLayout), w.End.Format(models.DateLayout))
	}
	return nil
}
