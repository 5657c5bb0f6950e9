package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// AccuracySummaryRow holds the accuracy metrics of one store/department forecast.
type AccuracySummaryRow struct {
	StoreID int     `json:"store_id"`
	DeptID  int     `json:"dept_id"`
	MAPE    float64 `json:"mape"`
	RMSE    float64 `json:"rmse"`
}

func (r AccuracySummaryRow) Key() PairKey {
	return PairKey{StoreID: r.StoreID, DeptID: r.DeptID}
}

type PairKey struct {
	StoreID int `json:"store_id"`
	DeptID  int `json:"dept_id"`
}

func (k PairKey) String() string {
	return fmt.Sprintf("store %d dept %d", k.StoreID, k.DeptID)
}

// ForecastPoint is one dated row of a series. Actual is nil for dates
// beyond the observed history.
type ForecastPoint struct {
	Date     time.Time
	Actual   *float64
	Forecast float64
}

type forecastPointJSON struct {
	Date     string   `json:"date"`
	Actual   *float64 `json:"actual"`
	Forecast float64  `json:"forecast"`
}

func (p ForecastPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(forecastPointJSON{
		Date:     p.Date.Format(DateLayout),
		Actual:   p.Actual,
		Forecast: p.Forecast,
	})
}

func (p *ForecastPoint) UnmarshalJSON(data []byte) error {
	var raw forecastPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	*p = ForecastPoint{Date: date, Actual: raw.Actual, Forecast: raw.Forecast}
	return nil
}

// ForecastSeries is the ascending, date-unique sequence of points for one pair.
type ForecastSeries struct {
	StoreID int             `json:"store_id"`
	DeptID  int             `json:"dept_id"`
	Points  []ForecastPoint `json:"points"`
}

func (s ForecastSeries) Key() PairKey {
	return PairKey{StoreID: s.StoreID, DeptID: s.DeptID}
}

func (s ForecastSeries) Len() int {
	return len(s.Points)
}

// MinDate returns the first date of the series, or the zero time when empty.
func (s ForecastSeries) MinDate() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Date
}

// MaxDate returns the last date of the series, or the zero time when empty.
func (s ForecastSeries) MaxDate() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// Bounds returns [MinDate, MaxDate]. ok is false for an empty series.
func (s ForecastSeries) Bounds() (DateWindow, bool) {
	if len(s.Points) == 0 {
		return DateWindow{}, false
	}
	return DateWindow{Start: s.MinDate(), End: s.MaxDate()}, true
}

// DateWindow is the closed interval [Start, End].
type DateWindow struct {
	Start time.Time
	End   time.Time
}

func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w DateWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

func (w DateWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"start": w.Start.Format(DateLayout),
		"end":   w.End.Format(DateLayout),
	})
}

func (w *DateWindow) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := ParseDate(raw.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := ParseDate(raw.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	*w = DateWindow{Start: start, End: end}
	return nil
}

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay drops the time-of-day component, keeping the calendar date.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// ParseDate accepts plain dates as well as the timestamp renderings
// spreadsheet tools produce for date columns.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
