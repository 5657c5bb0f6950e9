package models

// Trend classifies how the forecast total compares with the actual total.
type Trend string

const (
	TrendIncrease      Trend = "Increase"
	TrendDecline       Trend = "Decline"
	TrendStable        Trend = "Stable"
	TrendNotApplicable Trend = "NotApplicable"
)

// Message is the suggested action shown next to the KPIs.
func (t Trend) Message() string {
	switch t {
	case TrendIncrease:
		return "Forecasted increase in sales. Consider increasing inventory or promotional campaigns."
	case TrendDecline:
		return "Forecasted decline in sales. Investigate possible demand drops or operational issues."
	case TrendStable:
		return "Sales expected to remain stable. Maintain current strategies."
	default:
		return "No actual sales in range; percentage change is not applicable."
	}
}

// Insight is the aggregate derived from a windowed series. ChangePct is
// only meaningful when Trend is not TrendNotApplicable.
type Insight struct {
	ActualTotal   float64
	ForecastTotal float64
	ChangePct     float64
	Trend         Trend
}

type InsightReport struct {
	StoreID       int             `json:"store_id"`
	DeptID        int             `json:"dept_id"`
	MAPE          float64         `json:"mape"`
	RMSE          float64         `json:"rmse"`
	ActualTotal   float64         `json:"actual_total"`
	ForecastTotal float64         `json:"forecast_total"`
	ChangePct     *float64        `json:"change_pct"`
	Trend         Trend           `json:"trend"`
	Message       string          `json:"message"`
	Window        *DateWindow     `json:"window,omitempty"`
	Points        []ForecastPoint `json:"windowed_points"`
}

func (r *InsightReport) Key() PairKey {
	return PairKey{StoreID: r.StoreID, DeptID: r.DeptID}
}

// Tail returns the last n windowed points.
func (r *InsightReport) Tail(n int) []ForecastPoint {
	if n <= 0 {
		return nil
	}
	if len(r.Points) <= n {
		return r.Points
	}
	return r.Points[len(r.Points)-n:]
}

// PairResult is the outcome of one store/department selection in a batch.
// Exactly one of Report and Err is set.
type PairResult struct {
	Key    PairKey
	Report *InsightReport
	Err    error
}
