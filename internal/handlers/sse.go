package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"forecast-dashboard/internal/errors"
	"forecast-dashboard/internal/models"
	"forecast-dashboard/internal/observability"
	"forecast-dashboard/internal/services"
)

var topAccuracyTemplate = template.Must(template.New("topAccuracy").Parse(`
<div id="top-accuracy">
<table class="modern-table">
<thead><tr><th>Store</th><th>Dept</th><th>MAPE</th><th>RMSE</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.StoreID}}</td>
<td>{{.DeptID}}</td>
<td>{{printf "%.2f" .MAPE}}%</td>
<td>{{printf "%.2f" .RMSE}}</td>
</tr>{{else}}<tr><td colspan="4">No forecasts to rank</td></tr>{{end}}
</tbody>
</table>
</div>`))

var reportTemplate = template.Must(template.New("report").Parse(`
<section id="report-{{.StoreID}}-{{.DeptID}}" class="report">
<h2>Store {{.StoreID}} – Dept {{.DeptID}} Forecast</h2>
<div class="kpis">
<div class="kpi"><span>MAPE</span><strong>{{.MAPE}}%</strong></div>
<div class="kpi"><span>RMSE</span><strong>{{.RMSE}}</strong></div>
</div>
<p class="insight trend-{{.Trend}}"><strong>Trend Insight</strong>: {{.Message}}</p>
<ul class="totals">
<li>Total Forecasted Sales: ${{printf "%.0f" .ForecastTotal}}</li>
<li>Actual Sales in Range: ${{printf "%.0f" .ActualTotal}}</li>
<li>Change: {{.Change}}</li>
</ul>
<h3>Forecast Table (Last {{len .Rows}} rows)</h3>
<table class="modern-table">
<thead><tr><th>Date</th><th>Actual</th><th>Forecast</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.Date}}</td><td>{{.Actual}}</td><td>{{.Forecast}}</td></tr>
{{end}}</tbody>
</table>
</section>`))

var unavailableTemplate = template.Must(template.New("unavailable").Parse(`
<section id="report-{{.StoreID}}-{{.DeptID}}" class="report unavailable">
<h2>Store {{.StoreID}} – Dept {{.DeptID}} Forecast</h2>
<p class="warning">{{.Message}}</p>
</section>`))

type SSEHandlers struct {
	forecaster *services.Forecaster
	logger     *slog.Logger
	opts       Options
}

func NewSSEHandlers(forecaster *services.Forecaster, logger *slog.Logger, opts Options) *SSEHandlers {
	return &SSEHandlers{
		forecaster: forecaster,
		logger:     logger,
		opts:       opts.withDefaults(),
	}
}

type chartPoint struct {
	Date     string   `json:"date"`
	Actual   *float64 `json:"actual"`
	Forecast float64  `json:"forecast"`
}

func renderTopAccuracy(rows []models.AccuracySummaryRow) (string, error) {
	var buf strings.Builder
	err := topAccuracyTemplate.Execute(&buf, rows)
	return buf.String(), err
}

type reportView struct {
	*models.InsightReport
	Change string
	Rows   []tableRow
}

type tableRow struct {
	Date, Actual, Forecast string
}

func renderReport(report *models.InsightReport, tail int) (string, error) {
	view := reportView{InsightReport: report, Change: "n/a"}
	if report.ChangePct != nil {
		view.Change = strconv.FormatFloat(*report.ChangePct, 'f', 2, 64) + "%"
	}
	for _, p := range report.Tail(tail) {
		row := tableRow{
			Date:     p.Date.Format(models.DateLayout),
			Actual:   "–",
			Forecast: strconv.FormatFloat(p.Forecast, 'f', 2, 64),
		}
		if p.Actual != nil {
			row.Actual = strconv.FormatFloat(*p.Actual, 'f', 2, 64)
		}
		view.Rows = append(view.Rows, row)
	}

	var buf strings.Builder
	err := reportTemplate.Execute(&buf, view)
	return buf.String(), err
}

func renderUnavailable(key models.PairKey, err error) (string, error) {
	var buf strings.Builder
	execErr := unavailableTemplate.Execute(&buf, struct {
		StoreID, DeptID int
		Message         string
	}{key.StoreID, key.DeptID, errors.FromEngine(err).Message})
	return buf.String(), execErr
}

func (h *SSEHandlers) HandleTopAccuracy(w http.ResponseWriter, r *http.Request) {
	logger := observability.Logger(r.Context(), h.logger)
	sse := datastar.NewSSE(w, r)

	rows, err := topAccurate(h.forecaster, h.opts.TopN)
	if err != nil {
		logger.Error("rank accuracy", "error", err)
		return
	}
	html, err := renderTopAccuracy(rows)
	if err != nil {
		logger.Error("render top accuracy", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		logger.Warn("patch top accuracy", "error", err)
	}
}

// HandleReport patches one report section per selected pair and sends the
// chart series as signals keyed by pair. Missing pairs render a notice and
// do not stop the others.
func (h *SSEHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	logger := observability.Logger(r.Context(), h.logger)

	q := r.URL.Query()
	stores, err := parseIDList(q.Get("stores"))
	if err != nil {
		errors.WriteError(w, logger, errors.BadRequest("stores: "+err.Error()), observability.GetRequestID(r.Context()))
		return
	}
	depts, err := parseIDList(q.Get("depts"))
	if err != nil {
		errors.WriteError(w, logger, errors.BadRequest("depts: "+err.Error()), observability.GetRequestID(r.Context()))
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		errors.WriteError(w, logger, errors.BadRequest(err.Error()), observability.GetRequestID(r.Context()))
		return
	}
	if len(stores) == 0 {
		stores = firstOf(h.forecaster.Stores())
	}
	if len(depts) == 0 {
		depts = firstOf(h.forecaster.Depts())
	}
	if err := h.opts.checkPairs(stores, depts); err != nil {
		errors.WriteError(w, logger, errors.BadRequest(err.Error()), observability.GetRequestID(r.Context()))
		return
	}

	results := h.forecaster.BuildReports(r.Context(), stores, depts, window)

	sse := datastar.NewSSE(w, r)
	var sections strings.Builder
	charts := make(map[string][]chartPoint, len(results))

	for _, res := range results {
		var (
			html string
			err  error
		)
		if res.Err != nil {
			html, err = renderUnavailable(res.Key, res.Err)
		} else {
			html, err = renderReport(res.Report, h.opts.TailRows)
			charts[chartKey(res.Key)] = toChart(res.Report.Points)
		}
		if err != nil {
			logger.Error("render report", "store_id", res.Key.StoreID, "dept_id", res.Key.DeptID, "error", err)
			continue
		}
		sections.WriteString(html)
	}

	if err := sse.PatchElements(`<div id="reports">` + sections.String() + `</div>`); err != nil {
		logger.Warn("patch reports", "error", err)
		return
	}

	signals, err := json.Marshal(map[string]any{"charts": charts})
	if err != nil {
		logger.Error("marshal chart signals", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		logger.Warn("patch chart signals", "error", err)
	}
}

func chartKey(k models.PairKey) string {
	return "s" + strconv.Itoa(k.StoreID) + "d" + strconv.Itoa(k.DeptID)
}

func toChart(points []models.ForecastPoint) []chartPoint {
	out := make([]chartPoint, len(points))
	for i, p := range points {
		out[i] = chartPoint{Date: p.Date.Format(models.DateLayout), Actual: p.Actual, Forecast: p.Forecast}
	}
	return out
}
