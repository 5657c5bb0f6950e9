package handlers

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"forecast-dashboard/internal/errors"
	"forecast-dashboard/internal/models"
	"forecast-dashboard/internal/observability"
	"forecast-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	forecaster *services.Forecaster
	logger     *slog.Logger
	opts       Options
}

func NewAPIHandlers(forecaster *services.Forecaster, logger *slog.Logger, opts Options) *APIHandlers {
	return &APIHandlers{
		forecaster: forecaster,
		logger:     logger,
		opts:       opts.withDefaults(),
	}
}

type selections struct {
	Stores       []int `json:"stores"`
	Depts        []int `json:"depts"`
	DefaultStore *int  `json:"default_store"`
	DefaultDept  *int  `json:"default_dept"`
}

type pairResult struct {
	StoreID int                   `json:"store_id"`
	DeptID  int                   `json:"dept_id"`
	Report  *models.InsightReport `json:"report"`
	Error   *errors.AppError      `json:"error"`
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.Logger(r.Context(), h.logger)
	errors.WriteError(w, logger, err, observability.GetRequestID(r.Context()))
}

// topAccurate treats an empty summary as nothing to show.
func topAccurate(f *services.Forecaster, n int) ([]models.AccuracySummaryRow, error) {
	rows, err := f.TopAccurate(n)
	if stderrors.Is(err, services.ErrEmptyTable) {
		return []models.AccuracySummaryRow{}, nil
	}
	return rows, err
}

func (h *APIHandlers) HandleTopAccuracy(w http.ResponseWriter, r *http.Request) {
	n, err := parsePositive(r.URL.Query().Get("n"), h.opts.TopN)
	if err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}

	rows, err := topAccurate(h.forecaster, n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, rows, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleSelections(w http.ResponseWriter, r *http.Request) {
	sel := selections{
		Stores: h.forecaster.Stores(),
		Depts:  h.forecaster.Depts(),
	}
	if len(sel.Stores) > 0 {
		sel.DefaultStore = &sel.Stores[0]
	}
	if len(sel.Depts) > 0 {
		sel.DefaultDept = &sel.Depts[0]
	}
	errors.WriteSuccessWithHeaders(w, sel, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleBounds(w http.ResponseWriter, r *http.Request) {
	storeID, deptID, err := parsePair(r)
	if err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}

	bounds, err := h.forecaster.Bounds(r.Context(), storeID, deptID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, bounds)
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	storeID, deptID, err := parsePair(r)
	if err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}

	report, err := h.forecaster.BuildReport(r.Context(), storeID, deptID, window)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, report)
}

// HandleReports builds one report per store × dept combination. Pairs that
// fail carry their own error; the response as a whole still succeeds.
func (h *APIHandlers) HandleReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stores, err := parseIDList(q.Get("stores"))
	if err != nil {
		h.fail(w, r, errors.BadRequest("stores: "+err.Error()))
		return
	}
	depts, err := parseIDList(q.Get("depts"))
	if err != nil {
		h.fail(w, r, errors.BadRequest("depts: "+err.Error()))
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}

	if len(stores) == 0 {
		stores = firstOf(h.forecaster.Stores())
	}
	if len(depts) == 0 {
		depts = firstOf(h.forecaster.Depts())
	}
	if err := h.opts.checkPairs(stores, depts); err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}

	results := h.forecaster.BuildReports(r.Context(), stores, depts, window)
	out := make([]pairResult, len(results))
	for i, res := range results {
		out[i] = pairResult{StoreID: res.Key.StoreID, DeptID: res.Key.DeptID, Report: res.Report}
		if res.Err != nil {
			out[i].Error = errors.FromEngine(res.Err)
		}
	}
	errors.WriteSuccess(w, out)
}

// HandleExport streams the windowed points as a CSV download.
func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	storeID, deptID, err := parsePair(r)
	if err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		h.fail(w, r, errors.BadRequest(err.Error()))
		return
	}

	series, err := h.forecaster.Window(r.Context(), storeID, deptID, window)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.SeriesFileName(storeID, deptID)))
	if err := services.WriteSeriesCSV(w, series.Points); err != nil {
		observability.Logger(r.Context(), h.logger).Error("write export", "error", err)
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.forecaster.Stats())
}

func firstOf(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	return ids[:1]
}
