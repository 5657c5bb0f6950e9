package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"forecast-dashboard/internal/observability"
	"forecast-dashboard/internal/services"
	"forecast-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	forecaster *services.Forecaster
	logger     *slog.Logger
	opts       Options
}

func NewPageHandlers(forecaster *services.Forecaster, logger *slog.Logger, opts Options) *PageHandlers {
	return &PageHandlers{forecaster: forecaster, logger: logger, opts: opts.withDefaults()}
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	page := templates.DashboardPage{
		Stores: h.forecaster.Stores(),
		Depts:  h.forecaster.Depts(),
		TopN:   h.opts.TopN,
	}
	if len(page.Stores) > 0 {
		page.DefaultStore = page.Stores[0]
	}
	if len(page.Depts) > 0 {
		page.DefaultDept = page.Depts[0]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(page).Render(ctx, w); err != nil {
		observability.Logger(r.Context(), h.logger).Error("render dashboard", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
