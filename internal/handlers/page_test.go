package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPageHandlers_HandleDashboard(t *testing.T) {
	h := NewPageHandlers(createTestForecaster(t), testLogger(), Options{TopN: 3})

	w := httptest.NewRecorder()
	h.HandleDashboard(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, content := range []string{
		"Sales Forecasting Dashboard",
		"Top 3 Most Accurate Forecasts",
		"@get('/sse/top-accuracy')",
		`id="reports"`,
	} {
		if !strings.Contains(body, content) {
			t.Errorf("expected page to contain %q", content)
		}
	}
}
