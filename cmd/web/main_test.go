package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"forecast-dashboard/internal/config"
	"forecast-dashboard/internal/handlers"
	"forecast-dashboard/internal/server"
	"forecast-dashboard/internal/services"
)

func newTestServer(t *testing.T) (*server.Server, *services.Forecaster) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		services.DefaultSummaryFile:   "Store,Dept,MAPE,RMSE\n1,1,8.5,1200\n1,2,3.2,800\n",
		services.SeriesFileName(1, 1): "ds,y,yhat\n2024-01-01,100,110\n2024-01-08,100,90\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	src := services.NewCSVSource(dir, services.WithSourceLogger(logger))
	f, err := services.LoadForecaster(context.Background(), src, src, services.WithLogger(logger))
	if err != nil {
		t.Fatalf("LoadForecaster() failed: %v", err)
	}
	return server.NewServer(f, logger, handlers.Options{}), f
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/api/top-accuracy", http.StatusOK, "application/json"},
		{"/api/selections", http.StatusOK, "application/json"},
		{"/api/bounds?store=1&dept=1", http.StatusOK, "application/json"},
		{"/api/report?store=1&dept=1", http.StatusOK, "application/json"},
		{"/api/report?store=1&dept=2", http.StatusNotFound, "application/json"},
		{"/api/reports?stores=1&depts=1,2", http.StatusOK, "application/json"},
		{"/api/export?store=1&dept=1", http.StatusOK, "text/csv"},
		{"/nope", http.StatusNotFound, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

// Test Server-Sent Events routes
func TestServer_SSERoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, route := range []string{"/sse/top-accuracy", "/sse/report", "/sse/report?stores=1&depts=1,2"} {
		t.Run(route, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest("GET", route, nil))

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
			}
		})
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/top-accuracy", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"PATCH", "/api/report", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// Test the full middleware stack wrapping the routes.
func TestNewHandler_Middleware(t *testing.T) {
	srv, _ := newTestServer(t)
	cfg := config.FromEnv()
	cfg.Security.EnableRateLimit = true
	cfg.Security.RateLimitRPS = 1
	cfg.Security.RateLimitBurst = 1
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	h := newHandler(cfg, logger, srv)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestHandlerOptions(t *testing.T) {
	cfg := config.FromEnv()
	cfg.Engine.TopN = 7
	cfg.Engine.TailRows = 12
	cfg.Engine.MaxPairs = 4

	opts := handlerOptions(cfg)
	if opts.TopN != 7 || opts.TailRows != 12 || opts.MaxPairs != 4 {
		t.Errorf("handlerOptions() = %+v", opts)
	}
}
