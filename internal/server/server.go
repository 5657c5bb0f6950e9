package server

import (
	"log/slog"
	"net/http"

	"forecast-dashboard/internal/handlers"
	"forecast-dashboard/internal/services"
)

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
	pageHandlers *handlers.PageHandlers
}

func NewServer(forecaster *services.Forecaster, logger *slog.Logger, opts handlers.Options) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		apiHandlers:  handlers.NewAPIHandlers(forecaster, logger, opts),
		sseHandlers:  handlers.NewSSEHandlers(forecaster, logger, opts),
		pageHandlers: handlers.NewPageHandlers(forecaster, logger, opts),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.pageHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	s.mux.HandleFunc("GET /api/top-accuracy", s.apiHandlers.HandleTopAccuracy)
	s.mux.HandleFunc("GET /api/selections", s.apiHandlers.HandleSelections)
	s.mux.HandleFunc("GET /api/bounds", s.apiHandlers.HandleBounds)
	s.mux.HandleFunc("GET /api/report", s.apiHandlers.HandleReport)
	s.mux.HandleFunc("GET /api/reports", s.apiHandlers.HandleReports)
	s.mux.HandleFunc("GET /api/export", s.apiHandlers.HandleExport)

	s.mux.HandleFunc("GET /sse/top-accuracy", s.sseHandlers.HandleTopAccuracy)
	s.mux.HandleFunc("GET /sse/report", s.sseHandlers.HandleReport)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
