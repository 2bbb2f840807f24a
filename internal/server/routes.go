package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.wsHandler.HandleWebSocket)

	// API routes - Reports
	mux.HandleFunc("/api/reports", s.reportsHandler.ListHandler)
	mux.HandleFunc("/api/reports/{file}/pdf", s.reportsHandler.PDFHandler)
	mux.HandleFunc("/api/latest", s.reportsHandler.LatestHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.apiHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.apiHandler.HealthHandler)

	// Screenshots, recordings and raw report files
	mux.Handle("/reports/", http.StripPrefix("/reports/", http.FileServer(http.Dir(s.store.Dir()))))

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.apiHandler.NotFoundHandler)

	return mux
}
