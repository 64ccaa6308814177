package server

import (
	"net/http"

	_ "embed"
)

//go:embed dashboard.html
var dashboardHTML []byte

// handleDashboard serves the audit stream dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(dashboardHTML)
}
