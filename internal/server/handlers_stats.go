package server

import (
	"net/http"

	"github.com/nicoschmidtj/nicofit2/internal/storage"
)

// handleStats reports mirror statistics when the backend keeps them.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.store.(storage.StatsProvider)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "storage backend does not report statistics"})
		return
	}
	stats, err := sp.GetMirrorStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
