package server

import (
	"encoding/json"
	"net/http"

	"github.com/tugdual/shopsight/internal/zones"
)

// handleZonesSave handles POST /api/zones/save. The persisted document is
// replaced wholesale.
func (s *Server) handleZonesSave(w http.ResponseWriter, r *http.Request) {
	var doc zones.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeResult(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	if err := s.config.Zones.Save(doc); err != nil {
		s.config.Log.Error().Err(err).Msg("failed to save zones")
		writeResult(w, http.StatusInternalServerError, false, "Failed to save zones")
		return
	}

	writeResult(w, http.StatusOK, true, "Zones saved")
}

// handleZonesLoad handles GET /api/zones/load and returns the full zone
// document. A missing or corrupt file yields the empty default.
func (s *Server) handleZonesLoad(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Zones.Load())
}
