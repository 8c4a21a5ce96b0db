package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yukawasensei/visual-ai-agent/internal/export"
	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

// ──────────────────── Export ────────────────────

// handleExportSegments cuts the requested segments into standalone clips,
// optionally merging them into a single file. The work runs synchronously;
// the request context cancels in-flight transcodes if the client goes away.
func (s *Server) handleExportSegments(w http.ResponseWriter, r *http.Request) {
	var req export.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.SegmentIDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "segmentIds is required")
		return
	}

	result, err := s.exporter.Export(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVideoNotFound):
			s.respondError(w, http.StatusNotFound, "video not found")
		case errors.Is(err, export.ErrNoSegments):
			s.respondError(w, http.StatusBadRequest, "no matching segments to export")
		case errors.Is(err, export.ErrUnsupportedFormat):
			s.respondError(w, http.StatusBadRequest, "unsupported export format (must be mp4, mov, or avi)")
		case errors.Is(err, export.ErrInvalidQuality):
			s.respondError(w, http.StatusBadRequest, "invalid export quality (must be high, medium, or low)")
		default:
			s.respondError(w, http.StatusInternalServerError, "export failed")
		}
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: result})
}
