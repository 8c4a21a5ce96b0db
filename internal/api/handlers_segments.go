package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/yukawasensei/visual-ai-agent/internal/models"
	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

// ──────────────────── Segments ────────────────────

// segmentStatus maps repository sentinel errors to HTTP status codes.
func segmentStatus(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrVideoNotFound):
		return http.StatusNotFound, "video not found"
	case errors.Is(err, repository.ErrSegmentNotFound):
		return http.StatusNotFound, "segment not found"
	case errors.Is(err, repository.ErrInvalidRange):
		return http.StatusBadRequest, "invalid time range"
	case errors.Is(err, repository.ErrOverlap):
		return http.StatusConflict, "segment overlaps an existing segment"
	}
	return http.StatusInternalServerError, "segment operation failed"
}

func (s *Server) handleListVideoSegments(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	segments, err := s.segmentRepo.ListByVideo(videoID)
	if err != nil {
		status, msg := segmentStatus(err)
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: segments})
}

func (s *Server) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoID   string           `json:"videoId"`
		StartTime float64          `json:"startTime"`
		EndTime   float64          `json:"endTime"`
		Type      string           `json:"type"`
		Products  []models.Product `json:"products"`
		Notes     string           `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	videoID, err := uuid.Parse(req.VideoID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}
	segType := models.SegmentType(req.Type)
	if !segType.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid segment type")
		return
	}

	seg, err := s.segmentRepo.Create(videoID, req.StartTime, req.EndTime, segType, req.Products, req.Notes)
	if err != nil {
		status, msg := segmentStatus(err)
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusCreated, Response{Success: true, Data: seg})
}

func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid segment ID")
		return
	}

	seg, err := s.segmentRepo.GetByID(id)
	if err != nil {
		status, msg := segmentStatus(err)
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: seg})
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid segment ID")
		return
	}

	var req struct {
		StartTime *float64          `json:"startTime"`
		EndTime   *float64          `json:"endTime"`
		Type      *string           `json:"type"`
		Products  *[]models.Product `json:"products"`
		Notes     *string           `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := repository.SegmentUpdate{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Products:  req.Products,
		Notes:     req.Notes,
	}
	if req.Type != nil {
		segType := models.SegmentType(*req.Type)
		if !segType.Valid() {
			s.respondError(w, http.StatusBadRequest, "invalid segment type")
			return
		}
		update.Type = &segType
	}

	seg, err := s.segmentRepo.Update(id, update)
	if err != nil {
		status, msg := segmentStatus(err)
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: seg})
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid segment ID")
		return
	}

	if err := s.segmentRepo.Delete(id); err != nil {
		status, msg := segmentStatus(err)
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true})
}
