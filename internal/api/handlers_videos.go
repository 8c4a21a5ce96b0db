package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yukawasensei/visual-ai-agent/internal/jobs"
	"github.com/yukawasensei/visual-ai-agent/internal/models"
	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

var allowedVideoExts = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
	".mkv": true,
}

// ──────────────────── Upload ────────────────────

// handleUpload accepts a multipart video file, stores it, creates the video
// record, and queues background analysis.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedVideoExts[ext] {
		s.respondError(w, http.StatusBadRequest, "unsupported file type (must be mp4, mov, avi, or mkv)")
		return
	}

	if err := os.MkdirAll(s.config.UploadDir, 0755); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to prepare upload dir")
		return
	}

	id := uuid.New()
	fileName := id.String() + ext
	destPath := filepath.Join(s.config.UploadDir, fileName)
	dest, err := os.Create(destPath)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	size, err := io.Copy(dest, file)
	dest.Close()
	if err != nil {
		os.Remove(destPath)
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	video := &models.VideoAsset{
		ID:           id,
		FileName:     fileName,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		FileSize:     size,
		FilePath:     destPath,
	}

	// Duration is best-effort at upload time; analysis probes again.
	if d, err := s.probe.Duration(r.Context(), destPath); err == nil {
		video.DurationSeconds = d
	} else {
		log.Printf("API: probe on upload %s: %v", header.Filename, err)
	}

	if err := s.videoRepo.Create(video); err != nil {
		os.Remove(destPath)
		s.respondError(w, http.StatusInternalServerError, "failed to create video record")
		return
	}

	payload := jobs.AnalyzePayload{VideoID: id.String()}
	uniqueID := "analyze:" + id.String()
	if _, err := s.jobQueue.EnqueueUnique(jobs.TaskAnalyzeVideo, payload, uniqueID,
		asynq.Timeout(2*time.Hour), asynq.Retention(1*time.Hour)); err != nil {
		log.Printf("API: failed to enqueue analysis for %s: %v", id, err)
	}

	s.respondJSON(w, http.StatusCreated, Response{Success: true, Data: video})
}

// ──────────────────── Videos ────────────────────

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	status := models.VideoStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.VideoStatusPending, models.VideoStatusProcessing,
		models.VideoStatusCompleted, models.VideoStatusFailed:
	default:
		s.respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	total, err := s.videoRepo.Count(status)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to count videos")
		return
	}
	videos, err := s.videoRepo.List(status, limit, (page-1)*limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}

	baseURL := "/api/videos"
	if status != "" {
		baseURL += "?status=" + string(status)
	}
	s.respondPaginated(w, http.StatusOK, Response{Success: true, Data: videos},
		page, limit, total, baseURL)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	video, err := s.videoRepo.GetByID(id)
	if errors.Is(err, repository.ErrVideoNotFound) {
		s.respondError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get video")
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: video})
}
