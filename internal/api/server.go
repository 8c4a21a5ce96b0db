package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/yukawasensei/visual-ai-agent/internal/config"
	"github.com/yukawasensei/visual-ai-agent/internal/db"
	"github.com/yukawasensei/visual-ai-agent/internal/export"
	"github.com/yukawasensei/visual-ai-agent/internal/ffmpeg"
	"github.com/yukawasensei/visual-ai-agent/internal/jobs"
	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

type Server struct {
	config      *config.Config
	db          *db.DB
	videoRepo   *repository.VideoRepository
	segmentRepo *repository.SegmentRepository
	probe       *ffmpeg.FFprobe
	exporter    *export.Pipeline
	jobQueue    *jobs.Queue
	wsHub       *WSHub
	router      *http.ServeMux
	handler     http.Handler
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(cfg *config.Config, database *db.DB, jobQueue *jobs.Queue) *Server {
	videoRepo := repository.NewVideoRepository(database.DB)
	segmentRepo := repository.NewSegmentRepository(database.DB)
	exporter := export.NewPipeline(videoRepo, segmentRepo,
		ffmpeg.NewExporter(cfg.FFmpegPath, cfg.ExportDir), cfg.MaxTranscodes)

	s := &Server{
		config:      cfg,
		db:          database,
		videoRepo:   videoRepo,
		segmentRepo: segmentRepo,
		probe:       ffmpeg.NewFFprobe(cfg.FFprobePath),
		exporter:    exporter,
		jobQueue:    jobQueue,
		wsHub:       NewWSHub(),
		router:      http.NewServeMux(),
	}

	s.setupRoutes()
	s.handler = s.securityHeadersMiddleware(s.corsMiddleware(s.router))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

func (s *Server) VideoRepo() *repository.VideoRepository {
	return s.videoRepo
}

func (s *Server) SegmentRepo() *repository.SegmentRepository {
	return s.segmentRepo
}

func (s *Server) setupRoutes() {
	// Exported clips (no-cache so re-exports are always revalidated)
	downloadFS := http.StripPrefix("/downloads/", http.FileServer(http.Dir(s.config.ExportDir)))
	s.router.Handle("GET /downloads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		downloadFS.ServeHTTP(w, r)
	}))

	// Public
	s.router.HandleFunc("GET /health", s.handleHealth)

	// WebSocket
	s.router.HandleFunc("GET /api/ws", s.handleWebSocket)

	// Videos
	s.router.HandleFunc("POST /api/upload", s.handleUpload)
	s.router.HandleFunc("GET /api/videos", s.handleListVideos)
	s.router.HandleFunc("GET /api/videos/{id}", s.handleGetVideo)
	s.router.HandleFunc("GET /api/videos/{id}/segments", s.handleListVideoSegments)

	// Segments
	s.router.HandleFunc("POST /api/segments", s.handleCreateSegment)
	s.router.HandleFunc("GET /api/segments/{id}", s.handleGetSegment)
	s.router.HandleFunc("PUT /api/segments/{id}", s.handleUpdateSegment)
	s.router.HandleFunc("DELETE /api/segments/{id}", s.handleDeleteSegment)

	// Export
	s.router.HandleFunc("POST /api/export-segments", s.handleExportSegments)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"status": "ok"}})
}

// ──────────────────── Helpers ────────────────────

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, Response{Success: false, Error: message})
}

// respondPaginated sends a JSON response with pagination headers (X-Total-Count, Link).
func (s *Server) respondPaginated(w http.ResponseWriter, statusCode int, data interface{}, page, limit, total int, baseURL string) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	lastPage := (total + limit - 1) / limit
	if lastPage < 1 {
		lastPage = 1
	}
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	limitStr := strconv.Itoa(limit)
	var links []string
	links = append(links, fmt.Sprintf(`<%s%spage=1&limit=%s>; rel="first"`, baseURL, sep, limitStr))
	links = append(links, fmt.Sprintf(`<%s%spage=%d&limit=%s>; rel="last"`, baseURL, sep, lastPage, limitStr))
	if page < lastPage {
		links = append(links, fmt.Sprintf(`<%s%spage=%d&limit=%s>; rel="next"`, baseURL, sep, page+1, limitStr))
	}
	if page > 1 {
		links = append(links, fmt.Sprintf(`<%s%spage=%d&limit=%s>; rel="prev"`, baseURL, sep, page-1, limitStr))
	}
	w.Header().Set("Link", strings.Join(links, ", "))
	s.respondJSON(w, statusCode, data)
}

// securityHeadersMiddleware adds standard security headers to all responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS preflight and response headers globally.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
