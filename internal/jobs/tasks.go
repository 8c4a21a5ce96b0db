package jobs

import (
	"github.com/yukawasensei/visual-ai-agent/internal/analysis"
	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

// ──────── Payloads ────────

type AnalyzePayload struct {
	VideoID string `json:"video_id"`
}

type EventNotifier interface {
	Broadcast(event string, data interface{})
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, an *analysis.Analyzer, videoRepo *repository.VideoRepository,
	segRepo *repository.SegmentRepository, notifier EventNotifier) {

	q.RegisterHandler(TaskAnalyzeVideo, NewAnalyzeHandler(an, videoRepo, segRepo, notifier))
}
