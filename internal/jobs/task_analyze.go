package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yukawasensei/visual-ai-agent/internal/analysis"
	"github.com/yukawasensei/visual-ai-agent/internal/models"
	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

type AnalyzeHandler struct {
	analyzer  *analysis.Analyzer
	videoRepo *repository.VideoRepository
	segRepo   *repository.SegmentRepository
	notifier  EventNotifier
}

func NewAnalyzeHandler(an *analysis.Analyzer, videoRepo *repository.VideoRepository,
	segRepo *repository.SegmentRepository, notifier EventNotifier) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: an, videoRepo: videoRepo, segRepo: segRepo, notifier: notifier}
}

func (h *AnalyzeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p AnalyzePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	videoID, err := uuid.Parse(p.VideoID)
	if err != nil {
		return fmt.Errorf("parse video id: %w", err)
	}
	video, err := h.videoRepo.GetByID(videoID)
	if err != nil {
		return fmt.Errorf("get video: %w", err)
	}

	taskID := "analyze:" + p.VideoID
	taskDesc := "Analyzing: " + video.OriginalName

	log.Printf("Job: analyzing video %q", video.OriginalName)
	if err := h.videoRepo.UpdateStatus(videoID, models.VideoStatusProcessing, "", nil); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if h.notifier != nil {
		h.notifier.Broadcast("analysis:start", map[string]string{"video_id": p.VideoID, "name": video.OriginalName})
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskAnalyzeVideo,
			"status": "running", "progress": 0, "description": taskDesc,
		})
	}

	// Throttled progress callback broadcasting frame counts via WebSocket
	var progressFn analysis.ProgressFunc
	if h.notifier != nil {
		var lastBroadcast time.Time
		progressFn = func(done, total int) {
			now := time.Now()
			// Throttle: broadcast at most every 500ms, plus always on last frame
			if now.Sub(lastBroadcast) >= 500*time.Millisecond || done == total {
				lastBroadcast = now
				pct := 0
				if total > 0 {
					pct = int(float64(done) / float64(total) * 100)
				}
				h.notifier.Broadcast("analysis:progress", map[string]interface{}{
					"video_id":     p.VideoID,
					"frames_done":  done,
					"frames_total": total,
				})
				desc := fmt.Sprintf("Analyzing %s · frame %d/%d", video.OriginalName, done, total)
				h.notifier.Broadcast("task:update", map[string]interface{}{
					"task_id": taskID, "task_type": TaskAnalyzeVideo,
					"status": "running", "progress": pct, "description": desc,
				})
			}
		}
	}

	result, err := h.analyzer.Analyze(ctx, videoID, video.FilePath, progressFn)
	if err != nil {
		if stErr := h.videoRepo.UpdateStatus(videoID, models.VideoStatusFailed, err.Error(), nil); stErr != nil {
			log.Printf("Job: mark failed for %s: %v", p.VideoID, stErr)
		}
		if h.notifier != nil {
			h.notifier.Broadcast("analysis:failed", map[string]string{"video_id": p.VideoID, "error": err.Error()})
			h.notifier.Broadcast("task:update", map[string]interface{}{
				"task_id": taskID, "task_type": TaskAnalyzeVideo,
				"status": "failed", "progress": 0, "description": taskDesc,
			})
		}
		return fmt.Errorf("analyze: %w", err)
	}

	if video.DurationSeconds == 0 && result.Duration > 0 {
		if err := h.videoRepo.UpdateDuration(videoID, result.Duration); err != nil {
			log.Printf("Job: update duration for %s: %v", p.VideoID, err)
		}
	}

	if err := h.segRepo.ReplaceGenerated(videoID, result.Segments); err != nil {
		if stErr := h.videoRepo.UpdateStatus(videoID, models.VideoStatusFailed, err.Error(), nil); stErr != nil {
			log.Printf("Job: mark failed for %s: %v", p.VideoID, stErr)
		}
		return fmt.Errorf("store segments: %w", err)
	}

	if err := h.videoRepo.UpdateStatus(videoID, models.VideoStatusCompleted, "", result.Summary); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	log.Printf("Job: analysis complete for %q - %d segments", video.OriginalName, len(result.Segments))
	if h.notifier != nil {
		h.notifier.Broadcast("analysis:complete", map[string]interface{}{
			"video_id": p.VideoID,
			"segments": len(result.Segments),
			"summary":  result.Summary,
		})
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskAnalyzeVideo,
			"status": "complete", "progress": 100, "description": taskDesc,
		})
	}
	return nil
}
