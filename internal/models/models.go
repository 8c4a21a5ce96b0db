package models

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Videos ────────────────────

type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

type VideoAsset struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	FileName        string           `json:"filename" db:"file_name"`
	OriginalName    string           `json:"originalname" db:"original_name"`
	MimeType        string           `json:"mimetype" db:"mime_type"`
	FileSize        int64            `json:"size" db:"file_size"`
	FilePath        string           `json:"path" db:"file_path"`
	DurationSeconds float64          `json:"duration" db:"duration_seconds"`
	Status          VideoStatus      `json:"status" db:"status"`
	Error           string           `json:"error,omitempty" db:"error"`
	Summary         *AnalysisSummary `json:"analysis,omitempty" db:"summary"`
	UploadedAt      time.Time        `json:"uploadedAt" db:"uploaded_at"`
	UpdatedAt       time.Time        `json:"updatedAt" db:"updated_at"`
}

// AnalysisSummary is the per-category rollup stored on the video record
// after an analysis run completes.
type AnalysisSummary struct {
	FramesAnalyzed int                        `json:"framesAnalyzed"`
	FramesFailed   int                        `json:"framesFailed"`
	Categories     map[string]CategorySummary `json:"categories"`
}

type CategorySummary struct {
	Count           int     `json:"count"`
	DurationSeconds float64 `json:"duration"`
}

// ──────────────────── Segments ────────────────────

type SegmentType string

const (
	SegmentProductExplanation SegmentType = "product_explanation"
	SegmentProductShowcase    SegmentType = "product_showcase"
	SegmentMaterialShowcase   SegmentType = "material_showcase"
	SegmentOther              SegmentType = "other"
)

// Valid reports whether t is one of the known segment categories.
func (t SegmentType) Valid() bool {
	switch t {
	case SegmentProductExplanation, SegmentProductShowcase, SegmentMaterialShowcase, SegmentOther:
		return true
	}
	return false
}

type SegmentSource string

const (
	SegmentSourceAnalysis SegmentSource = "analysis"
	SegmentSourceManual   SegmentSource = "manual"
)

// Product is a tagged item recognized inside a segment.
type Product struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Segment is a labeled, time-bounded sub-range of a video. Intervals are
// half-open [StartTime, EndTime); segments of one video never overlap but
// may abut.
type Segment struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	VideoID    uuid.UUID     `json:"videoId" db:"video_id"`
	StartTime  float64       `json:"startTime" db:"start_time"`
	EndTime    float64       `json:"endTime" db:"end_time"`
	Type       SegmentType   `json:"type" db:"segment_type"`
	Products   []Product     `json:"products" db:"products"`
	Confidence float64       `json:"confidence" db:"confidence"`
	Notes      string        `json:"notes,omitempty" db:"notes"`
	Source     SegmentSource `json:"source" db:"source"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time     `json:"updatedAt" db:"updated_at"`
}

// Duration returns the segment length in seconds.
func (s *Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// ValidRange reports whether [start, end) is a usable segment interval.
func ValidRange(start, end float64) bool {
	return start >= 0 && end > start
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any time instant. Abutting segments (one ends exactly
// where the other starts) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return aStart < bEnd && bStart < aEnd
}

// ──────────────────── Classification ────────────────────

// ClassificationResult is the per-frame output of the vision model.
// Ephemeral: produced by the classifier, consumed by the segment builder.
type ClassificationResult struct {
	Timestamp  float64     `json:"timestamp"`
	Type       SegmentType `json:"sceneType"`
	Products   []Product   `json:"objects"`
	Confidence float64     `json:"confidence"`
}

// ──────────────────── Export ────────────────────

type ExportQuality string

const (
	ExportQualityHigh   ExportQuality = "high"
	ExportQualityMedium ExportQuality = "medium"
	ExportQualityLow    ExportQuality = "low"
)

func (q ExportQuality) Valid() bool {
	switch q {
	case ExportQualityHigh, ExportQualityMedium, ExportQualityLow:
		return true
	}
	return false
}

// ExportedSegment records one extracted clip of an export run. Not persisted
// beyond the export response.
type ExportedSegment struct {
	ID                uuid.UUID `json:"id"`
	OriginalSegmentID uuid.UUID `json:"originalSegmentId"`
	FileName          string    `json:"filename"`
	FilePath          string    `json:"path"`
	FileSize          int64     `json:"size"`
	DurationSeconds   float64   `json:"duration"`
	CreatedAt         time.Time `json:"createdAt"`
}

type ExportResult struct {
	VideoID       uuid.UUID          `json:"videoId"`
	Segments      []*ExportedSegment `json:"segments"`
	TotalSize     int64              `json:"totalSize"`
	TotalDuration float64            `json:"totalDuration"`
	Format        string             `json:"format"`
	Quality       ExportQuality      `json:"quality"`
	DownloadURL   string             `json:"downloadUrl,omitempty"`
}
